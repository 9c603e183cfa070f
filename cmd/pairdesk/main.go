package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"pairdesk/native/internal/config"
	"pairdesk/native/internal/domain"
	"pairdesk/native/internal/media"
	"pairdesk/native/internal/oracle"
	"pairdesk/native/internal/peer"
	"pairdesk/native/internal/rendezvous"
	"pairdesk/native/internal/session"
)

const helpText = `pairdesk - Peer-to-peer technical interview workspace

Usage:
  pairdesk [options]

Connects two peers directly over WebRTC: a shared problem, a live code
buffer, a chat transcript and an optional audio/video call. Problems are
generated and code is judged by the Gemini API (fixed fallbacks apply
when it is unreachable).

Environment Variables:
  PAIRDESK_RENDEZVOUS_URL  Websocket URL of the rendezvous service (required)
  GEMINI_API_KEY           Gemini API key (optional; fallbacks without it)
  GEMINI_MODEL             Model name (default gemini-2.5-flash)
  PAIRDESK_STUN            Comma-separated STUN/TURN URLs
  PAIRDESK_CAPTURE_H264    Raw Annex-B H264 capture source (file or FIFO)
  PAIRDESK_CAPTURE_PCMU    Raw PCMU audio capture source (file or FIFO)
  PAIRDESK_REMOTE_H264     Sink for the remote peer's H264 video

Commands (on stdin):
  start              create a session and wait (interviewer)
  join <id>          dial an interviewer's identity (candidate)
  id                 show the local identity to share
  state              show connection state and peers
  gen [difficulty]   generate a new problem (Easy|Medium|Hard)
  problem            show the current problem
  code <text>        replace the shared code buffer
  codefile <path>    replace the buffer with a file's contents
  show               print the code buffer
  run                evaluate the buffer against the problem
  chat <text>        send a chat message
  msgs               print the chat transcript
  mic on|off         toggle the microphone
  cam on|off         toggle the camera
  view chat|video    switch the communication pane
  quit               exit

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	var remoteVideo io.Writer
	if cfg.RemoteH264 != "" {
		file, err := os.Create(cfg.RemoteH264)
		if err != nil {
			log.Fatalf("[main] open remote video sink: %v", err)
		}
		defer file.Close()
		remoteVideo = file
	}

	factory := peer.NewFactory(cfg.STUNServers, remoteVideo)
	device := media.NewDevice(cfg.CaptureH264, cfg.CapturePCMU)
	judge := oracle.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)

	// The session needs the signaler to send; the rendezvous client needs
	// the session as handler. Construct the session first and bind the
	// signaler once the client exists.
	binder := &signalBinder{}
	sess := session.New(binder, factory, device, judge, consoleObserver{})
	client := rendezvous.NewClient(cfg.RendezvousURL, sess)
	binder.Signaler = client

	if err := client.Connect(); err != nil {
		// Without the relay no identity arrives and no peer can be
		// reached, but the workspace itself still works: problems can
		// be generated and code evaluated locally.
		log.Printf("[main] rendezvous connect: %v (continuing unconnected)", err)
	}

	go console(ctx, cancel, sess)

	<-ctx.Done()
	log.Printf("[main] shutting down")

	sess.Close()
	client.Close()

	log.Printf("[main] done")
}

// signalBinder defers the signaler reference so the session can be
// constructed before the rendezvous client that needs it as handler.
type signalBinder struct {
	domain.Signaler
}

// consoleObserver surfaces session events on the terminal.
type consoleObserver struct{}

func (consoleObserver) IdentityAssigned(id string) {
	fmt.Printf("your identity (share with the candidate): %s\n", id)
}

func (consoleObserver) ConnectionStateChanged(state domain.ConnectionState) {
	fmt.Printf("connection: %s\n", state)
}

func (consoleObserver) WorkspaceUpdated() {}

func (consoleObserver) RemoteStreamChanged() {
	fmt.Println("remote video available")
}

func (consoleObserver) PeerDisconnected() {
	fmt.Println("peer disconnected; session is over")
}

func console(ctx context.Context, cancel context.CancelFunc, sess *session.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "start":
			if err := sess.StartAsInitiator(); err != nil {
				fmt.Printf("error: %v\n", err)
			} else if id := sess.LocalID(); id != "" {
				fmt.Printf("waiting for a candidate; share your identity: %s\n", id)
			} else {
				fmt.Println("waiting for a candidate; identity not assigned yet")
			}

		case "join":
			if err := sess.Join(arg); err != nil {
				fmt.Printf("error: %v\n", err)
			}

		case "id":
			if id := sess.LocalID(); id != "" {
				fmt.Println(id)
			} else {
				fmt.Println("no identity assigned yet")
			}

		case "state":
			fmt.Printf("state=%s role=%s local=%s remote=%s\n",
				sess.State(), sess.Role(), sess.LocalID(), sess.RemoteID())

		case "gen":
			difficulty := domain.DifficultyMedium
			switch strings.ToLower(arg) {
			case "easy":
				difficulty = domain.DifficultyEasy
			case "hard":
				difficulty = domain.DifficultyHard
			}
			p := sess.GenerateProblem(ctx, difficulty)
			fmt.Printf("problem: %s [%s]\n", p.Title, p.Difficulty)

		case "problem":
			p := sess.Problem()
			fmt.Printf("%s [%s]\n%s\n", p.Title, p.Difficulty, p.Description)
			for _, ex := range p.Examples {
				fmt.Printf("  input: %s\n  output: %s\n", ex.Input, ex.Output)
			}

		case "code":
			sess.SetCode(arg)

		case "codefile":
			data, err := os.ReadFile(arg)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			sess.SetCode(string(data))

		case "show":
			fmt.Println(sess.Code())

		case "run":
			fmt.Println("running...")
			r := sess.RunCode(ctx)
			verdict := "Failed"
			if r.Passed {
				verdict = "Passed"
			}
			fmt.Printf("%s (%d/%d)\n", verdict, r.TestCasesPassed, r.TotalTestCases)
			if r.Error != "" {
				fmt.Printf("error: %s\n", r.Error)
			}
			if r.Feedback != "" {
				fmt.Printf("feedback: %s\n", r.Feedback)
			}

		case "chat":
			sess.SendChat(arg)

		case "msgs":
			for _, entry := range sess.Chat() {
				fmt.Printf("[%s] %s\n", entry.Sender, entry.Text)
			}

		case "mic":
			sess.SetMicEnabled(arg == "on")

		case "cam":
			sess.SetCamEnabled(arg == "on")

		case "view":
			if arg == "video" {
				sess.SetViewMode(session.ViewVideo)
			} else {
				sess.SetViewMode(session.ViewChat)
			}

		case "quit", "exit":
			cancel()
			return

		case "help":
			fmt.Print(helpText)

		default:
			fmt.Printf("unknown command %q (try help)\n", cmd)
		}
	}
	cancel()
}
