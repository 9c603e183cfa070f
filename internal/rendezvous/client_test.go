package rendezvous

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pairdesk/native/internal/domain"

	"github.com/gorilla/websocket"
)

// recordingHandler collects dispatched signals on channels so tests can
// wait for the asynchronous read loop.
type recordingHandler struct {
	ids        chan string
	offers     chan domain.RemoteSignal
	answers    chan domain.RemoteSignal
	candidates chan domain.RemoteSignal
	errors     chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		ids:        make(chan string, 4),
		offers:     make(chan domain.RemoteSignal, 4),
		answers:    make(chan domain.RemoteSignal, 4),
		candidates: make(chan domain.RemoteSignal, 4),
		errors:     make(chan error, 4),
	}
}

func (h *recordingHandler) OnAssignedID(id string)                  { h.ids <- id }
func (h *recordingHandler) OnRemoteOffer(sig domain.RemoteSignal)   { h.offers <- sig }
func (h *recordingHandler) OnRemoteAnswer(sig domain.RemoteSignal)  { h.answers <- sig }
func (h *recordingHandler) OnRemoteCandidate(s domain.RemoteSignal) { h.candidates <- s }
func (h *recordingHandler) OnSignalError(err error)                 { h.errors <- err }

// relayServer is a one-connection rendezvous stand-in. It assigns the
// given identity on connect and exposes the socket for scripted sends.
type relayServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	received chan envelope
	ready    chan struct{}
}

func newRelayServer(t *testing.T, assignID string) *relayServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	rs := &relayServer{
		received: make(chan envelope, 16),
		ready:    make(chan struct{}),
	}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		rs.mu.Lock()
		rs.conn = conn
		rs.mu.Unlock()

		payload, _ := json.Marshal(openPayload{ID: assignID})
		conn.WriteJSON(envelope{Type: typeOpen, Payload: payload})
		close(rs.ready)

		for {
			var msg envelope
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			rs.received <- msg
		}
	}))
	return rs
}

func (rs *relayServer) url() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func (rs *relayServer) send(t *testing.T, msg envelope) {
	t.Helper()
	<-rs.ready
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.conn.WriteJSON(msg); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func (rs *relayServer) close() {
	// httptest.Server.Close does not close hijacked connections, so the
	// upgraded websocket must be closed explicitly to sever the link.
	rs.mu.Lock()
	if rs.conn != nil {
		rs.conn.Close()
	}
	rs.mu.Unlock()
	rs.srv.Close()
}

func dial(t *testing.T, rs *relayServer, handler domain.SignalHandler) *Client {
	t.Helper()
	c := NewClient(rs.url(), handler)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func recv[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestConnect_ReceivesAssignedIdentity(t *testing.T) {
	rs := newRelayServer(t, "id-1234")
	defer rs.close()
	handler := newRecordingHandler()

	c := dial(t, rs, handler)

	if got := recv(t, handler.ids, "OPEN"); got != "id-1234" {
		t.Errorf("assigned id = %q", got)
	}
	if c.LocalID() != "id-1234" {
		t.Errorf("LocalID = %q", c.LocalID())
	}
}

func TestConnect_DialFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/nope", newRecordingHandler())
	if err := c.Connect(); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSendOffer_WireFormat(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	c := dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	c.SendOffer("them", "conn-7", domain.ConnData, "v=0 fake sdp")

	msg := recv(t, rs.received, "relayed offer")
	if msg.Type != typeOffer || msg.Src != "me" || msg.Dst != "them" {
		t.Errorf("envelope = %+v", msg)
	}
	if msg.ConnID != "conn-7" || msg.Kind != string(domain.ConnData) {
		t.Errorf("routing = %s/%s", msg.ConnID, msg.Kind)
	}
	var sdp sdpPayload
	if err := json.Unmarshal(msg.Payload, &sdp); err != nil || sdp.SDP != "v=0 fake sdp" {
		t.Errorf("payload = %s (%v)", msg.Payload, err)
	}
}

func TestSendCandidate_WireFormat(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	c := dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	c.SendCandidate("them", "conn-7", domain.ConnMedia, domain.ICECandidatePayload{
		SDPMid:    "0",
		Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host",
	})

	msg := recv(t, rs.received, "relayed candidate")
	if msg.Type != typeCandidate || msg.Kind != string(domain.ConnMedia) {
		t.Errorf("envelope = %+v", msg)
	}
	var cand domain.ICECandidatePayload
	if err := json.Unmarshal(msg.Payload, &cand); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !strings.HasPrefix(cand.Candidate, "candidate:1") || cand.SDPMid != "0" {
		t.Errorf("candidate = %+v", cand)
	}
}

func TestDispatch_InboundOfferAndAnswer(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	offerSDP, _ := json.Marshal(sdpPayload{SDP: "their offer"})
	rs.send(t, envelope{
		Type: typeOffer, Src: "them", Dst: "me",
		ConnID: "c1", Kind: string(domain.ConnData), Payload: offerSDP,
	})

	sig := recv(t, handler.offers, "offer dispatch")
	if sig.PeerID != "them" || sig.ConnID != "c1" || sig.Kind != domain.ConnData || sig.SDP != "their offer" {
		t.Errorf("signal = %+v", sig)
	}

	answerSDP, _ := json.Marshal(sdpPayload{SDP: "their answer"})
	rs.send(t, envelope{
		Type: typeAnswer, Src: "them", Dst: "me",
		ConnID: "c2", Kind: string(domain.ConnMedia), Payload: answerSDP,
	})

	sig = recv(t, handler.answers, "answer dispatch")
	if sig.Kind != domain.ConnMedia || sig.SDP != "their answer" {
		t.Errorf("signal = %+v", sig)
	}
}

func TestDispatch_InboundCandidate(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	payload, _ := json.Marshal(domain.ICECandidatePayload{Candidate: "candidate:2 ..."})
	rs.send(t, envelope{
		Type: typeCandidate, Src: "them",
		ConnID: "c1", Kind: string(domain.ConnData), Payload: payload,
	})

	sig := recv(t, handler.candidates, "candidate dispatch")
	if sig.Candidate == nil || sig.Candidate.Candidate != "candidate:2 ..." {
		t.Errorf("signal = %+v", sig)
	}
}

func TestDispatch_ServiceError(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	payload, _ := json.Marshal(errorPayload{Message: "unknown destination"})
	rs.send(t, envelope{Type: typeError, Payload: payload})

	err := recv(t, handler.errors, "service error")
	if !strings.Contains(err.Error(), "unknown destination") {
		t.Errorf("error = %v", err)
	}
}

func TestDispatch_MalformedAndUnknownMessagesIgnored(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	rs.send(t, envelope{Type: "GOSSIP"})
	rs.send(t, envelope{Type: typeOffer, Src: "them", Payload: json.RawMessage(`"not an object"`)})

	// The loop survives: a well-formed offer afterwards still arrives.
	good, _ := json.Marshal(sdpPayload{SDP: "ok"})
	rs.send(t, envelope{Type: typeOffer, Src: "them", ConnID: "c1", Kind: string(domain.ConnData), Payload: good})

	sig := recv(t, handler.offers, "offer after junk")
	if sig.SDP != "ok" {
		t.Errorf("signal = %+v", sig)
	}
}

func TestConnectionLossSurfacesAsSignalError(t *testing.T) {
	rs := newRelayServer(t, "me")
	handler := newRecordingHandler()
	dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	rs.close()

	err := recv(t, handler.errors, "connection loss")
	if !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("error = %v", err)
	}
}

func TestClose_SilencesReadLoop(t *testing.T) {
	rs := newRelayServer(t, "me")
	defer rs.close()
	handler := newRecordingHandler()
	c := dial(t, rs, handler)
	recv(t, handler.ids, "OPEN")

	c.Close()
	c.Close() // idempotent

	select {
	case err := <-handler.errors:
		t.Errorf("local close surfaced as error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
