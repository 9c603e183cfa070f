package rendezvous

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"pairdesk/native/internal/domain"

	"github.com/gorilla/websocket"
)

const pingInterval = 30 * time.Second

// Message types on the rendezvous websocket.
const (
	typeOpen      = "OPEN"
	typeOffer     = "OFFER"
	typeAnswer    = "ANSWER"
	typeCandidate = "CANDIDATE"
	typeError     = "ERROR"
)

// envelope is the generic rendezvous message. Src and Dst are peer
// identities; ConnID and Kind route the payload to one negotiated
// connection on the receiving side.
type envelope struct {
	Type    string          `json:"type"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
	ConnID  string          `json:"connectionId,omitempty"`
	Kind    string          `json:"connectionKind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type openPayload struct {
	ID string `json:"id"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Client manages the websocket connection to the rendezvous service. The
// service assigns this client its peer identity and relays signaling
// envelopes between identities.
type Client struct {
	url     string
	handler domain.SignalHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	localID string

	closed chan struct{}
}

// NewClient creates a rendezvous client. Connect must be called before use.
func NewClient(url string, handler domain.SignalHandler) *Client {
	return &Client{
		url:     url,
		handler: handler,
		closed:  make(chan struct{}),
	}
}

// Connect dials the rendezvous websocket and starts the read loop. The
// local identity is assigned asynchronously: the handler's OnAssignedID
// fires when the service's OPEN message arrives.
func (c *Client) Connect() error {
	log.Printf("[rendezvous] connecting to %s", c.url)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// LocalID returns the identity assigned by the service, or "" if none
// has been assigned yet.
func (c *Client) LocalID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localID
}

// Close shuts down the websocket connection.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) sendJSON(msg envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[rendezvous] marshal error: %v", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[rendezvous] write error: %v", err)
	}
}

// SendOffer relays a local SDP offer to the remote identity.
func (c *Client) SendOffer(remoteID, connID string, kind domain.ConnKind, sdp string) {
	c.sendSDP(typeOffer, remoteID, connID, kind, sdp)
}

// SendAnswer relays a local SDP answer to the remote identity.
func (c *Client) SendAnswer(remoteID, connID string, kind domain.ConnKind, sdp string) {
	c.sendSDP(typeAnswer, remoteID, connID, kind, sdp)
}

func (c *Client) sendSDP(msgType, remoteID, connID string, kind domain.ConnKind, sdp string) {
	payload, _ := json.Marshal(sdpPayload{SDP: sdp})
	c.sendJSON(envelope{
		Type:    msgType,
		Src:     c.LocalID(),
		Dst:     remoteID,
		ConnID:  connID,
		Kind:    string(kind),
		Payload: payload,
	})
}

// SendCandidate relays a trickled local ICE candidate to the remote identity.
func (c *Client) SendCandidate(remoteID, connID string, kind domain.ConnKind, cand domain.ICECandidatePayload) {
	payload, _ := json.Marshal(cand)
	c.sendJSON(envelope{
		Type:    typeCandidate,
		Src:     c.LocalID(),
		Dst:     remoteID,
		ConnID:  connID,
		Kind:    string(kind),
		Payload: payload,
	})
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
				log.Printf("[rendezvous] read error: %v", err)
				c.handler.OnSignalError(fmt.Errorf("rendezvous connection lost: %w", err))
				return
			}
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[rendezvous] unmarshal error: %v", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg envelope) {
	switch msg.Type {
	case typeOpen:
		var open openPayload
		if err := json.Unmarshal(msg.Payload, &open); err != nil {
			log.Printf("[rendezvous] decode OPEN: %v", err)
			return
		}
		c.mu.Lock()
		c.localID = open.ID
		c.mu.Unlock()
		log.Printf("[rendezvous] assigned identity %s", open.ID)
		c.handler.OnAssignedID(open.ID)

	case typeOffer:
		if sig, ok := c.decodeSDP(msg); ok {
			log.Printf("[rendezvous] offer from %s (%s)", sig.PeerID, sig.Kind)
			c.handler.OnRemoteOffer(sig)
		}

	case typeAnswer:
		if sig, ok := c.decodeSDP(msg); ok {
			log.Printf("[rendezvous] answer from %s (%s)", sig.PeerID, sig.Kind)
			c.handler.OnRemoteAnswer(sig)
		}

	case typeCandidate:
		var cand domain.ICECandidatePayload
		if err := json.Unmarshal(msg.Payload, &cand); err != nil {
			log.Printf("[rendezvous] decode CANDIDATE: %v", err)
			return
		}
		c.handler.OnRemoteCandidate(domain.RemoteSignal{
			PeerID:    msg.Src,
			ConnID:    msg.ConnID,
			Kind:      domain.ConnKind(msg.Kind),
			Candidate: &cand,
		})

	case typeError:
		var perr errorPayload
		_ = json.Unmarshal(msg.Payload, &perr)
		log.Printf("[rendezvous] service error: %s", perr.Message)
		c.handler.OnSignalError(fmt.Errorf("rendezvous: %s", perr.Message))

	default:
		log.Printf("[rendezvous] unhandled message type: %s", msg.Type)
	}
}

func (c *Client) decodeSDP(msg envelope) (domain.RemoteSignal, bool) {
	var sdp sdpPayload
	if err := json.Unmarshal(msg.Payload, &sdp); err != nil {
		log.Printf("[rendezvous] decode %s: %v", msg.Type, err)
		return domain.RemoteSignal{}, false
	}
	return domain.RemoteSignal{
		PeerID: msg.Src,
		ConnID: msg.ConnID,
		Kind:   domain.ConnKind(msg.Kind),
		SDP:    sdp.SDP,
	}, true
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(5*time.Second),
			)
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
					return
				default:
					log.Printf("[rendezvous] ping error: %v", err)
					return
				}
			}
		}
	}
}
