package net

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lcx/ticknet/codec"
)

// Wire format: every websocket binary message is one codec-encoded
// []PayloadEntry. The sender never travels in the frame: the host knows the
// peer by its connection, and peers only ever hear from the host.

// WSHost is the host side of a websocket channel. It accepts peer connections
// on an http.Handler, keeps the directory in step with connect/disconnect, and
// pushes received payloads into the bridge's receive path.
type WSHost struct {
	dir      *StaticDirectory
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[Endpoint]*wsWriter
	recv   ReceiveFunc
	closed bool
}

// wsWriter serializes writes to one connection; gorilla/websocket allows a
// single concurrent writer.
type wsWriter struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsWriter) write(b []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, b)
}

// NewWSHost creates a host channel registering connected peers in dir.
func NewWSHost(dir *StaticDirectory, logger *zap.Logger) *WSHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHost{
		dir:   dir,
		log:   logger,
		peers: make(map[Endpoint]*wsWriter),
	}
}

// Handler returns the http.Handler accepting peer websocket connections.
// Peers may present their endpoint id in the "peer" query parameter; absent
// one, the host assigns a fresh uuid.
func (h *WSHost) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		id := Endpoint(r.URL.Query().Get("peer"))
		if id == "" {
			id = Endpoint(uuid.NewString())
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			conn.Close()
			return
		}
		if old, ok := h.peers[id]; ok {
			// A reconnect under the same id supersedes the old connection.
			old.conn.Close()
		}
		h.peers[id] = &wsWriter{conn: conn}
		h.mu.Unlock()

		h.dir.Join(id)
		h.log.Info("peer connected", zap.String("endpoint", string(id)))

		go h.readLoop(id, conn)
	})
}

func (h *WSHost) readLoop(id Endpoint, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		h.mu.Lock()
		if w, ok := h.peers[id]; ok && w.conn == conn {
			delete(h.peers, id)
			h.dir.Leave(id)
		}
		h.mu.Unlock()
		h.log.Info("peer disconnected", zap.String("endpoint", string(id)))
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var entries []PayloadEntry
		if err := codec.Decode(data, &entries); err != nil {
			h.log.Warn("bad payload frame",
				zap.String("endpoint", string(id)), zap.Error(err))
			continue
		}
		h.dispatch(id, PayloadFromEntries(entries))
	}
}

func (h *WSHost) dispatch(sender Endpoint, p *Payload) {
	h.mu.Lock()
	fn := h.recv
	h.mu.Unlock()
	if fn != nil {
		fn(sender, p)
	}
}

// SendToHost implements Channel: host-side loopback.
func (h *WSHost) SendToHost(p *Payload) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	h.dispatch(HostEndpoint, p.Clone())
	return nil
}

// SendToPeer implements Channel.
func (h *WSHost) SendToPeer(dst Endpoint, p *Payload) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrChannelClosed
	}
	w, ok := h.peers[dst]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, dst)
	}

	data, err := codec.Encode(p.Entries())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return w.write(data)
}

// OnReceive implements Channel.
func (h *WSHost) OnReceive(fn ReceiveFunc) {
	h.mu.Lock()
	h.recv = fn
	h.mu.Unlock()
}

// Close implements Channel, dropping every peer connection.
func (h *WSHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, w := range h.peers {
		w.conn.Close()
		delete(h.peers, id)
		h.dir.Leave(id)
	}
	return nil
}

// WSPeer is the peer side of a websocket channel: one connection to the host.
type WSPeer struct {
	id   Endpoint
	log  *zap.Logger
	conn *wsWriter

	mu     sync.Mutex
	recv   ReceiveFunc
	closed bool
}

// DialWS connects a peer channel to a WSHost at rawURL (ws:// or wss://),
// presenting id as its endpoint; an empty id gets a fresh uuid.
func DialWS(rawURL string, id Endpoint, logger *zap.Logger) (*WSPeer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if id == "" {
		id = Endpoint(uuid.NewString())
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("peer", string(id))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	p := &WSPeer{id: id, log: logger, conn: &wsWriter{conn: conn}}
	go p.readLoop(conn)
	return p, nil
}

// ID returns the endpoint id presented to the host.
func (p *WSPeer) ID() Endpoint { return p.id }

func (p *WSPeer) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var entries []PayloadEntry
		if err := codec.Decode(data, &entries); err != nil {
			p.log.Warn("bad payload frame", zap.Error(err))
			continue
		}

		p.mu.Lock()
		fn := p.recv
		p.mu.Unlock()
		if fn != nil {
			fn(HostEndpoint, PayloadFromEntries(entries))
		}
	}
}

// SendToHost implements Channel.
func (p *WSPeer) SendToHost(pl *Payload) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	data, err := codec.Encode(pl.Entries())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return p.conn.write(data)
}

// SendToPeer implements Channel; peers cannot address peers.
func (p *WSPeer) SendToPeer(dst Endpoint, _ *Payload) error {
	return fmt.Errorf("%w: peer channel cannot send to %s", ErrPeerAddressing, dst)
}

// OnReceive implements Channel.
func (p *WSPeer) OnReceive(fn ReceiveFunc) {
	p.mu.Lock()
	p.recv = fn
	p.mu.Unlock()
}

// Close implements Channel.
func (p *WSPeer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.conn.conn.Close()
}
