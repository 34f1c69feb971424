// Package viewer streams the visual set to websocket viewers and lets one of
// them drive the observer. The Hub is a render.Backend: the engine's scene
// shows and hides visuals through it during a tick.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"spherestream/internal/render"
	"spherestream/internal/sim/observer"
	"spherestream/internal/sim/spatial"
	"spherestream/internal/sim/stream"
	"spherestream/internal/viewerproto"
)

type Options struct {
	Logger *log.Logger
	Params viewerproto.WorldParams

	// Tracker receives the driving viewer's positions. Nil disables driving.
	Tracker *observer.Tracker

	PositionRateHz float64
	PositionBurst  int
	SendQueue      int
	AllowRemote    bool
}

type Stats struct {
	Clients   int
	Dropped   uint64
	Resyncs   uint64
	Ignored   uint64
	Positions uint64
}

type Hub struct {
	log     *log.Logger
	params  viewerproto.WorldParams
	tracker *observer.Tracker
	opts    Options

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// mu orders mirror updates and broadcasts so a registering client's
	// RESYNC snapshot and the SHOW/HIDE stream after it never disagree.
	mu      sync.Mutex
	mirror  *render.Recorder
	clients map[*client]struct{}
	driver  *client
	closed  bool

	dropped   atomic.Uint64
	resyncs   atomic.Uint64
	ignored   atomic.Uint64
	positions atomic.Uint64
}

type client struct {
	id      string
	out     chan []byte
	resync  bool
	limiter *rate.Limiter
}

func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.PositionRateHz <= 0 {
		opts.PositionRateHz = 30
	}
	if opts.PositionBurst <= 0 {
		opts.PositionBurst = 5
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 1024
	}
	return &Hub{
		log:     opts.Logger,
		params:  opts.Params,
		tracker: opts.Tracker,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mirror:  render.NewRecorder(),
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) Create(id render.VisualID, kind render.Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror.Create(id, kind)
}

func (h *Hub) Show(id render.VisualID, kind render.Kind, p render.Placement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror.Show(id, kind, p)
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(showMsg(id, kind, p))
	if err != nil {
		h.log.Printf("marshal show %d: %v", id, err)
		return
	}
	h.broadcastLocked(b)
}

func (h *Hub) Hide(id render.VisualID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror.Hide(id)
	if len(h.clients) == 0 {
		return
	}
	b, _ := json.Marshal(viewerproto.HideMsg{
		Type:            viewerproto.TypeHide,
		ProtocolVersion: viewerproto.Version,
		ID:              uint64(id),
	})
	h.broadcastLocked(b)
}

// PublishTick resyncs viewers that fell behind, then sends the tick summary.
func (h *Hub) PublishTick(st stream.TickStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	for c := range h.clients {
		if c.resync {
			h.sendResyncLocked(c)
		}
	}
	b, _ := json.Marshal(viewerproto.TickMsg{
		Type:            viewerproto.TypeTick,
		ProtocolVersion: viewerproto.Version,
		Tick:            st.Tick,
		Skipped:         st.Skipped,
		Reason:          st.Reason,
		Generated:       st.Generated,
		Decorated:       st.Decorated,
		Evicted:         st.Evicted,
		LiveCells:       st.LiveCells,
		LiveDecorations: st.LiveDecorations,
	})
	h.broadcastLocked(b)
}

func (h *Hub) broadcastLocked(b []byte) {
	for c := range h.clients {
		if c.resync {
			// Everything up to the next RESYNC is superseded by it.
			continue
		}
		if !trySend(c.out, b) {
			c.resync = true
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) sendResyncLocked(c *client) {
	visible := h.mirror.Visible()
	msg := viewerproto.ResyncMsg{
		Type:            viewerproto.TypeResync,
		ProtocolVersion: viewerproto.Version,
		Visuals:         make([]viewerproto.ShowMsg, 0, len(visible)),
	}
	for _, v := range visible {
		msg.Visuals = append(msg.Visuals, showMsg(v.ID, v.Kind, v.Placement))
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Printf("marshal resync: %v", err)
		return
	}
	if trySend(c.out, b) {
		c.resync = false
		h.resyncs.Add(1)
		return
	}
	c.resync = true
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

func showMsg(id render.VisualID, kind render.Kind, p render.Placement) viewerproto.ShowMsg {
	static, shadows := renderFlags(kind)
	return viewerproto.ShowMsg{
		Type:            viewerproto.TypeShow,
		ProtocolVersion: viewerproto.Version,
		ID:              uint64(id),
		Kind:            kind.String(),
		Pos:             [3]float64(p.Position),
		Rot:             quatArray(p.Rotation),
		Scale:           p.Scale,
		Parent:          p.Parent,
		Style:           p.Style,
		Static:          static,
		Shadows:         shadows,
	}
}

// Spheres are static terrain and never cast shadows. Creatures move.
func renderFlags(kind render.Kind) (static, shadows bool) {
	switch kind {
	case render.Sphere:
		return true, false
	case render.Creature:
		return false, true
	default:
		return true, true
	}
}

func quatArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

// register enqueues WELCOME and the initial RESYNC and starts broadcasting to
// c, all under one lock.
func (h *Hub) register(c *client, wantDrive bool) (driving bool, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, false
	}
	if wantDrive && h.tracker != nil && h.driver == nil {
		h.driver = c
		driving = true
	}
	welcome, _ := json.Marshal(viewerproto.WelcomeMsg{
		Type:            viewerproto.TypeWelcome,
		ProtocolVersion: viewerproto.Version,
		SessionID:       c.id,
		Driving:         driving,
		WorldParams:     h.params,
	})
	trySend(c.out, welcome)
	h.clients[c] = struct{}{}
	h.sendResyncLocked(c)
	return driving, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.out)
	if h.driver == c {
		h.driver = nil
		h.tracker.Clear()
	}
}

func (h *Hub) isDriver(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.driver == c
}

// Close disconnects every viewer. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
	}
	if h.driver != nil {
		h.driver = nil
		h.tracker.Clear()
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	return Stats{
		Clients:   n,
		Dropped:   h.dropped.Load(),
		Resyncs:   h.resyncs.Load(),
		Ignored:   h.ignored.Load(),
		Positions: h.positions.Load(),
	}
}

func (h *Hub) ParamsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			ProtocolVersion string                  `json:"protocol_version"`
			WorldParams     viewerproto.WorldParams `json:"world_params"`
		}{viewerproto.Version, h.params})
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.opts.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello viewerproto.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != viewerproto.TypeHello {
			closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
			return
		}
		if hello.ProtocolVersion != viewerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "unsupported protocol_version")
			return
		}

		c := &client{
			id:      fmt.Sprintf("V%d", h.nextID.Add(1)),
			out:     make(chan []byte, h.opts.SendQueue),
			limiter: rate.NewLimiter(rate.Limit(h.opts.PositionRateHz), h.opts.PositionBurst),
		}
		driving, ok := h.register(c, hello.Drive)
		if !ok {
			closeWith(conn, websocket.CloseGoingAway, "shutting down")
			return
		}
		defer h.unregister(c)
		h.log.Printf("viewer %s connected name=%q driving=%v", c.id, hello.Name, driving)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-c.out:
					if !ok {
						closeWith(conn, websocket.CloseNormalClosure, "bye")
						_ = conn.Close()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleClientMessage(c, msg)
		}

		cancel()
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
		h.log.Printf("viewer %s disconnected", c.id)
	}
}

func (h *Hub) handleClientMessage(c *client, msg []byte) {
	var env viewerproto.Envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.ProtocolVersion != viewerproto.Version {
		h.ignored.Add(1)
		return
	}
	switch env.Type {
	case viewerproto.TypePosition:
		if !h.isDriver(c) || !c.limiter.Allow() {
			h.ignored.Add(1)
			return
		}
		var pm viewerproto.PositionMsg
		if err := json.Unmarshal(msg, &pm); err != nil || !spatial.Valid(mgl64.Vec3(pm.Pos)) {
			h.ignored.Add(1)
			return
		}
		h.tracker.Set(mgl64.Vec3(pm.Pos))
		h.positions.Add(1)
	default:
		h.ignored.Add(1)
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
