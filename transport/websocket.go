package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/graphbeam/resource"
)

// Path is the HTTP path children connect to.
const Path = "/graphbeam"

// WSConfig describes one node of a tree spread over processes.
type WSConfig struct {
	// ID is this node's id.
	ID int
	// ListenAddr is where children connect. Empty for leaves.
	ListenAddr string
	// Children lists the node ids allowed to connect.
	Children []int
	// Parent is the parent's node id.
	Parent int
	// ParentAddr is the parent's listen address. Empty for the root.
	ParentAddr string
	// DialRetry is the pause between attempts to reach the parent.
	// Defaults to 200ms.
	DialRetry time.Duration
	// Limits throttles outgoing bytes. Optional.
	Limits *resource.Controller
	// CloseGrace is how long Close waits for children to hang up first.
	// Defaults to 2s.
	CloseGrace time.Duration
	// Logger receives connection events. Optional.
	Logger *slog.Logger
}

type wsPeer struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// WSEndpoint is an Endpoint over websocket links, one per tree edge.
type WSEndpoint struct {
	cfg    WSConfig
	logger *slog.Logger
	in     *inbox

	mu      sync.Mutex
	peers   map[int]*wsPeer
	ready   map[int]chan struct{}
	failure error
	closing bool

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup // parent reader
	children sync.WaitGroup // child readers
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ListenWS starts accepting children and connects to the parent.
// It returns once the parent link is up; child links come up lazily and
// Send to a child blocks until that child has connected.
func ListenWS(ctx context.Context, cfg WSConfig) (*WSEndpoint, error) {
	if cfg.DialRetry <= 0 {
		cfg.DialRetry = 200 * time.Millisecond
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &WSEndpoint{
		cfg:    cfg,
		logger: logger.With("node", cfg.ID),
		in:     newInbox(),
		peers:  make(map[int]*wsPeer),
		ready:  make(map[int]chan struct{}),
	}
	for _, c := range cfg.Children {
		e.ready[c] = make(chan struct{})
	}
	if cfg.ParentAddr != "" {
		e.ready[cfg.Parent] = make(chan struct{})
	}

	if cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc(Path, e.accept)
		e.listener = ln
		e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.fail(fmt.Errorf("serve: %w", err))
			}
		}()
	}

	if cfg.ParentAddr != "" {
		if err := e.dialParent(ctx); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Addr returns the address children should dial, or "" for leaves.
func (e *WSEndpoint) Addr() string {
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

func (e *WSEndpoint) dialParent(ctx context.Context) error {
	url := "ws://" + e.cfg.ParentAddr + Path
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			hello := binary.LittleEndian.AppendUint32(nil, uint32(e.cfg.ID))
			if err := conn.WriteMessage(websocket.BinaryMessage, hello); err != nil {
				_ = conn.Close()
				return fmt.Errorf("hello to parent %d: %w", e.cfg.Parent, err)
			}
			e.logger.Debug("connected to parent", "parent", e.cfg.Parent, "addr", e.cfg.ParentAddr)
			if !e.register(e.cfg.Parent, conn, &e.wg) {
				return ErrClosed
			}
			go func() {
				defer e.wg.Done()
				e.read(e.cfg.Parent, conn)
			}()
			return nil
		}
		e.logger.Debug("parent not reachable yet", "addr", e.cfg.ParentAddr, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("dial parent %d at %s: %w", e.cfg.Parent, e.cfg.ParentAddr, ctx.Err())
		case <-time.After(e.cfg.DialRetry):
		}
	}
}

func (e *WSEndpoint) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	_, hello, err := conn.ReadMessage()
	if err != nil || len(hello) != 4 {
		e.logger.Warn("bad hello", "remote", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}
	id := int(binary.LittleEndian.Uint32(hello))
	if !slices.Contains(e.cfg.Children, id) {
		e.logger.Warn("unexpected child", "child", id, "remote", r.RemoteAddr)
		_ = conn.Close()
		return
	}
	if !e.register(id, conn, &e.children) {
		e.logger.Warn("child refused", "child", id, "remote", r.RemoteAddr)
		return
	}
	e.logger.Debug("child connected", "child", id, "remote", r.RemoteAddr)
	defer e.children.Done()
	e.read(id, conn)
}

// register publishes a link and accounts for its reader. It refuses a
// second link from the same peer and any link once the endpoint is closing.
func (e *WSEndpoint) register(id int, conn *websocket.Conn, readers *sync.WaitGroup) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.peers[id]; dup || e.closing {
		_ = conn.Close()
		return false
	}
	e.peers[id] = &wsPeer{conn: conn}
	close(e.ready[id])
	readers.Add(1)
	return true
}

func (e *WSEndpoint) read(from int, conn *websocket.Conn) {
	for {
		kind, frame, err := conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			e.logger.Debug("link closed", "peer", from)
			return
		}
		if err != nil {
			e.fail(fmt.Errorf("link to node %d: %w", from, err))
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := e.in.put(envelope{from: from, frame: frame}); err != nil {
			return
		}
	}
}

// fail records the first link error and wakes Recv. Errors after Close
// are expected and dropped.
func (e *WSEndpoint) fail(err error) {
	e.mu.Lock()
	if e.closing || e.failure != nil {
		e.mu.Unlock()
		return
	}
	e.failure = err
	e.mu.Unlock()
	e.logger.Error("transport failure", "error", err)
	e.in.close()
}

// ID implements Endpoint.
func (e *WSEndpoint) ID() int { return e.cfg.ID }

// Send implements Endpoint.
func (e *WSEndpoint) Send(ctx context.Context, to int, frame []byte) error {
	e.mu.Lock()
	ready, ok := e.ready[to]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("node %d: %w", to, ErrUnknownPeer)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.in.done:
		return e.err()
	}

	e.mu.Lock()
	p := e.peers[to]
	e.mu.Unlock()

	p.wmu.Lock()
	defer p.wmu.Unlock()
	w, err := p.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return fmt.Errorf("send to node %d: %w", to, err)
	}
	if _, err := resource.NewRateLimitedWriter(ctx, w, e.cfg.Limits).Write(frame); err != nil {
		_ = w.Close()
		return fmt.Errorf("send to node %d: %w", to, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("send to node %d: %w", to, err)
	}
	return nil
}

// Recv implements Endpoint.
func (e *WSEndpoint) Recv(ctx context.Context) (int, []byte, error) {
	env, err := e.in.take(ctx)
	if errors.Is(err, ErrClosed) {
		return 0, nil, e.err()
	}
	if err != nil {
		return 0, nil, err
	}
	return env.from, env.frame, nil
}

func (e *WSEndpoint) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failure != nil {
		return e.failure
	}
	return ErrClosed
}

// Close implements Endpoint. It first gives children up to CloseGrace to
// hang up, so frames they sent before seeing a kill are not cut off.
func (e *WSEndpoint) Close() error {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	hungUp := make(chan struct{})
	go func() {
		e.children.Wait()
		close(hungUp)
	}()
	select {
	case <-hungUp:
	case <-time.After(e.cfg.CloseGrace):
		e.logger.Warn("children still connected at close")
	}

	e.mu.Lock()
	e.closing = true
	peers := make([]*wsPeer, 0, len(e.peers))
	for _, p := range e.peers {
		peers = append(peers, p)
	}
	e.mu.Unlock()

	for _, p := range peers {
		p.wmu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.wmu.Unlock()
		_ = p.conn.Close()
	}
	var err error
	if e.server != nil {
		err = e.server.Close()
	}
	e.in.close()
	e.wg.Wait()
	e.children.Wait()
	return err
}
