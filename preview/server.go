package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	showcase "github.com/flywave/go-showcase"
)

// Command is a message from a preview client.
type Command struct {
	Type string `json:"type"`
	Line int    `json:"line"`
	Text string `json:"text"`
	Font string `json:"font"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the preview: "/" a status page, "/ws" the event stream
// and command channel, "/frame" the current frame as JSON and
// "/scene.glb" the current scene as binary glTF.
func Handler(hub *Hub, sc *showcase.Showcase) http.Handler {
	s := &server{hub: hub, sc: sc}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/frame", s.serveFrame)
	mux.HandleFunc("/scene.glb", s.serveGLB)
	return mux
}

type server struct {
	hub *Hub
	sc  *showcase.Showcase
}

func (s *server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	f := s.sc.Frame()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html><head><title>showcase</title></head><body>
<h1>showcase</h1>
<p>objects: %d, triangles: %d, pending assets: %d, environment: %t</p>
<p>clients: %d</p>
<p><a href="/scene.glb">scene.glb</a> <a href="/frame">frame</a></p>
`, f.Objects, f.Triangles, f.Pending, f.Environment, s.hub.Count())
	for i := 1; i <= s.sc.Engraver.Lines(); i++ {
		st, err := s.sc.Engraver.Line(i)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "<p>line %d: %q (%s)</p>\n", i, html.EscapeString(st.Text), html.EscapeString(st.Font))
	}
	fmt.Fprint(w, "</body></html>\n")
}

func (s *server) serveFrame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sc.Frame())
}

func (s *server) serveGLB(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "model/gltf-binary")
	if err := showcase.ExportGLB(s.sc.Scene, w); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func (s *server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Register(conn)
	defer s.hub.Unregister(conn)
	s.hub.Send(conn, Event{Type: EventFrame, Data: s.sc.Frame()})

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.hub.Send(conn, Event{Type: EventError, Data: "invalid command: " + err.Error()})
			continue
		}
		// Each edit runs on its own goroutine so a slow font fetch does not
		// hold back later edits; the engraver keeps the newest one.
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn, cmd)
		}()
	}
}

func (s *server) handle(ctx context.Context, conn *websocket.Conn, cmd Command) {
	switch cmd.Type {
	case "engrave":
		err := s.sc.Engraver.Set(ctx, cmd.Line, cmd.Text, cmd.Font)
		if err != nil && !errors.Is(err, showcase.ErrSuperseded) {
			s.hub.Send(conn, Event{Type: EventError, Data: err.Error()})
		}
	case "frame":
		s.hub.Send(conn, Event{Type: EventFrame, Data: s.sc.Frame()})
	default:
		s.hub.Send(conn, Event{Type: EventError, Data: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

// HubRenderer broadcasts a frame event whenever the scene or the pending
// asset count changed since the last broadcast.
type HubRenderer struct {
	Hub *Hub

	mu      sync.Mutex
	version int
	pending int
	sent    bool
}

func (h *HubRenderer) Render(ctx context.Context, _ *showcase.Scene, f showcase.Frame) error {
	h.mu.Lock()
	changed := !h.sent || f.Version != h.version || f.Pending != h.pending
	h.version, h.pending, h.sent = f.Version, f.Pending, true
	h.mu.Unlock()
	if changed {
		h.Hub.Broadcast(Event{Type: EventFrame, Data: f})
	}
	return nil
}

// Attach forwards engraving changes of sc to the hub.
func Attach(hub *Hub, sc *showcase.Showcase) {
	sc.Engraver.OnApply(func(st showcase.LineState) {
		hub.Broadcast(Event{Type: EventEngraving, Data: map[string]interface{}{
			"line":      st.Line,
			"text":      st.Text,
			"font":      st.Font,
			"triangles": st.Triangles,
		}})
	})
}
