package showcase

import (
	"context"
	"log/slog"
	"time"

	"github.com/flywave/go3d/vec3"
)

// Frame is what a Renderer gets every tick: a summary of the scene at that
// moment. Renderers that need geometry read it from Scene.
type Frame struct {
	Seq         int64     `json:"seq"`
	Time        time.Time `json:"time"`
	Version     int       `json:"version"`
	Objects     int       `json:"objects"`
	Triangles   int       `json:"triangles"`
	Pending     int       `json:"pending"`
	Environment bool      `json:"environment"`
	Camera      Camera    `json:"camera"`
}

// Snapshot summarizes the scene.
func (s *Scene) Snapshot() Frame {
	f := Frame{Time: time.Now()}
	s.Walk(func(_ string, o *Object, _ vec3.T) bool {
		if o.Mesh != nil {
			f.Objects++
			for _, fg := range o.Mesh.FaceGroup {
				f.Triangles += len(fg.Faces)
			}
		}
		return true
	})
	s.mu.RLock()
	f.Version = s.version
	f.Environment = s.environment != nil
	f.Camera = s.camera
	s.mu.RUnlock()
	return f
}

type Renderer interface {
	Render(ctx context.Context, s *Scene, f Frame) error
}

type RendererFunc func(ctx context.Context, s *Scene, f Frame) error

func (fn RendererFunc) Render(ctx context.Context, s *Scene, f Frame) error {
	return fn(ctx, s, f)
}

// RenderLoop drives a Renderer at a fixed rate. It runs from start to
// shutdown and does not wait for assets; Pending reports how many are still
// loading.
type RenderLoop struct {
	Scene    *Scene
	Renderer Renderer
	FPS      int
	Pending  func() int
	Log      *slog.Logger
}

// Run renders until ctx is done. Render errors are logged and the loop
// carries on.
func (l *RenderLoop) Run(ctx context.Context) error {
	fps := l.FPS
	if fps <= 0 {
		fps = 60
	}
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		seq++
		f := l.Scene.Snapshot()
		f.Seq = seq
		if l.Pending != nil {
			f.Pending = l.Pending()
		}
		if err := l.Renderer.Render(ctx, l.Scene, f); err != nil {
			log.Warn("render failed", "seq", seq, "error", err)
		}
	}
}

// Loop is RenderLoop.Run without a pending counter.
func Loop(ctx context.Context, s *Scene, r Renderer, fps int) error {
	return (&RenderLoop{Scene: s, Renderer: r, FPS: fps}).Run(ctx)
}
