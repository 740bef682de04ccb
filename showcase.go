package showcase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// ModelGroup is the scene path the model parts are placed under.
const ModelGroup = "model"

var ErrNoModel = errors.New("model not loaded")

type Option func(*Showcase)

func WithLog(l *slog.Logger) Option {
	return func(s *Showcase) {
		if l != nil {
			s.log = l
		}
	}
}

// WithProgressListener is called after every settled asset load.
func WithProgressListener(fn func(Progress)) Option {
	return func(s *Showcase) { s.onProgress = fn }
}

// WithReadyListener is called once, after the initial load completed.
func WithReadyListener(fn func()) Option {
	return func(s *Showcase) { s.onReady = fn }
}

// Showcase ties a configured scene to its asset pipeline, font cache and
// engraver.
type Showcase struct {
	Scene    *Scene
	Pipeline *Pipeline
	Fonts    *FontCache
	Engraver *Engraver

	fetcher    Fetcher
	log        *slog.Logger
	onProgress func(Progress)
	onReady    func()

	mu       sync.Mutex
	cfg      Config
	model    *Model
	slots    Slots
	objects  map[*Part]*Object
	textures map[string]*Texture
	env      *Texture
}

func New(cfg Config, fetcher Fetcher, opts ...Option) (*Showcase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Showcase{
		cfg:      cfg,
		fetcher:  fetcher,
		log:      slog.Default(),
		textures: make(map[string]*Texture),
	}
	for _, o := range opts {
		o(s)
	}

	bg, _ := ParseHexColor(cfg.Background)
	s.Scene = NewScene(bg, cfg.SceneCamera())
	lights, err := cfg.SceneLights()
	if err != nil {
		return nil, err
	}
	for _, l := range lights {
		s.Scene.AddLight(l)
	}

	s.Fonts = NewFontCache(fetcher, s.log)
	for _, f := range cfg.Fonts {
		s.Fonts.Register(f.ID, f.URL)
	}
	ec, err := cfg.EngravingConfig()
	if err != nil {
		return nil, err
	}
	s.Engraver = NewEngraver(s.Scene, s.Fonts, ec, s.log)

	s.Pipeline = NewPipeline(fetcher,
		WithLogger(s.log),
		WithProgress(func(p Progress) {
			s.log.Info("loading", "url", p.URL, "loaded", p.Loaded, "total", p.Total)
			if s.onProgress != nil {
				s.onProgress(p)
			}
		}),
		WithReady(func() {
			if s.onReady != nil {
				s.onReady()
			}
		}),
	)
	return s, nil
}

func (s *Showcase) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Model returns the loaded model, or nil.
func (s *Showcase) Model() *Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Load fetches everything the configuration names and engraves the
// configured initial text. Failed loads leave their part of the scene
// empty; they are all reported in the returned error.
func (s *Showcase) Load(ctx context.Context) error {
	cfg := s.Config()
	if cfg.Decoder != "" {
		s.Pipeline.Add(Request{URL: cfg.Decoder, Kind: KindDecoder})
	}
	if cfg.Model.URL != "" {
		s.Pipeline.Add(Request{URL: cfg.Model.URL, Kind: KindModel, OnLoad: s.onModel})
	}
	for _, f := range cfg.Fonts {
		if !f.Preload {
			continue
		}
		id := f.ID
		s.Pipeline.Add(Request{URL: f.URL, Kind: KindFont, OnLoad: func(a *Asset) error {
			a.Font.ID = id
			s.Fonts.Put(a.Font)
			return nil
		}})
	}
	err := s.Pipeline.Run(ctx)

	for i, l := range cfg.Engraving.Lines {
		if l.Text == "" {
			continue
		}
		if lerr := s.Engraver.SetText(ctx, i+1, l.Text); lerr != nil {
			s.log.Error("initial engraving failed", "line", i+1, "error", lerr)
			if err == nil {
				err = lerr
			}
		}
	}
	return err
}

// onModel runs on the pipeline dispatch loop.
func (s *Showcase) onModel(a *Asset) error {
	model := a.Model
	s.mu.Lock()
	cfg := s.cfg
	s.model = model
	s.mu.Unlock()

	model.Position = vec3.T(cfg.Model.Offset)
	specs, err := cfg.SlotSpecs()
	if err != nil {
		return err
	}
	slots, slotErr := AssignSlots(model, specs)

	group := &Object{Name: ModelGroup, Position: model.Position}
	objects := make(map[*Part]*Object, len(model.Parts))
	for _, p := range model.Parts {
		o := &Object{Name: p.Name, Mesh: p.Mesh, Material: p.Material}
		objects[p] = o
		group.Children = append(group.Children, o)
	}
	s.Scene.Replace("", group)

	s.mu.Lock()
	s.slots = slots
	s.objects = objects
	s.mu.Unlock()
	s.log.Info("model loaded", "url", a.Request.URL, "parts", len(model.Parts), "triangles", model.Triangles())

	// The environment lights every part, slotted or not.
	if cfg.Environment.URL != "" {
		s.Pipeline.Add(Request{
			URL:     cfg.Environment.URL,
			Kind:    KindHDR,
			Texture: cfg.EnvironmentOptions(),
			OnLoad:  s.onEnvironment,
		})
	}
	if slotErr != nil {
		// Without slots there is nothing to bind textures to.
		return slotErr
	}
	bindings, err := cfg.TextureBindings()
	if err != nil {
		return err
	}
	for _, b := range bindings {
		s.Pipeline.Add(s.textureRequest(b))
	}
	return nil
}

func (s *Showcase) textureRequest(b TextureBinding) Request {
	return Request{
		URL:     b.URL,
		Kind:    KindTexture,
		Texture: b.Options(),
		OnLoad: func(a *Asset) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.textures[b.URL] = a.Texture
			var err error
			s.Scene.Update(func() { err = b.Apply(s.slots, a.Texture) })
			return err
		},
	}
}

func (s *Showcase) onEnvironment(a *Asset) error {
	s.Scene.SetEnvironment(a.Texture)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = a.Texture
	s.applyEnvironment(s.cfg.Environment.Intensity)
	return nil
}

// applyEnvironment sets the environment map on every part material.
// s.mu must be held.
func (s *Showcase) applyEnvironment(intensity float32) {
	if s.env == nil || s.model == nil {
		return
	}
	s.Scene.Update(func() {
		for _, p := range s.model.Parts {
			if p.Material != nil {
				p.Material.SetEnvironment(s.env, intensity)
			}
		}
	})
}

// ApplyMaterials re-resolves the slots of cfg against the loaded model and
// replaces the part materials, keeping already loaded textures and the
// environment. Textures not loaded yet are fetched. On a slot error the
// materials are left unchanged, only the environment intensity is applied.
func (s *Showcase) ApplyMaterials(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	specs, err := cfg.SlotSpecs()
	if err != nil {
		return err
	}
	bindings, err := cfg.TextureBindings()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.model == nil {
		s.mu.Unlock()
		return ErrNoModel
	}
	if _, err := ResolveSlots(s.model, specs); err != nil {
		s.cfg.Environment.Intensity = cfg.Environment.Intensity
		s.applyEnvironment(cfg.Environment.Intensity)
		s.mu.Unlock()
		return err
	}
	var missing []TextureBinding
	s.Scene.Update(func() {
		slots, _ := AssignSlots(s.model, specs)
		s.slots = slots
		for _, b := range bindings {
			tex, ok := s.textures[b.URL]
			if !ok {
				missing = append(missing, b)
				continue
			}
			if err := b.Apply(slots, tex); err != nil {
				s.log.Warn("texture binding", "url", b.URL, "error", err)
			}
		}
		for _, p := range s.model.Parts {
			if o, ok := s.objects[p]; ok {
				o.Material = p.Material
			}
		}
	})
	s.applyEnvironment(cfg.Environment.Intensity)
	s.cfg.Slots = cfg.Slots
	s.cfg.Textures = cfg.Textures
	s.cfg.Environment.Intensity = cfg.Environment.Intensity
	s.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}
	for _, b := range missing {
		s.Pipeline.Add(s.textureRequest(b))
	}
	return s.Pipeline.Run(ctx)
}

// Frame summarizes the scene together with the pending asset count.
func (s *Showcase) Frame() Frame {
	f := s.Scene.Snapshot()
	f.Pending = s.Pipeline.Pending()
	return f
}

// RenderLoop returns a loop that drives r over this showcase's scene.
func (s *Showcase) RenderLoop(r Renderer, fps int) *RenderLoop {
	return &RenderLoop{Scene: s.Scene, Renderer: r, FPS: fps, Pending: s.Pipeline.Pending, Log: s.log}
}
