package showcase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// EngravingGroup is the scene path holding the engraved lines.
const EngravingGroup = "engraving"

var ErrSuperseded = errors.New("superseded by a newer engraving request")

// LineStyle places one engraved line on the product.
type LineStyle struct {
	Offset vec3.T
	Size   float64
}

// EngravingConfig fixes how text is shaped and where each line goes.
type EngravingConfig struct {
	Lines       []LineStyle
	Text        TextOptions
	Material    *Material
	DefaultFont string
}

// LineState is the applied state of one line. An empty Text means the line
// has no mesh.
type LineState struct {
	Line      int
	Text      string
	Font      string
	Triangles int
	Object    *Object
}

func (s LineState) Empty() bool { return s.Object == nil }

type lineState struct {
	text    string
	font    string
	seq     uint64
	applied LineState
}

// Engraver regenerates the text mesh of a line on every edit. Requests for
// one line may overlap while fonts load; the most recently issued request
// wins and older ones return ErrSuperseded without touching the scene.
type Engraver struct {
	scene *Scene
	fonts *FontCache
	cfg   EngravingConfig
	log   *slog.Logger

	mu      sync.Mutex
	lines   []lineState
	onApply func(LineState)
}

func NewEngraver(scene *Scene, fonts *FontCache, cfg EngravingConfig, log *slog.Logger) *Engraver {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Lines) == 0 {
		cfg.Lines = []LineStyle{{}, {}}
	}
	if cfg.Material == nil {
		cfg.Material = NewMaterial()
	}
	e := &Engraver{
		scene: scene,
		fonts: fonts,
		cfg:   cfg,
		log:   log,
		lines: make([]lineState, len(cfg.Lines)),
	}
	for i := range e.lines {
		e.lines[i].font = cfg.DefaultFont
		e.lines[i].applied = LineState{Line: i + 1, Font: cfg.DefaultFont}
	}
	return e
}

// OnApply registers fn to be called after a line changed in the scene.
func (e *Engraver) OnApply(fn func(LineState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onApply = fn
}

func (e *Engraver) Lines() int { return len(e.lines) }

func (e *Engraver) line(n int) (*lineState, error) {
	if n < 1 || n > len(e.lines) {
		return nil, errors.Errorf("engraving line %d out of range [1,%d]", n, len(e.lines))
	}
	return &e.lines[n-1], nil
}

// Line returns the applied state of line n.
func (e *Engraver) Line(n int) (LineState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.line(n)
	if err != nil {
		return LineState{}, err
	}
	return st.applied, nil
}

// SetText changes the text of line n, keeping its font.
func (e *Engraver) SetText(ctx context.Context, n int, text string) error {
	return e.set(ctx, n, func(st *lineState) { st.text = text })
}

// SetFont changes the font of line n, keeping its text.
func (e *Engraver) SetFont(ctx context.Context, n int, font string) error {
	return e.set(ctx, n, func(st *lineState) { st.font = font })
}

// Set changes text and font of line n at once. An empty font keeps the
// current one.
func (e *Engraver) Set(ctx context.Context, n int, text, font string) error {
	return e.set(ctx, n, func(st *lineState) {
		st.text = text
		if font != "" {
			st.font = font
		}
	})
}

func (e *Engraver) set(ctx context.Context, n int, edit func(*lineState)) error {
	e.mu.Lock()
	st, err := e.line(n)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	edit(st)
	st.seq++
	seq, text, fontID := st.seq, st.text, st.font
	e.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return e.apply(n, seq, LineState{Line: n, Text: text, Font: fontID})
	}

	f, err := e.fonts.Get(ctx, fontID)
	if err != nil {
		e.rollback(n, seq)
		return errors.Wrapf(err, "engrave line %d", n)
	}
	opts := e.cfg.Text
	style := e.cfg.Lines[n-1]
	if style.Size > 0 {
		opts.Size = style.Size
	}
	tm, err := TextGeometry(f, text, opts)
	if err != nil {
		e.rollback(n, seq)
		return errors.Wrapf(err, "engrave line %d", n)
	}
	obj := &Object{
		Name:     lineName(n),
		Mesh:     tm.Mesh,
		Material: e.cfg.Material.Clone(),
		Position: style.Offset,
	}
	return e.apply(n, seq, LineState{Line: n, Text: text, Font: fontID, Triangles: tm.Triangles(), Object: obj})
}

// rollback returns the pending text and font of line n to the applied ones
// after request seq failed, unless a newer request was issued meanwhile.
func (e *Engraver) rollback(n int, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.lines[n-1]
	if st.seq == seq {
		st.text, st.font = st.applied.Text, st.applied.Font
	}
}

// apply swaps the line's scene object if seq is still the newest request.
func (e *Engraver) apply(n int, seq uint64, next LineState) error {
	e.mu.Lock()
	st := &e.lines[n-1]
	if st.seq != seq {
		e.mu.Unlock()
		e.log.Debug("engraving superseded", "line", n, "text", next.Text, "font", next.Font)
		return ErrSuperseded
	}
	if next.Object == nil {
		e.scene.Remove(EngravingGroup + "/" + lineName(n))
	} else {
		e.scene.Replace(EngravingGroup, next.Object)
	}
	st.applied = next
	fn := e.onApply
	e.mu.Unlock()

	e.log.Info("engraving applied", "line", n, "text", next.Text, "font", next.Font, "triangles", next.Triangles)
	if fn != nil {
		fn(next)
	}
	return nil
}

func lineName(n int) string {
	return fmt.Sprintf("line%d", n)
}
