package showcase

import (
	"context"
	"image/color"
	"sync"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func newTestEngraver(t *testing.T, fetcher Fetcher) (*Engraver, *Scene, *FontCache) {
	t.Helper()
	scene := NewScene(color.RGBA{240, 240, 240, 255}, Camera{Fov: 75, Aspect: 1, Near: 0.01, Far: 2})
	fonts := NewFontCache(fetcher, nil)
	cfg := EngravingConfig{
		Lines:       []LineStyle{{Offset: vec3.T{0, 0.012, 0.021}}, {Offset: vec3.T{0, 0.004, 0.021}}},
		Text:        TextOptions{Size: 0.006, Depth: 0.0004, Align: AlignCenter},
		DefaultFont: "goregular",
	}
	return NewEngraver(scene, fonts, cfg, nil), scene, fonts
}

func TestEngraverSingleMeshPerLine(t *testing.T) {
	e, scene, _ := newTestEngraver(t, BuiltinFetcher{})
	ctx := context.Background()

	require.NoError(t, e.SetText(ctx, 1, ""))
	assert.Zero(t, scene.Count(EngravingGroup))

	require.NoError(t, e.SetText(ctx, 1, "A"))
	assert.Equal(t, 1, scene.Count(EngravingGroup+"/line1"))

	for _, text := range []string{"AB", "ABC", "Chloe", "C"} {
		require.NoError(t, e.SetText(ctx, 1, text))
		assert.Equal(t, 1, scene.Count(EngravingGroup), text)
	}

	st, err := e.Line(1)
	require.NoError(t, err)
	assert.Equal(t, "C", st.Text)
	assert.Equal(t, "goregular", st.Font)
	assert.Greater(t, st.Triangles, 0)

	obj, err := scene.Find(EngravingGroup + "/line1")
	require.NoError(t, err)
	assert.Same(t, st.Object, obj)
	assert.Equal(t, vec3.T{0, 0.012, 0.021}, obj.Position)

	require.NoError(t, e.SetText(ctx, 1, "   "))
	assert.Zero(t, scene.Count(EngravingGroup))
	st, err = e.Line(1)
	require.NoError(t, err)
	assert.True(t, st.Empty())
}

func TestEngraverLinesAreIndependent(t *testing.T) {
	e, scene, _ := newTestEngraver(t, BuiltinFetcher{})
	ctx := context.Background()

	var mu sync.Mutex
	var applied []LineState
	e.OnApply(func(st LineState) {
		mu.Lock()
		applied = append(applied, st)
		mu.Unlock()
	})

	require.NoError(t, e.Set(ctx, 1, "Top", ""))
	require.NoError(t, e.Set(ctx, 2, "Bottom", "gobold"))
	assert.Equal(t, 2, scene.Count(EngravingGroup))

	require.NoError(t, e.SetFont(ctx, 1, "lmroman10-regular"))
	st, err := e.Line(1)
	require.NoError(t, err)
	assert.Equal(t, "Top", st.Text)
	assert.Equal(t, "lmroman10-regular", st.Font)

	st, err = e.Line(2)
	require.NoError(t, err)
	assert.Equal(t, "gobold", st.Font)

	mu.Lock()
	assert.Len(t, applied, 3)
	mu.Unlock()

	assert.Equal(t, 2, e.Lines())
	assert.Error(t, e.SetText(ctx, 3, "x"))
	_, err = e.Line(0)
	assert.Error(t, err)
}

func TestEngraverLatestRequestWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, u string) ([]byte, error) {
		if u == "/fonts/slow.ttf" {
			close(entered)
			<-release
			return goregular.TTF, nil
		}
		return BuiltinFetcher{}.Fetch(ctx, u)
	})
	e, scene, fonts := newTestEngraver(t, fetcher)
	fonts.Register("slow", "/fonts/slow.ttf")
	ctx := context.Background()

	older := make(chan error, 1)
	go func() { older <- e.Set(ctx, 1, "older", "slow") }()
	<-entered

	require.NoError(t, e.Set(ctx, 1, "newer", "gobold"))
	close(release)
	assert.ErrorIs(t, <-older, ErrSuperseded)

	st, err := e.Line(1)
	require.NoError(t, err)
	assert.Equal(t, "newer", st.Text)
	assert.Equal(t, "gobold", st.Font)
	assert.Equal(t, 1, scene.Count(EngravingGroup))

	obj, err := scene.Find(EngravingGroup + "/line1")
	require.NoError(t, err)
	assert.Same(t, st.Object, obj)
}

func TestEngraverUnknownFont(t *testing.T) {
	e, scene, _ := newTestEngraver(t, BuiltinFetcher{})
	ctx := context.Background()
	require.NoError(t, e.SetText(ctx, 2, "keep"))

	err := e.SetFont(ctx, 2, "helvetiker")
	assert.ErrorIs(t, err, ErrUnknownFont)

	// The failed request leaves the applied mesh alone.
	st, err := e.Line(2)
	require.NoError(t, err)
	assert.Equal(t, "keep", st.Text)
	assert.Equal(t, 1, scene.Count(EngravingGroup+"/line2"))
}

func TestEngraverFailedFontIsNotKept(t *testing.T) {
	e, scene, _ := newTestEngraver(t, BuiltinFetcher{})
	ctx := context.Background()
	require.NoError(t, e.SetText(ctx, 2, "keep"))
	assert.ErrorIs(t, e.SetFont(ctx, 2, "helvetiker"), ErrUnknownFont)

	// The next edit engraves with the last font that worked.
	require.NoError(t, e.SetText(ctx, 2, "next"))
	st, err := e.Line(2)
	require.NoError(t, err)
	assert.Equal(t, "next", st.Text)
	assert.Equal(t, "goregular", st.Font)
	assert.Equal(t, 1, scene.Count(EngravingGroup+"/line2"))

	// A failed combined edit drops its text as well.
	assert.ErrorIs(t, e.Set(ctx, 2, "lost", "helvetiker"), ErrUnknownFont)
	require.NoError(t, e.SetFont(ctx, 2, "gobold"))
	st, err = e.Line(2)
	require.NoError(t, err)
	assert.Equal(t, "next", st.Text)
	assert.Equal(t, "gobold", st.Font)
}
