package showcase

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Font is a parsed typeface ready for glyph outline extraction.
type Font struct {
	ID   string
	face *font.Face
}

// ParseFont parses TTF, OTF and TTC data. For collections the first face is
// used.
func ParseFont(id string, data []byte) (*Font, error) {
	faces, err := font.ParseTTC(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse font %s", id)
	}
	if len(faces) == 0 {
		return nil, errors.Errorf("parse font %s: no faces", id)
	}
	return &Font{ID: id, face: faces[0]}, nil
}

// Upem is the number of font units per em.
func (f *Font) Upem() float32 {
	return float32(f.face.Upem())
}

// Glyph maps a rune to its glyph. Runes the font does not cover map to the
// .notdef glyph with ok false.
func (f *Font) Glyph(r rune) (gid font.GID, ok bool) {
	return f.face.NominalGlyph(r)
}

// Advance is the horizontal advance of a glyph in font units.
func (f *Font) Advance(gid font.GID) float32 {
	return f.face.HorizontalAdvance(gid)
}

// Outline returns the outline segments of a glyph in font units, y up.
// Bitmap and SVG glyphs have no outline.
func (f *Font) Outline(gid font.GID) ([]opentype.Segment, bool) {
	o, ok := f.face.GlyphData(gid).(font.GlyphOutline)
	if !ok {
		return nil, false
	}
	return o.Segments, true
}

var ErrUnknownFont = errors.New("unknown font")

// FontCache resolves font ids to parsed fonts. Entries are never evicted,
// and concurrent first requests for one id share a single fetch.
type FontCache struct {
	fetcher Fetcher
	log     *slog.Logger

	mu      sync.RWMutex
	fonts   map[string]*Font
	sources map[string]string
	fetches int

	group singleflight.Group
}

func NewFontCache(fetcher Fetcher, log *slog.Logger) *FontCache {
	if log == nil {
		log = slog.Default()
	}
	return &FontCache{
		fetcher: fetcher,
		log:     log,
		fonts:   make(map[string]*Font),
		sources: make(map[string]string),
	}
}

// Register maps a font id to the url it is fetched from.
func (c *FontCache) Register(id, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[id] = url
}

// Put stores an already parsed font, e.g. one preloaded by the pipeline.
func (c *FontCache) Put(f *Font) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fonts[f.ID]; !ok {
		c.fonts[f.ID] = f
	}
}

// Cached returns the font without fetching.
func (c *FontCache) Cached(id string) (*Font, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fonts[id]
	return f, ok
}

// Fetches counts the fetches issued so far.
func (c *FontCache) Fetches() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches
}

// Source returns the url an id is fetched from. Registered ids come first,
// then builtin fonts, then ids that already look like a path or url.
func (c *FontCache) Source(id string) (string, error) {
	c.mu.RLock()
	u, ok := c.sources[id]
	c.mu.RUnlock()
	switch {
	case ok:
		return u, nil
	case builtinFonts[id] != nil:
		return BuiltinScheme + ":" + id, nil
	case scheme(id) != "" || strings.ContainsAny(id, "/."):
		return id, nil
	}
	return "", errors.Wrapf(ErrUnknownFont, "%q", id)
}

// Get returns the font for id, fetching and parsing it on first use. A
// cancelled ctx abandons the wait; the shared fetch still completes and
// fills the cache for later callers.
func (c *FontCache) Get(ctx context.Context, id string) (*Font, error) {
	if f, ok := c.Cached(id); ok {
		return f, nil
	}
	src, err := c.Source(id)
	if err != nil {
		return nil, err
	}
	ch := c.group.DoChan(id, func() (interface{}, error) {
		if f, ok := c.Cached(id); ok {
			return f, nil
		}
		c.mu.Lock()
		c.fetches++
		c.mu.Unlock()

		data, err := c.fetcher.Fetch(context.WithoutCancel(ctx), src)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch font %s", id)
		}
		f, err := ParseFont(id, data)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.fonts[id] = f
		c.mu.Unlock()
		c.log.Debug("font loaded", "id", id, "url", src)
		return f, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Font), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
