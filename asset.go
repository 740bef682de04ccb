package showcase

import (
	"path"
	"strings"
)

type Kind int

const (
	KindModel Kind = iota
	KindTexture
	KindHDR
	KindFont
	KindDecoder
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindTexture:
		return "texture"
	case KindHDR:
		return "hdr"
	case KindFont:
		return "font"
	case KindDecoder:
		return "decoder"
	}
	return "unknown"
}

// Request is a single asset load. OnLoad runs on the pipeline's dispatch
// loop, never concurrently with another OnLoad of the same pipeline.
type Request struct {
	URL  string
	Kind Kind

	// Texture holds the per-load flags applied to texture and HDR results.
	Texture TextureOptions

	OnLoad  func(a *Asset) error
	OnError func(err error)
}

// Asset is a resolved Request. Exactly one of the typed fields is set
// according to Kind, Data always holds the fetched bytes.
type Asset struct {
	Request *Request
	Data    []byte

	Model   *Model
	Texture *Texture
	Font    *Font
}

// Ext returns the lower-cased extension of the request url without the dot.
func (r *Request) Ext() string {
	u := r.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u)), ".")
}
