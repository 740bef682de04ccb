package showcase

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	BuiltinScheme = "builtin"

	defaultUserAgent   = "go-showcase/1.0"
	defaultHTTPTimeout = 60 * time.Second
)

// Fetcher resolves an asset url to its bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// DirFetcher reads assets from a file system. Scene files reference assets
// both as "/textures/x.png" and "textures/x.png", so a leading slash is
// ignored.
type DirFetcher struct {
	FS fs.FS
}

func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{FS: os.DirFS(dir)}
}

func (d *DirFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimLeft(u, "/")
	if name == "" || !fs.ValidPath(name) {
		return nil, errors.Errorf("invalid asset path %q", u)
	}
	data, err := fs.ReadFile(d.FS, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", u)
	}
	return data, nil
}

// HTTPFetcher downloads assets. Relative urls are resolved against BaseURL.
type HTTPFetcher struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: defaultHTTPTimeout},
		BaseURL:   baseURL,
		UserAgent: defaultUserAgent,
	}
}

func (h *HTTPFetcher) resolve(u string) (string, error) {
	if h.BaseURL == "" {
		return u, nil
	}
	base, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (h *HTTPFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	full, err := h.resolve(u)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", u)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", u)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", u)
	}
	return data, nil
}

var builtinFonts = map[string][]byte{
	"goregular":         goregular.TTF,
	"gobold":            gobold.TTF,
	"lmroman10-regular": lmroman10regular.TTF,
	"lmroman10-bold":    lmroman10bold.TTF,
	"lmmono10-regular":  lmmono10regular.TTF,
}

// BuiltinFonts returns the names served under the builtin: scheme.
func BuiltinFonts() []string {
	names := make([]string, 0, len(builtinFonts))
	for n := range builtinFonts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuiltinFetcher serves the embedded fonts, "builtin:goregular" and so on.
type BuiltinFetcher struct{}

func (BuiltinFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(u, BuiltinScheme+":")
	data, ok := builtinFonts[name]
	if !ok {
		return nil, errors.Wrapf(fs.ErrNotExist, "builtin %q", name)
	}
	return data, nil
}

// Router picks a Fetcher by url scheme. Urls without a scheme go to Default.
type Router struct {
	Default Fetcher
	Schemes map[string]Fetcher
}

// NewRouter returns a Router serving plain paths from dir, http(s) urls over
// the network and builtin: fonts from memory.
func NewRouter(dir string) *Router {
	h := NewHTTPFetcher("")
	return &Router{
		Default: NewDirFetcher(dir),
		Schemes: map[string]Fetcher{
			"http":        h,
			"https":       h,
			BuiltinScheme: BuiltinFetcher{},
		},
	}
}

func scheme(u string) string {
	i := strings.Index(u, ":")
	if i <= 1 {
		// no scheme, or a windows drive letter
		return ""
	}
	s := strings.ToLower(u[:i])
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '+' && c != '-' && c != '.' {
			return ""
		}
	}
	return s
}

func (r *Router) Fetch(ctx context.Context, u string) ([]byte, error) {
	if f, ok := r.Schemes[scheme(u)]; ok {
		return f.Fetch(ctx, u)
	}
	if r.Default == nil {
		return nil, errors.Errorf("no fetcher for %q", u)
	}
	return r.Default.Fetch(ctx, u)
}

// ResolveURL resolves ref, as written inside the asset at base, to a url the
// Fetcher that served base can serve too.
func ResolveURL(base, ref string) string {
	if scheme(ref) != "" {
		return ref
	}
	s := scheme(base)
	if s == "http" || s == "https" {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	if p, err := url.PathUnescape(ref); err == nil {
		ref = p
	}
	if s != "" {
		base = base[len(s)+1:]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	out := ref
	if !strings.HasPrefix(ref, "/") {
		out = path.Join(path.Dir(base), ref)
	}
	if s != "" {
		return s + ":" + out
	}
	return out
}
