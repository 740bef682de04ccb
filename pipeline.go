package showcase

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// Progress is reported after every settled request, successful or not.
type Progress struct {
	Loaded int
	Total  int
	URL    string
	Err    error
}

// Fraction is Loaded/Total, 1 for an empty pipeline.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Loaded) / float64(p.Total)
}

// LoadError records a failed request.
type LoadError struct {
	URL  string
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string {
	return "load " + e.Kind.String() + " " + e.URL + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

type PipelineOption func(*Pipeline)

func WithProgress(fn func(Progress)) PipelineOption {
	return func(p *Pipeline) { p.onProgress = fn }
}

func WithReady(fn func()) PipelineOption {
	return func(p *Pipeline) { p.onReady = fn }
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

type result struct {
	req   *Request
	asset *Asset
	err   error
}

// Pipeline loads assets concurrently and hands them to their consumers one
// at a time. Fetching and decoding happen on per-request goroutines, the
// OnLoad/OnError callbacks and progress reports all run on the goroutine
// that called Run.
type Pipeline struct {
	fetcher    Fetcher
	log        *slog.Logger
	onProgress func(Progress)
	onReady    func()

	mu       sync.Mutex
	queue    []*Request
	total    int
	loaded   int
	inflight int
	decoders map[string][]byte

	run     sync.Mutex
	wake    chan struct{}
	results chan result
	ready   sync.Once
}

func NewPipeline(fetcher Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:  fetcher,
		log:      slog.Default(),
		decoders: make(map[string][]byte),
		wake:     make(chan struct{}, 1),
		results:  make(chan result),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Add queues a request. It may be called before Run, from a callback, or
// from another goroutine while Run is active; the total grows accordingly.
func (p *Pipeline) Add(req Request) {
	p.mu.Lock()
	p.queue = append(p.queue, &req)
	p.total++
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Progress returns the current counters.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{Loaded: p.loaded, Total: p.total}
}

// Pending is the number of requests not yet settled.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - p.loaded
}

// Decoder returns the bytes of a registered geometry decoder.
func (p *Pipeline) Decoder(name string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.decoders[name]
	return b, ok
}

// Run starts every queued request and dispatches completions until nothing
// is queued or in flight. Load failures do not stop the pipeline; they are
// joined into the returned error. Concurrent calls run one after another.
func (p *Pipeline) Run(ctx context.Context) error {
	p.run.Lock()
	defer p.run.Unlock()

	var errs []error
	for {
		p.mu.Lock()
		start := p.queue
		p.queue = nil
		p.inflight += len(start)
		idle := p.inflight == 0
		p.mu.Unlock()

		for _, req := range start {
			go p.load(ctx, req)
		}
		if idle {
			break
		}

		select {
		case r := <-p.results:
			if err := p.dispatch(r); err != nil {
				errs = append(errs, err)
			}
		case <-p.wake:
		}
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
		return stderrors.Join(errs...)
	}
	p.ready.Do(func() {
		if p.onReady != nil {
			p.onReady()
		}
	})
	return stderrors.Join(errs...)
}

func (p *Pipeline) load(ctx context.Context, req *Request) {
	var (
		asset *Asset
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			asset, err = nil, errors.Errorf("decode %s: panic: %v", req.URL, r)
		}
		p.results <- result{req: req, asset: asset, err: err}
	}()
	asset, err = p.fetchAndDecode(ctx, req)
}

func (p *Pipeline) fetchAndDecode(ctx context.Context, req *Request) (*Asset, error) {
	data, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	a := &Asset{Request: req, Data: data}
	switch req.Kind {
	case KindModel:
		dec := DecoderFactory(req.Ext())
		if dec == nil {
			return nil, errors.Errorf("no decoder for %q models", req.Ext())
		}
		if ru, ok := dec.(ResourceUser); ok {
			ru.SetResources(FetchResources(ctx, p.fetcher, req.URL))
		}
		a.Model, err = dec.Decode(req.URL, data)
	case KindTexture:
		a.Texture, err = DecodeTexture(req.URL, data, req.Texture)
	case KindHDR:
		a.Texture, err = DecodeEnvironment(req.URL, data, req.Texture)
	case KindFont:
		a.Font, err = ParseFont(req.URL, data)
	case KindDecoder:
	default:
		err = errors.Errorf("unknown asset kind %d", req.Kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// dispatch runs on the Run goroutine only.
func (p *Pipeline) dispatch(r result) error {
	err := r.err
	if err == nil {
		if r.req.Kind == KindDecoder {
			p.mu.Lock()
			p.decoders[r.req.URL] = r.asset.Data
			p.mu.Unlock()
		}
		if r.req.OnLoad != nil {
			err = r.req.OnLoad(r.asset)
		}
	}
	if err != nil {
		err = &LoadError{URL: r.req.URL, Kind: r.req.Kind, Err: err}
		if r.req.OnError != nil {
			r.req.OnError(err)
		} else {
			p.log.Error("asset load failed", "url", r.req.URL, "kind", r.req.Kind.String(), "error", err)
		}
	} else {
		p.log.Debug("asset loaded", "url", r.req.URL, "kind", r.req.Kind.String())
	}

	p.mu.Lock()
	p.inflight--
	p.loaded++
	prog := Progress{Loaded: p.loaded, Total: p.total, URL: r.req.URL, Err: err}
	p.mu.Unlock()

	if p.onProgress != nil {
		p.onProgress(prog)
	}
	return err
}
