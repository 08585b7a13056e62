package probe

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tdh8316/osintagg/internal/httpx"
	"github.com/tdh8316/osintagg/internal/registry"
)

// drainLimit bounds how much of a response body is discarded so the
// connection can be reused.
const drainLimit = 64 << 10

type Engine struct {
	client httpx.Doer
	cfg    Config
	log    logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error

	// Cache compiled regexCheck per platform
	regexCache sync.Map // platform name -> *regexp2.Regexp
}

func NewEngine(client httpx.Doer, cfg Config, logger logrus.FieldLogger) *Engine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpx.DefaultTimeout
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &Engine{
		client: client,
		cfg:    cfg,
		log:    logger,
		sleep:  sleepContext,
	}
}

// Probe checks username against every spec in order and returns the outcomes
// as a lazy, single-use sequence. Malformed specs are reported before any
// request is made; request-level failures become StatusError outcomes.
func (e *Engine) Probe(ctx context.Context, username string, specs []registry.PlatformSpec) (iter.Seq[Outcome], error) {
	for _, sp := range specs {
		if err := sp.Validate(); err != nil {
			return nil, err
		}
	}
	specs = slices.Clone(specs)

	var consumed atomic.Bool
	return func(yield func(Outcome) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		if e.cfg.Concurrency > 1 && len(specs) > 1 {
			e.probeConcurrent(ctx, username, specs, yield)
			return
		}
		e.probeSequential(ctx, username, specs, yield)
	}, nil
}

func (e *Engine) probeSequential(ctx context.Context, username string, specs []registry.PlatformSpec, yield func(Outcome) bool) {
	for i, sp := range specs {
		if ctx.Err() != nil {
			return
		}
		o := e.Check(ctx, username, sp)
		if ctx.Err() != nil {
			// Interrupted mid-request; the platform was not really checked.
			return
		}
		if !yield(o) {
			return
		}
		if i == len(specs)-1 {
			return
		}
		if err := e.sleep(ctx, e.cfg.Delay); err != nil {
			return
		}
	}
}

func (e *Engine) probeConcurrent(ctx context.Context, username string, specs []registry.PlatformSpec, yield func(Outcome) bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if e.cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.cfg.Delay), 1)
	}

	type indexed struct {
		index   int
		outcome Outcome
	}

	workers := min(e.cfg.Concurrency, len(specs))
	jobs := make(chan int) // Indexes into specs.
	results := make(chan indexed, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				results <- indexed{index: i, outcome: e.Check(ctx, username, specs[i])}
			}
		}()
	}

	go func() {
		defer close(results)
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		for i := range specs {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	// Re-establish registry order before yielding.
	pending := make(map[int]Outcome, workers)
	next := 0
	for res := range results {
		if ctx.Err() != nil {
			go func() {
				for range results {
				}
			}()
			return
		}
		pending[res.index] = res.outcome
		for {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if !yield(o) {
				cancel()
				go func() {
					for range results {
					}
				}()
				return
			}
		}
	}
}

// Check probes a single platform. It never returns an error; failures are
// folded into the outcome.
func (e *Engine) Check(ctx context.Context, username string, sp registry.PlatformSpec) Outcome {
	out := Outcome{Platform: sp.Name}
	logger := e.log.WithField("platform", sp.Name)

	// Username not valid for this platform => not found, no request.
	if sp.RegexCheck != "" {
		re, err := e.getRegex(sp.Name, sp.RegexCheck)
		if err == nil {
			if ok, err := re.MatchString(username); err == nil && !ok {
				logger.Debug("username rejected by regex_check, skipping request")
				out.Status = StatusNotFound
				return out
			}
		}
	}

	target := registry.FormatURL(sp.URLTemplate, username)
	method := strings.ToUpper(strings.TrimSpace(sp.Method))
	if method == "" {
		method = http.MethodGet
	}
	logger = logger.WithField("url", target)

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := httpx.NewRequest(reqCtx, method, target, nil, e.cfg.UserAgent)
	if err != nil {
		return failed(out, KindTransport, "request failed: "+err.Error())
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		kind, detail := Classify(err)
		logger.WithError(err).WithField("kind", kind).Debug("probe failed")
		return failed(out, kind, detail)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	out.StatusCode = resp.StatusCode
	logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("probe completed")

	switch resp.StatusCode {
	case sp.FoundStatus:
		out.Status = StatusFound
		out.URL = target
	case sp.NotFoundStatus:
		out.Status = StatusNotFound
	default:
		out = failed(out, KindUnexpectedStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return out
}

func failed(out Outcome, kind ErrorKind, detail string) Outcome {
	out.Status = StatusError
	out.URL = ""
	out.ErrorKind = kind
	out.Detail = detail
	return out
}

func (e *Engine) getRegex(platform, expr string) (*regexp2.Regexp, error) {
	if v, ok := e.regexCache.Load(platform); ok {
		return v.(*regexp2.Regexp), nil
	}
	re, err := regexp2.Compile(expr, 0)
	if err != nil {
		return nil, err
	}
	e.regexCache.Store(platform, re)
	return re, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
