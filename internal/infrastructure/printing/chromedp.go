package printing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultLoadTimeout    = 30 * time.Second
	defaultImageTimeout   = 5 * time.Second
	defaultViewportWidth  = 1200
	defaultViewportHeight = 1600
)

// errNetworkIdleTimeout is returned when the document's requests never settle
var errNetworkIdleTimeout = errors.New("timed out waiting for network idle")

// PrintOptions are the page.PrintToPDF parameters
type PrintOptions struct {
	PaperWidth        float64
	PaperHeight       float64
	PrintBackground   bool
	PreferCSSPageSize bool
}

// Page is one tab of a launched browser
type Page interface {
	SetViewport(ctx context.Context, width, height int) error
	// SetContent loads html and waits until the network is idle
	SetContent(ctx context.Context, html string, idleTimeout time.Duration) error
	// WaitForImages resolves once every image has loaded, failed or timed out
	WaitForImages(ctx context.Context, perImage time.Duration) error
	PrintPDF(ctx context.Context, opts PrintOptions) ([]byte, error)
}

// Browser launches a fresh browser. The release func must always be called.
type Browser interface {
	Launch(ctx context.Context) (Page, func(), error)
}

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// ExecPath of the Chrome binary; empty lets chromedp find one
	ExecPath string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox      bool
	LoadTimeout    time.Duration
	ImageTimeout   time.Duration
	ViewportWidth  int
	ViewportHeight int
	Logger         *zap.Logger
}

// ChromedpConfigFromRender maps the [render] section
func ChromedpConfigFromRender(cfg config.RenderConfig, log *zap.Logger) *ChromedpConfig {
	return &ChromedpConfig{
		ExecPath:       cfg.ChromePath,
		NoSandbox:      cfg.NoSandbox,
		LoadTimeout:    cfg.LoadTimeout,
		ImageTimeout:   cfg.ImageTimeout,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Logger:         log,
	}
}

// ChromedpRenderer renders HTML to PDF with a new headless Chrome per request
type ChromedpRenderer struct {
	config  *ChromedpConfig
	browser Browser
	logger  *zap.Logger
}

// NewChromedpRenderer creates a renderer that launches Chrome through chromedp
func NewChromedpRenderer(cfg *ChromedpConfig) *ChromedpRenderer {
	cfg = withDefaults(cfg)
	return NewRendererWithBrowser(cfg, &chromedpBrowser{config: cfg, logger: cfg.Logger})
}

// NewRendererWithBrowser creates a renderer on top of any Browser
func NewRendererWithBrowser(cfg *ChromedpConfig, browser Browser) *ChromedpRenderer {
	cfg = withDefaults(cfg)
	return &ChromedpRenderer{
		config:  cfg,
		browser: browser,
		logger:  cfg.Logger,
	}
}

func withDefaults(cfg *ChromedpConfig) *ChromedpConfig {
	if cfg == nil {
		cfg = &ChromedpConfig{}
	}
	out := *cfg
	if out.LoadTimeout <= 0 {
		out.LoadTimeout = defaultLoadTimeout
	}
	if out.ImageTimeout <= 0 {
		out.ImageTimeout = defaultImageTimeout
	}
	if out.ViewportWidth <= 0 {
		out.ViewportWidth = defaultViewportWidth
	}
	if out.ViewportHeight <= 0 {
		out.ViewportHeight = defaultViewportHeight
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}

// Render converts HTML content to an A4 PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil || strings.TrimSpace(req.HTML) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "HTML content is required")
	}

	start := time.Now()
	log := r.logger.With(zap.String("filename", req.Filename))

	pg, release, err := r.browser.Launch(ctx)
	if err != nil {
		log.Error("Failed to launch browser", zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to launch browser: "+err.Error(), err)
	}
	defer release()

	if err := pg.SetViewport(ctx, r.config.ViewportWidth, r.config.ViewportHeight); err != nil {
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to set viewport: "+err.Error(), err)
	}

	if err := pg.SetContent(ctx, req.HTML, r.config.LoadTimeout); err != nil {
		if errors.Is(err, errNetworkIdleTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.WrapDomainError(shared.CodeRenderTimeout,
				fmt.Sprintf("Page did not finish loading within %v", r.config.LoadTimeout), err)
		}
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to load content: "+err.Error(), err)
	}

	// Best effort: a stuck image still prints as broken
	if err := pg.WaitForImages(ctx, r.config.ImageTimeout); err != nil {
		log.Warn("Image wait failed", zap.Error(err))
	}

	data, err := pg.PrintPDF(ctx, PrintOptions{
		PaperWidth:        a4WidthInches,
		PaperHeight:       a4HeightInches,
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		log.Error("PDF print failed", zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to print PDF: "+err.Error(), err)
	}
	if !IsPDF(data) {
		return nil, shared.NewDomainError(shared.CodeRenderFailure, "Browser returned an invalid PDF")
	}

	duration := time.Since(start)
	log.Info("PDF rendered successfully",
		zap.Int("bytes", len(data)),
		zap.Duration("duration", duration))

	return &RenderResult{
		PDFData:        data,
		RenderDuration: duration,
	}, nil
}

// chromedpBrowser starts one Chrome process per Launch
type chromedpBrowser struct {
	config *ChromedpConfig
	logger *zap.Logger
}

func (b *chromedpBrowser) Launch(ctx context.Context) (Page, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if b.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if b.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			b.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	release := func() {
		tabCancel()
		allocCancel()
	}

	// Starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		release()
		return nil, func() {}, err
	}
	return &chromedpPage{ctx: tabCtx}, release, nil
}

// chromedpPage drives a tab. Actions run on the tab context; the ctx passed
// to each method bounds how long the caller waits.
type chromedpPage struct {
	ctx context.Context
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(p.ctx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromedpPage) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height)))
}

// SetContent replaces the blank document with html and waits until no request of
// the new document has been in flight for networkQuiet.
func (p *chromedpPage) SetContent(ctx context.Context, html string, idleTimeout time.Duration) error {
	if err := p.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		return err
	}

	tracker := newRequestTracker()
	listenCtx, stop := context.WithCancel(p.ctx)
	defer stop()
	chromedp.ListenTarget(listenCtx, tracker.observe)

	if err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})); err != nil {
		return err
	}
	tracker.touch(time.Now())

	deadline := time.NewTimer(idleTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(idlePollInterval)
	defer poll.Stop()
	for {
		select {
		case now := <-poll.C:
			if tracker.idle(now) {
				return nil
			}
		case <-deadline.C:
			return errNetworkIdleTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

const (
	networkQuiet     = 500 * time.Millisecond
	idlePollInterval = 50 * time.Millisecond
)

// requestTracker counts in-flight network requests from CDP events.
// data: URLs are not counted since they never touch the network.
type requestTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]bool
	lastActivity time.Time
}

func newRequestTracker() *requestTracker {
	return &requestTracker{inflight: make(map[network.RequestID]bool), lastActivity: time.Now()}
}

func (t *requestTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request != nil && strings.HasPrefix(e.Request.URL, "data:") {
			return
		}
		t.inflight[e.RequestID] = true
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.lastActivity = time.Now()
}

func (t *requestTracker) touch(now time.Time) {
	t.mu.Lock()
	t.lastActivity = now
	t.mu.Unlock()
}

// idle reports whether nothing is in flight and nothing happened for networkQuiet
func (t *requestTracker) idle(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && now.Sub(t.lastActivity) >= networkQuiet
}

// waitForImagesJS resolves when each image has loaded, errored or hit %d ms
const waitForImagesJS = `Promise.all(Array.from(document.images).map(function (img) {
  if (img.complete) { return Promise.resolve(); }
  return new Promise(function (resolve) {
    img.addEventListener('load', resolve, { once: true });
    img.addEventListener('error', resolve, { once: true });
    setTimeout(resolve, %d);
  });
})).then(function () { return true; })`

func (p *chromedpPage) WaitForImages(ctx context.Context, perImage time.Duration) error {
	var ok bool
	script := fmt.Sprintf(waitForImagesJS, perImage.Milliseconds())
	return p.run(ctx, chromedp.Evaluate(script, &ok, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}))
}

func (p *chromedpPage) PrintPDF(ctx context.Context, opts PrintOptions) ([]byte, error) {
	var data []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(opts.PaperWidth).
			WithPaperHeight(opts.PaperHeight).
			WithMarginTop(0).
			WithMarginRight(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithPreferCSSPageSize(opts.PreferCSSPageSize).
			Do(ctx)
		if err != nil {
			return err
		}
		data = buf
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return data, nil
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
