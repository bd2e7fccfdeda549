package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/mailscout/config"
	"github.com/use-agent/mailscout/models"
	"github.com/ysmood/gson"
)

// ErrStaleAnchor is returned when an anchor is clicked after the tab has
// navigated away from the document it was listed on.
var ErrStaleAnchor = errors.New("browser: anchor belongs to a previous document")

// navigationGrace is how long a click waits for a new document before it
// is treated as an in-page transition (history API routing, overlays).
const navigationGrace = 3 * time.Second

// Factory launches a dedicated Chromium process per session.
// It is safe for concurrent use.
type Factory struct {
	cfg     config.BrowserConfig
	timeout time.Duration
	active  atomic.Int32
}

// NewFactory returns a Factory whose sessions bound every browser
// operation by loadTimeout.
func NewFactory(cfg config.BrowserConfig, loadTimeout time.Duration) *Factory {
	return &Factory{cfg: cfg, timeout: loadTimeout}
}

// Active returns the number of sessions currently open.
func (f *Factory) Active() int {
	return int(f.active.Load())
}

// Open launches the browser, connects to it and opens a blank tab.
// On any failure the partially started process is torn down.
func (f *Factory) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, models.ErrCodeBrowserCrash, "browser not started")
	}

	l := launcher.New().
		Headless(f.cfg.Headless).
		NoSandbox(f.cfg.NoSandbox)

	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}
	if f.cfg.Proxy != "" {
		l = l.Proxy(f.cfg.Proxy)
	}

	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewLookupError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, models.NewLookupError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, models.NewLookupError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}

	if f.cfg.AcceptLanguage != "" {
		setAcceptLanguage(page, f.cfg.AcceptLanguage)
	}

	// Unhandled alert/confirm dialogs freeze the tab.
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(page)
	})()

	f.active.Add(1)
	slog.Debug("browser session opened", "controlURL", controlURL)

	return &rodSession{
		factory:  f,
		launcher: l,
		browser:  browser,
		page:     page,
		router:   setupHijack(page, f.cfg.BlockedResourceTypes),
		timeout:  f.timeout,
	}, nil
}

type rodSession struct {
	factory  *Factory
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	timeout  time.Duration

	// gen counts documents loaded into the tab; anchors remember the
	// generation they were listed in.
	gen int

	closeOnce sync.Once
	closeErr  error
}

// bound returns the tab bound to ctx and the load timeout.
// Callers must call CancelTimeout on the result.
func (s *rodSession) bound(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.timeout)
}

func (s *rodSession) Load(ctx context.Context, target string) error {
	p := s.bound(ctx)
	defer p.CancelTimeout()

	s.gen++
	if err := p.Navigate(target); err != nil {
		return categorizeError(err, models.ErrCodeNavigation, "navigation failed")
	}
	if _, err := p.Element("body"); err != nil {
		return categorizeError(err, models.ErrCodeNavigation, "page body never appeared")
	}
	settle(p)
	return nil
}

func (s *rodSession) CurrentURL(ctx context.Context) (string, error) {
	p := s.bound(ctx)
	defer p.CancelTimeout()

	info, err := p.Info()
	if err != nil {
		return "", categorizeError(err, models.ErrCodeNavigation, "failed to read current URL")
	}
	return info.URL, nil
}

func (s *rodSession) Content(ctx context.Context) (string, error) {
	p := s.bound(ctx)
	defer p.CancelTimeout()

	html, err := p.HTML()
	if err != nil {
		return "", categorizeError(err, models.ErrCodeNavigation, "failed to read page HTML")
	}
	return html, nil
}

func (s *rodSession) Anchors(ctx context.Context) ([]Anchor, error) {
	p := s.bound(ctx)
	defer p.CancelTimeout()

	els, err := p.Elements("a")
	if err != nil {
		return nil, categorizeError(err, models.ErrCodeNavigation, "failed to list anchors")
	}

	anchors := make([]Anchor, 0, len(els))
	for _, el := range els {
		anchors = append(anchors, &rodAnchor{
			session: s,
			gen:     s.gen,
			el:      el,
			href:    stringProperty(el, "href"),
			target:  stringProperty(el, "target"),
		})
	}
	return anchors, nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("browser: close: %w", err)
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
		s.factory.active.Add(-1)
		slog.Debug("browser session closed")
	})
	return s.closeErr
}

type rodAnchor struct {
	session *rodSession
	gen     int
	el      *rod.Element
	href    string
	target  string
}

func (a *rodAnchor) Href() string { return a.href }

func (a *rodAnchor) Click(ctx context.Context) error {
	if a.gen != a.session.gen {
		return models.NewLookupError(models.ErrCodeInteraction, "stale element", ErrStaleAnchor)
	}

	p := a.session.bound(ctx)
	defer p.CancelTimeout()

	current := ""
	if info, err := p.Info(); err == nil {
		current = info.URL
	}

	// Only wait for a navigation the click will actually cause; mailto:,
	// in-page fragments and new-window links leave this document in place.
	var nav *rod.Page
	var wait func()
	if a.target != "_blank" && opensDocument(current, a.href) {
		nav = p.Timeout(a.session.navigationGrace())
		defer nav.CancelTimeout()
		wait = nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	}

	if err := a.el.Context(p.GetContext()).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, models.ErrCodeInteraction, "click failed")
	}
	if wait != nil {
		if awaitNavigation(nav.GetContext(), wait) {
			a.session.gen++
		} else {
			slog.Debug("no document load after click, treating as in-page transition", "href", a.href)
		}
	}

	// The grace period may have used up part of p's budget.
	q := a.session.bound(ctx)
	defer q.CancelTimeout()
	if _, err := q.Element("body"); err != nil {
		return categorizeError(err, models.ErrCodeInteraction, "page body never appeared after click")
	}
	settle(q)
	return nil
}

// navigationGrace caps the post-click navigation wait at the load timeout.
func (s *rodSession) navigationGrace() time.Duration {
	if s.timeout > 0 && s.timeout < navigationGrace {
		return s.timeout
	}
	return navigationGrace
}

// awaitNavigation blocks on wait and reports whether it returned because the
// navigation happened rather than because ctx ran out.
func awaitNavigation(ctx context.Context, wait func()) bool {
	wait()
	return ctx.Err() == nil
}

// settle waits, best effort, for the load event and then for the DOM to stop
// changing, so script-rendered footers are in place before the HTML is read.
// Both waits share the caller's timeout; failures only log.
func settle(p *rod.Page) {
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event did not fire, proceeding with current DOM", "error", err)
		return
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
}

// setAcceptLanguage sends lang with every request the tab makes. Sites still
// answer without it, so a failure only logs.
func setAcceptLanguage(page *rod.Page, lang string) {
	err := proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{"Accept-Language": gson.New(lang)},
	}.Call(page)
	if err != nil {
		slog.Debug("failed to set Accept-Language header", "error", err)
	}
}

// opensDocument reports whether following href from current loads a new
// document: an http(s) URL differing from current by more than its fragment.
func opensDocument(current, href string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	u.Fragment, u.RawFragment = "", ""
	cur, err := url.Parse(current)
	if err != nil {
		return true
	}
	cur.Fragment, cur.RawFragment = "", ""
	return u.String() != cur.String()
}

// stringProperty reads a DOM property, returning "" when it is absent.
func stringProperty(el *rod.Element, name string) string {
	v, err := el.Property(name)
	if err != nil || v.Nil() {
		return ""
	}
	return v.Str()
}

// categorizeError wraps raw rod errors into typed LookupErrors.
func categorizeError(err error, code, msg string) *models.LookupError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewLookupError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewLookupError(models.ErrCodeTimeout, "lookup canceled", err)
	default:
		return models.NewLookupError(code, msg, err)
	}
}
