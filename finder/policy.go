package finder

import (
	"context"
	"log/slog"

	"github.com/use-agent/mailscout/browser"
	"github.com/use-agent/mailscout/emails"
	"github.com/use-agent/mailscout/errlog"
)

// stepOutcome tells the policy runner what to do after a step.
type stepOutcome int

const (
	// stepNext moves on to the following step.
	stepNext stepOutcome = iota
	// stepFound ends the candidate because an address has been found.
	stepFound
	// stepAbort ends the candidate after a failure that was already recorded,
	// or because the lookup's context is done.
	stepAbort
)

// step is one stage of the exploration policy for a candidate URL.
type step struct {
	name string
	run  func(v *visit, ctx context.Context) stepOutcome
}

// policy is the exploration order applied to every candidate URL:
//
//	Start → RedirectCheck → MetaRefreshCheck → LinkDiscovery → DirectFallback → Done
var policy = []step{
	{"start", (*visit).start},
	{"redirect-check", (*visit).redirectCheck},
	{"meta-refresh", (*visit).metaRefresh},
	{"link-discovery", (*visit).linkDiscovery},
	{"direct-fallback", (*visit).directFallback},
}

// visit is the exploration state of one candidate URL. The ResultSet is
// shared by every visit of a lookup.
type visit struct {
	session  browser.Session
	recorder errlog.Recorder
	rs       *emails.ResultSet
	token    string
	domain   string

	requested string
	base      string // URL the remaining steps build on
	html      string // content of the last extracted page
	pages     int
}

// run executes the policy until a step ends the candidate.
func (v *visit) run(ctx context.Context) {
	for _, s := range policy {
		outcome := stepAbort
		if ctx.Err() == nil {
			outcome = s.run(v, ctx)
		}
		if outcome != stepNext {
			slog.Debug("candidate done",
				"url", v.requested,
				"step", s.name,
				"found", outcome == stepFound,
			)
			return
		}
	}
}

func (v *visit) start(ctx context.Context) stepOutcome {
	slog.Info("trying URL", "domain", v.domain, "url", v.requested)
	if err := v.session.Load(ctx, v.requested); err != nil {
		v.fail(ctx, "scraping "+v.requested, err)
		return stepAbort
	}
	v.base = v.requested
	v.extract(ctx, v.requested)
	return stepNext
}

func (v *visit) redirectCheck(ctx context.Context) stepOutcome {
	final, err := v.session.CurrentURL(ctx)
	if err != nil {
		v.fail(ctx, "resolving redirect of "+v.requested, err)
		return stepNext
	}
	if final != "" && final != v.requested {
		slog.Info("followed redirect", "url", v.requested, "final", final)
		v.base = final
	}
	return stepNext
}

func (v *visit) metaRefresh(ctx context.Context) stepOutcome {
	target, ok := MetaRefreshTarget(v.html, v.base)
	if !ok {
		return stepNext
	}

	slog.Info("following meta refresh", "from", v.base, "to", target)
	if err := v.session.Load(ctx, target); err != nil {
		v.fail(ctx, "handling redirection on "+v.base, err)
		return stepAbort
	}
	v.base = target
	if final, err := v.session.CurrentURL(ctx); err == nil && final != "" {
		v.base = final
	}
	v.extract(ctx, target)
	return stepNext
}

func (v *visit) linkDiscovery(ctx context.Context) stepOutcome {
	anchors, err := v.session.Anchors(ctx)
	if err != nil {
		v.fail(ctx, "listing links on "+v.base, err)
		return stepNext
	}

	for _, a := range anchors {
		if ctx.Err() != nil {
			return stepAbort
		}
		href := a.Href()
		if href == "" || !isContactHref(href) {
			continue
		}
		slog.Info("clicking contact link", "href", href)
		if err := a.Click(ctx); err != nil {
			v.fail(ctx, "clicking contact link "+href, err)
			continue
		}
		v.extract(ctx, href)
		if v.rs.Any() {
			return stepFound
		}
	}
	return stepNext
}

func (v *visit) directFallback(ctx context.Context) stepOutcome {
	for _, suffix := range contactHints {
		if ctx.Err() != nil {
			return stepAbort
		}
		target := directURL(v.base, suffix)
		slog.Info("trying direct URL", "url", target)
		if err := v.session.Load(ctx, target); err != nil {
			v.fail(ctx, "loading direct URL "+target, err)
			continue
		}
		v.extract(ctx, target)
		if v.rs.Any() {
			return stepFound
		}
	}
	return stepNext
}

// extract reads the current document and merges its addresses into the
// lookup's ResultSet.
func (v *visit) extract(ctx context.Context, where string) {
	v.pages++
	content, err := v.session.Content(ctx)
	if err != nil {
		v.html = ""
		v.fail(ctx, "reading "+where, err)
		return
	}
	v.html = content
	if n := emails.Extract(content, v.token, v.rs); n > 0 {
		slog.Info("found emails", "url", where, "new", n)
	}
}

// fail records a step failure. Failures caused by the lookup being canceled
// or timing out are not recorded; Lookup reports those once.
func (v *visit) fail(ctx context.Context, where string, err error) {
	if ctx.Err() != nil {
		slog.Debug("lookup done, dropping failure", "where", where, "error", err)
		return
	}
	v.recorder.Record(where, err)
}
