// Package finder locates contact email addresses for a domain by driving
// a browser session through a fixed exploration policy.
package finder

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/use-agent/mailscout/browser"
	"github.com/use-agent/mailscout/emails"
	"github.com/use-agent/mailscout/errlog"
	"github.com/use-agent/mailscout/models"
)

// Finder runs domain lookups. Each lookup owns a fresh browser session,
// so a Finder may serve concurrent lookups.
type Finder struct {
	opener   browser.Opener
	recorder errlog.Recorder
}

// New returns a Finder opening sessions with opener and reporting
// navigation failures to rec (errlog.Discard if nil).
func New(opener browser.Opener, rec errlog.Recorder) *Finder {
	if rec == nil {
		rec = errlog.Discard
	}
	return &Finder{opener: opener, recorder: rec}
}

// Result is the outcome of one domain lookup.
type Result struct {
	Domain string

	// Emails holds the sorted members of Tier; empty when nothing was found.
	Emails []string
	Tier   emails.Tier

	// PagesVisited counts documents whose content was scanned.
	PagesVisited int

	// Failures counts error records written during the lookup.
	Failures int
}

// Found reports whether any address was discovered.
func (r *Result) Found() bool { return len(r.Emails) > 0 }

// String joins the addresses with single spaces.
func (r *Result) String() string { return strings.Join(r.Emails, " ") }

// FindEmails returns the best tier of addresses for domain, sorted and
// space-joined, or "" when none were found. Only a failure to start the
// browser (or an invalid domain) is returned as an error.
func (f *Finder) FindEmails(ctx context.Context, domain string) (string, error) {
	res, err := f.Lookup(ctx, domain)
	if res == nil {
		return "", err
	}
	return res.String(), err
}

// Lookup explores every candidate URL of domain and aggregates the
// addresses found. When ctx ends mid-lookup the partial Result is
// returned together with a LOOKUP_TIMEOUT error.
func (f *Finder) Lookup(ctx context.Context, domain string) (*Result, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, models.NewLookupError(models.ErrCodeInvalidInput, "domain is required", nil)
	}

	session, err := f.opener.Open(ctx)
	if err != nil {
		var le *models.LookupError
		if !errors.As(err, &le) {
			err = models.NewLookupError(models.ErrCodeBrowserCrash, "failed to start browser session", err)
		}
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("failed to close browser session", "domain", domain, "error", closeErr)
		}
	}()

	rs := emails.NewResultSet()
	rec := &countingRecorder{next: f.recorder}
	res := &Result{Domain: domain}

	for _, candidate := range CandidateURLs(domain) {
		if ctx.Err() != nil {
			break
		}
		v := &visit{
			session:   session,
			recorder:  rec,
			rs:        rs,
			token:     emails.DomainToken(domain),
			domain:    domain,
			requested: candidate,
		}
		v.run(ctx)
		res.PagesVisited += v.pages
	}

	res.Tier, res.Emails = rs.Best()
	res.Failures = rec.count

	if len(res.Emails) > 0 {
		slog.Info("lookup finished",
			"domain", domain,
			"tier", res.Tier.String(),
			"count", len(res.Emails),
		)
	} else {
		slog.Info("lookup finished, no contacts found", "domain", domain)
	}

	if err := ctx.Err(); err != nil {
		return res, models.NewLookupError(models.ErrCodeTimeout, "lookup interrupted", err)
	}
	return res, nil
}

// countingRecorder forwards records and counts them. A lookup uses it
// from a single goroutine.
type countingRecorder struct {
	next  errlog.Recorder
	count int
}

func (c *countingRecorder) Record(where string, err error) {
	c.count++
	slog.Debug("navigation step failed", "context", where, "error", err)
	c.next.Record(where, err)
}
