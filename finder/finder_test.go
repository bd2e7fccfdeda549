package finder

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/mailscout/emails"
	"github.com/use-agent/mailscout/models"
)

func lookup(t *testing.T, s *fakeSession, domain string) (*Result, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	f := New(&fakeOpener{session: s}, rec)
	res, err := f.Lookup(context.Background(), domain)
	if err != nil {
		t.Fatalf("Lookup(%q) error: %v", domain, err)
	}
	if s.closed != 1 {
		t.Errorf("session closed %d times, want 1", s.closed)
	}
	return res, rec
}

func TestLookup_ContactLinkHappyPath(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org/", `<a href="/kontakt">Kontakt</a>`, "http://abc.org/kontakt").
		page("http://abc.org/kontakt", `<p>kontakt@abc.org</p><p>random@other.com</p>`)
	s.redirects["http://abc.org"] = "http://abc.org/"

	res, _ := lookup(t, s, "abc.org")

	if got := res.String(); got != "kontakt@abc.org" {
		t.Errorf("result = %q, want %q", got, "kontakt@abc.org")
	}
	if res.Tier != emails.Prioritized {
		t.Errorf("tier = %v, want prioritized", res.Tier)
	}
	if len(s.clicks) != 1 || s.clicks[0] != "http://abc.org/kontakt" {
		t.Errorf("clicks = %v", s.clicks)
	}
}

func TestLookup_DomainTokenWithoutKeyword(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `Write to abc@external.net`)

	res, _ := lookup(t, s, "abc.org")

	if got := res.String(); got != "abc@external.net" {
		t.Errorf("result = %q, want abc@external.net", got)
	}
	if res.Tier != emails.Prioritized {
		t.Errorf("tier = %v, want prioritized", res.Tier)
	}
}

func TestLookup_DirectFallback(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org/", `<a href="/about">About</a>`, "http://abc.org/about").
		page("http://abc.org/contact", `info@abc.org`)
	s.redirects["http://abc.org"] = "http://abc.org/"

	res, _ := lookup(t, s, "abc.org")

	if got := res.String(); got != "info@abc.org" {
		t.Errorf("result = %q, want info@abc.org", got)
	}
	if len(s.clicks) != 0 {
		t.Errorf("non-contact links must not be clicked: %v", s.clicks)
	}
	if !s.loaded("http://abc.org/kontakt") || !s.loaded("http://abc.org/contact") {
		t.Errorf("direct URLs not tried in order: %v", s.loads)
	}
}

func TestLookup_TotalFailure(t *testing.T) {
	s := newFakeSession()
	for _, u := range CandidateURLs("abc.org") {
		s.loadErr[u] = errTimeout
	}

	res, rec := lookup(t, s, "abc.org")

	if got := res.String(); got != "" {
		t.Errorf("result = %q, want empty", got)
	}
	if len(rec.lines) != 4 || res.Failures != 4 {
		t.Errorf("records = %d (Failures=%d), want 4: %v", len(rec.lines), res.Failures, rec.lines)
	}
	if !rec.contains("Error scraping https://www.abc.org: LOOKUP_TIMEOUT") {
		t.Errorf("missing record for https://www.abc.org: %v", rec.lines)
	}
	if res.Found() {
		t.Error("Found() should be false")
	}
}

func TestLookup_OnlyOtherTier(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `random.person@abc.org, other@xyz.com`)

	res, _ := lookup(t, s, "abc.org")

	if got := res.String(); got != "other@xyz.com random.person@abc.org" {
		t.Errorf("result = %q", got)
	}
	if res.Tier != emails.Other {
		t.Errorf("tier = %v, want other", res.Tier)
	}
}

func TestLookup_PrioritizedWinsAcrossCandidates(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `someone@xyz.com`).
		page("https://www.abc.org", `sekretariat@abc.org`)

	res, _ := lookup(t, s, "abc.org")

	if got := res.String(); got != "sekretariat@abc.org" {
		t.Errorf("result = %q, want sekretariat@abc.org", got)
	}
}

func TestLookup_ExploresEveryCandidate(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `<a href="x">kontakt</a>`, "http://abc.org/kontakt").
		page("http://abc.org/kontakt", `biuro@abc.org`)

	lookup(t, s, "abc.org")

	for _, u := range CandidateURLs("abc.org") {
		if !s.loaded(u) {
			t.Errorf("candidate %s was not visited; loads: %v", u, s.loads)
		}
	}
}

func TestLookup_StopsClickingOnceFound(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", "",
			"http://abc.org/kontakt", "http://abc.org/contact-form").
		page("http://abc.org/kontakt", `poczta@abc.org`)
	for _, u := range CandidateURLs("abc.org")[1:] {
		s.loadErr[u] = errTimeout
	}

	res, rec := lookup(t, s, "abc.org")

	if !reflect.DeepEqual(s.clicks, []string{"http://abc.org/kontakt"}) {
		t.Errorf("clicks = %v, want only the first contact link", s.clicks)
	}
	if s.loaded("http://abc.org/contact") {
		t.Error("direct fallback must not run after a link found an address")
	}
	if rec.contains("clicking") {
		t.Errorf("unexpected click failure: %v", rec.lines)
	}
	if res.String() != "poczta@abc.org" {
		t.Errorf("result = %q", res.String())
	}
}

func TestLookup_StaleAnchorIsRecordedAndSkipped(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", "",
			"http://abc.org/kontakt", "http://abc.org/contact").
		page("http://abc.org/kontakt", `no addresses here`)
	for _, u := range CandidateURLs("abc.org")[1:] {
		s.loadErr[u] = errTimeout
	}

	res, rec := lookup(t, s, "abc.org")

	if !rec.contains("Error clicking contact link http://abc.org/contact") {
		t.Errorf("stale click not recorded: %v", rec.lines)
	}
	// The fallback builds on the candidate's base URL.
	if !s.loaded("http://abc.org/kontakt") || !s.loaded("http://abc.org/contact") {
		t.Errorf("direct fallback not attempted: %v", s.loads)
	}
	if res.String() != "" {
		t.Errorf("result = %q, want empty", res.String())
	}
}

func TestLookup_ClickFailureContinues(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", "",
			"http://abc.org/kontakt", "http://abc.org/contact").
		page("http://abc.org/contact", `dyrektor@abc.org`)
	s.clickErr["http://abc.org/kontakt"] = errors.New("element not interactable")

	res, rec := lookup(t, s, "abc.org")

	if !rec.contains("clicking contact link http://abc.org/kontakt: element not interactable") {
		t.Errorf("click failure not recorded: %v", rec.lines)
	}
	if res.String() != "dyrektor@abc.org" {
		t.Errorf("result = %q", res.String())
	}
}

func TestLookup_MetaRefresh(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `<html><head><meta http-equiv="Refresh" content="0; URL=/pl/"></head><body></body></html>`).
		page("http://abc.org/pl/", `<a>Kontakt</a>`, "http://abc.org/pl/kontakt").
		page("http://abc.org/pl/kontakt", `biuro@abc.org`)

	res, _ := lookup(t, s, "abc.org")

	if !s.loaded("http://abc.org/pl/") {
		t.Errorf("meta refresh target not loaded: %v", s.loads)
	}
	if res.String() != "biuro@abc.org" {
		t.Errorf("result = %q", res.String())
	}
}

func TestLookup_MetaRefreshFailureEndsCandidate(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `<meta http-equiv="refresh" content="0;url=http://gone.abc.org/">`, "http://abc.org/kontakt")
	s.loadErr["http://gone.abc.org/"] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, rec := lookup(t, s, "abc.org")

	if !rec.contains("Error handling redirection on http://abc.org: net::ERR_NAME_NOT_RESOLVED") {
		t.Errorf("redirect failure not recorded: %v", rec.lines)
	}
	if len(s.clicks) != 0 {
		t.Errorf("clicks after failed redirect: %v", s.clicks)
	}
}

func TestLookup_MalformedMetaRefreshIsIgnored(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `<meta http-equiv="refresh" content="30">info@abc.org`)

	res, rec := lookup(t, s, "abc.org")

	if len(rec.lines) != 0 {
		t.Errorf("malformed refresh must not be recorded: %v", rec.lines)
	}
	if res.String() != "info@abc.org" {
		t.Errorf("result = %q", res.String())
	}
}

func TestLookup_WWWDomainSkipsDoublePrefix(t *testing.T) {
	s := newFakeSession()
	lookup(t, s, "www.abc.org")

	for _, l := range s.loads {
		if strings.Contains(l, "www.www.") {
			t.Errorf("degenerate candidate loaded: %s", l)
		}
	}
}

func TestLookup_BrowserStartFailure(t *testing.T) {
	opener := &fakeOpener{err: errors.New("chromium not found")}
	f := New(opener, &memRecorder{})

	got, err := f.FindEmails(context.Background(), "abc.org")

	var le *models.LookupError
	if !errors.As(err, &le) || le.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeBrowserCrash)
	}
	if got != "" {
		t.Errorf("result = %q, want empty", got)
	}
}

func TestLookup_EmptyDomain(t *testing.T) {
	opener := &fakeOpener{session: newFakeSession()}
	f := New(opener, nil)

	_, err := f.Lookup(context.Background(), "   ")

	var le *models.LookupError
	if !errors.As(err, &le) || le.Code != models.ErrCodeInvalidInput {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeInvalidInput)
	}
	if opener.opened != 0 {
		t.Error("browser must not start for an invalid domain")
	}
}

func TestLookup_CanceledContext(t *testing.T) {
	s := newFakeSession()
	f := New(&fakeOpener{session: s}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.Lookup(ctx, "abc.org")

	var le *models.LookupError
	if !errors.As(err, &le) || le.Code != models.ErrCodeTimeout {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeTimeout)
	}
	if res == nil || res.String() != "" {
		t.Errorf("result = %+v, want empty partial result", res)
	}
	if s.closed != 1 {
		t.Errorf("session closed %d times, want 1", s.closed)
	}
}

func TestLookup_CanceledMidCandidateRecordsNothing(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `<a href="/kontakt">Kontakt</a>`,
			"http://abc.org/kontakt", "http://abc.org/contact", "http://abc.org/impressum")
	for _, href := range s.pages["http://abc.org"].links {
		s.clickErr[href] = errTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.afterLoad = func(url string) {
		if url == "http://abc.org" {
			cancel()
		}
	}
	rec := &memRecorder{}
	f := New(&fakeOpener{session: s}, rec)

	res, err := f.Lookup(ctx, "abc.org")

	var le *models.LookupError
	if !errors.As(err, &le) || le.Code != models.ErrCodeTimeout {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeTimeout)
	}
	if len(rec.lines) != 0 || res.Failures != 0 {
		t.Errorf("records after cancellation = %v (Failures=%d), want none", rec.lines, res.Failures)
	}
	if len(s.clicks) != 0 {
		t.Errorf("clicks after cancellation = %v, want none", s.clicks)
	}
	if !reflect.DeepEqual(s.loads, []string{"http://abc.org"}) {
		t.Errorf("loads = %v, want only the first candidate", s.loads)
	}
	if s.closed != 1 {
		t.Errorf("session closed %d times, want 1", s.closed)
	}
}

func TestFindEmails(t *testing.T) {
	s := newFakeSession().
		page("http://abc.org", `info@abc.org kontakt@abc.org x@y.com`)
	f := New(&fakeOpener{session: s}, nil)

	got, err := f.FindEmails(context.Background(), " abc.org ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "info@abc.org kontakt@abc.org" {
		t.Errorf("FindEmails = %q", got)
	}
}

