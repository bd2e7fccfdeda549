package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/use-agent/mailscout/browser"
)

const notFoundHTML = "<html><body><h1>404 Not Found</h1></body></html>"

// fakePage is one document of a scripted website.
type fakePage struct {
	html  string
	links []string
}

// fakeSession is a browser.Session over an in-memory website. Unknown URLs
// render a 404 page, like a real server would.
type fakeSession struct {
	pages     map[string]fakePage
	redirects map[string]string // requested URL → final URL
	loadErr   map[string]error
	clickErr  map[string]error
	afterLoad func(url string) // runs after every successful Load

	cur    string
	gen    int
	loads  []string
	clicks []string
	closed int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:     make(map[string]fakePage),
		redirects: make(map[string]string),
		loadErr:   make(map[string]error),
		clickErr:  make(map[string]error),
	}
}

func (s *fakeSession) page(url, html string, links ...string) *fakeSession {
	s.pages[url] = fakePage{html: html, links: links}
	return s
}

func (s *fakeSession) Load(ctx context.Context, url string) error {
	s.loads = append(s.loads, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.loadErr[url]; err != nil {
		return err
	}
	if final, ok := s.redirects[url]; ok {
		url = final
	}
	s.gen++
	s.cur = url
	if s.afterLoad != nil {
		s.afterLoad(url)
	}
	return nil
}

func (s *fakeSession) CurrentURL(context.Context) (string, error) {
	return s.cur, nil
}

func (s *fakeSession) Content(context.Context) (string, error) {
	if p, ok := s.pages[s.cur]; ok {
		return p.html, nil
	}
	return notFoundHTML, nil
}

func (s *fakeSession) Anchors(context.Context) ([]browser.Anchor, error) {
	var out []browser.Anchor
	for _, href := range s.pages[s.cur].links {
		out = append(out, &fakeAnchor{s: s, gen: s.gen, href: href})
	}
	return out, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func (s *fakeSession) loaded(url string) bool {
	for _, l := range s.loads {
		if l == url {
			return true
		}
	}
	return false
}

type fakeAnchor struct {
	s    *fakeSession
	gen  int
	href string
}

func (a *fakeAnchor) Href() string { return a.href }

func (a *fakeAnchor) Click(context.Context) error {
	a.s.clicks = append(a.s.clicks, a.href)
	if a.gen != a.s.gen {
		return browser.ErrStaleAnchor
	}
	if err := a.s.clickErr[a.href]; err != nil {
		return err
	}
	a.s.gen++
	a.s.cur = a.href
	return nil
}

type fakeOpener struct {
	session *fakeSession
	err     error
	opened  int
}

func (o *fakeOpener) Open(context.Context) (browser.Session, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

// memRecorder keeps records in memory.
type memRecorder struct {
	lines []string
}

func (r *memRecorder) Record(where string, err error) {
	r.lines = append(r.lines, fmt.Sprintf("Error %s: %v", where, err))
}

func (r *memRecorder) contains(substr string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

var errTimeout = errors.New("LOOKUP_TIMEOUT: page body never appeared: context deadline exceeded")
