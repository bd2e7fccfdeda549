package finder

import (
	"net/url"
	"path"
	"strings"
)

// schemes are tried in this order for every candidate path.
var schemes = []string{"http://", "https://"}

// contactHints mark an anchor href or URL suffix as a contact page.
var contactHints = []string{"kontakt", "contact"}

// CandidatePaths returns the host variants tried for domain: the bare
// domain and its "www." form, never "www.www.".
func CandidatePaths(domain string) []string {
	paths := make([]string, 0, 2)
	for _, p := range []string{domain, "www." + domain} {
		if strings.HasPrefix(p, "www.www.") {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// CandidateURLs combines every candidate path with every scheme,
// path-major.
func CandidateURLs(domain string) []string {
	var urls []string
	for _, p := range CandidatePaths(domain) {
		for _, scheme := range schemes {
			urls = append(urls, scheme+p)
		}
	}
	return urls
}

// isContactHref reports whether href points at a likely contact page.
func isContactHref(href string) bool {
	for _, hint := range contactHints {
		if strings.Contains(href, hint) {
			return true
		}
	}
	return false
}

// directURL appends suffix as a path segment to base. Query and fragment
// are dropped and a trailing file name ("index.html") is replaced.
func directURL(base, suffix string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		return base + suffix
	}
	u.RawQuery, u.Fragment, u.RawFragment, u.RawPath = "", "", "", ""

	dir := u.Path
	if dir == "" {
		dir = "/"
	}
	if !strings.HasSuffix(dir, "/") {
		if strings.Contains(path.Base(dir), ".") {
			dir = path.Dir(dir)
		}
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
	}
	u.Path = dir + suffix
	return u.String()
}
