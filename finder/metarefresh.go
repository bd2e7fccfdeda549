package finder

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var metaHTTPEquiv = cascadia.MustCompile("meta[http-equiv]")

// MetaRefreshTarget looks for <meta http-equiv="refresh" content="N;url=X">
// in page and returns X resolved against base. It reports false when the
// tag is missing or carries no usable url= segment.
func MetaRefreshTarget(page, base string) (string, bool) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", false
	}
	doc := goquery.NewDocumentFromNode(root)

	var content string
	found := false
	doc.FindMatcher(metaHTTPEquiv).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("http-equiv", "")), "refresh") {
			content = s.AttrOr("content", "")
			found = true
			return false
		}
		return true
	})
	if !found {
		return "", false
	}

	target := refreshURL(content)
	if target == "" {
		return "", false
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	if b, err := url.Parse(base); err == nil && b.IsAbs() {
		ref = b.ResolveReference(ref)
	}
	return ref.String(), true
}

// refreshURL extracts the text after the last "url=" (any case) of a
// refresh content attribute, without quotes or surrounding space.
func refreshURL(content string) string {
	i := strings.LastIndex(strings.ToLower(content), "url=")
	if i < 0 {
		return ""
	}
	v := strings.TrimSpace(content[i+len("url="):])
	v = strings.Trim(v, `'"`)
	return strings.TrimSpace(v)
}
