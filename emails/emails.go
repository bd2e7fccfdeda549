// Package emails finds email addresses in rendered page content and ranks
// them into relevance tiers.
package emails

import (
	"regexp"
	"sort"
	"strings"
)

// Tier is the relevance class assigned to a discovered address.
type Tier int

const (
	// Other holds addresses that matched no relevance rule.
	Other Tier = iota
	// Prioritized holds addresses whose local part carries a contact
	// keyword or that start with the domain token.
	Prioritized
)

func (t Tier) String() string {
	switch t {
	case Prioritized:
		return "prioritized"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// addressPattern matches local@host.tld with a 2–6 letter alphabetic TLD.
var addressPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}\b`)

// Keywords mark a local part as a contact mailbox (secretariat, office,
// mail, director, contact, info).
var Keywords = []string{"sekretariat", "biuro", "poczta", "dyrektor", "kontakt", "info"}

// DomainToken returns the first dot-delimited label of domain
// ("abc" for "abc.example.com").
func DomainToken(domain string) string {
	token, _, _ := strings.Cut(domain, ".")
	return token
}

// Classify returns the tier for addr given the lookup's domain token.
// Matching is case-sensitive and done on the raw string.
func Classify(addr, token string) Tier {
	local, _, _ := strings.Cut(addr, "@")
	for _, kw := range Keywords {
		if strings.Contains(local, kw) {
			return Prioritized
		}
	}
	if token != "" && strings.HasPrefix(addr, token+"@") {
		return Prioritized
	}
	return Other
}

// Find returns every address-like substring of text in order of appearance,
// duplicates included.
func Find(text string) []string {
	return addressPattern.FindAllString(text, -1)
}

// Extract scans text, classifies each match and merges it into rs.
// It returns the number of addresses that were new to rs.
func Extract(text, token string, rs *ResultSet) int {
	added := 0
	for _, addr := range Find(text) {
		if rs.Add(addr, Classify(addr, token)) {
			added++
		}
	}
	return added
}

// ResultSet is the two-tier, deduplicated collection of addresses found
// during one lookup. An address lives in exactly one tier: the first
// classification wins. The zero value is ready to use.
type ResultSet struct {
	tiers map[string]Tier
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{tiers: make(map[string]Tier)}
}

// Add inserts addr into tier unless it is already present in either tier.
// It reports whether the address was added.
func (rs *ResultSet) Add(addr string, tier Tier) bool {
	if rs.tiers == nil {
		rs.tiers = make(map[string]Tier)
	}
	if _, ok := rs.tiers[addr]; ok {
		return false
	}
	rs.tiers[addr] = tier
	return true
}

// Any reports whether at least one address has been found in any tier.
func (rs *ResultSet) Any() bool {
	return len(rs.tiers) > 0
}

// Tier returns the tier addr was filed under.
func (rs *ResultSet) Tier(addr string) (Tier, bool) {
	t, ok := rs.tiers[addr]
	return t, ok
}

// Len returns the number of addresses in tier.
func (rs *ResultSet) Len(tier Tier) int {
	n := 0
	for _, t := range rs.tiers {
		if t == tier {
			n++
		}
	}
	return n
}

// Members returns the addresses in tier, sorted.
func (rs *ResultSet) Members(tier Tier) []string {
	out := make([]string, 0, len(rs.tiers))
	for addr, t := range rs.tiers {
		if t == tier {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// Best returns the highest non-empty tier and its sorted members.
// When nothing was found it returns Other and a nil slice.
func (rs *ResultSet) Best() (Tier, []string) {
	if m := rs.Members(Prioritized); len(m) > 0 {
		return Prioritized, m
	}
	if m := rs.Members(Other); len(m) > 0 {
		return Other, m
	}
	return Other, nil
}

// String renders the best tier as a single space-separated line.
func (rs *ResultSet) String() string {
	_, members := rs.Best()
	return strings.Join(members, " ")
}
