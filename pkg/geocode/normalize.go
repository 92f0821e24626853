package geocode

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SearchRequest carries one address through the search variants.
type SearchRequest struct {
	Raw         string // address as typed by the caller
	Normalized  string // address with municipality, state and country appended
	Road        string
	HouseNumber string
}

var streetNumberRe = regexp.MustCompile(`^\s*([^,]+?)\s*,\s*(?:n[º°o]?\.?\s*)?(\d+[A-Za-z]?)\b`)

// roadPrefixes are street-type words dropped before comparing road names, so
// "Av. Brasil" matches a candidate road "Avenida Brasil".
var roadPrefixes = []string{
	"avenida ", "av. ", "av ", "rua ", "r. ", "travessa ", "tv. ", "alameda ",
	"al. ", "praca ", "estrada ", "est. ", "rodovia ", "rod. ", "viela ",
}

// fold lowercases s and strips diacritics ("Paraguaçu" -> "paraguacu").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

func containsFold(haystack, needle string) bool {
	n := fold(strings.TrimSpace(needle))
	if n == "" {
		return false
	}
	return strings.Contains(fold(haystack), n)
}

// newSearchRequest normalizes addr once for all variants.
func newSearchRequest(addr string, region Region) SearchRequest {
	raw := strings.TrimSpace(addr)
	req := SearchRequest{Raw: raw, Normalized: raw}
	if !containsFold(raw, region.Municipality) {
		req.Normalized = strings.Join(nonEmpty(raw, region.Municipality, region.State, region.Country), ", ")
	}
	req.Road, req.HouseNumber = parseStreet(raw)
	return req
}

// parseStreet splits "Av. Brasil, 951 - Centro" into road and house number.
func parseStreet(addr string) (road, number string) {
	if m := streetNumberRe.FindStringSubmatch(addr); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	first, _, _ := strings.Cut(addr, ",")
	first, _, _ = strings.Cut(first, " - ")
	return strings.TrimSpace(first), ""
}

// roadToken returns the folded road name without its street-type prefix.
func roadToken(road string) string {
	r := fold(strings.TrimSpace(road))
	for _, p := range roadPrefixes {
		if strings.HasPrefix(r, p) {
			r = strings.TrimSpace(r[len(p):])
			break
		}
	}
	return r
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
