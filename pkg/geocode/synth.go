package geocode

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf16"
)

// Synthesized points stay within ±offsetSpan/offsetScale degrees of center
// on each axis (about 5.5 km at this latitude).
const (
	offsetModulo = 1000
	offsetSpan   = 500
	offsetScale  = 10000.0
)

var postalCodeRe = regexp.MustCompile(`\b(\d{5})-?(\d{3})\b`)

// offsetFrom derives a deterministic (lat, lng) offset in degrees from n.
func offsetFrom(n int64) (dLat, dLng float64) {
	dLat = float64(n%offsetModulo-offsetSpan) / offsetScale
	dLng = float64((n>>3)%offsetModulo-offsetSpan) / offsetScale
	return dLat, dLng
}

// stringHash is the 32-bit signed polynomial rolling hash (h = h*31 + c) over
// the UTF-16 code units of s. Points already stored for existing records
// depend on this exact definition.
func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}

// synthesize places a deterministic pseudo-coordinate for q near the center.
func synthesize(q Query, region Region) *Result {
	key := q.Address + "-" + q.Area + "-" + q.Block
	h := int64(stringHash(key))
	if h < 0 {
		h = -h
	}
	dLat, dLng := offsetFrom(h)
	return &Result{
		Latitude:  region.CenterLat + dLat,
		Longitude: region.CenterLng + dLng,
		ResolvedAddress: fmt.Sprintf("%s (%s, %s - Area %s, Block %s)",
			q.Address, region.Municipality, region.State, q.Area, q.Block),
		Succeeded:  true,
		Provider:   ProviderSynthesis,
		Confidence: 0.2,
	}
}

// extractPostalCode returns the first CEP in addr as 8 digits.
func extractPostalCode(addr string) (string, bool) {
	m := postalCodeRe.FindStringSubmatch(addr)
	if m == nil {
		return "", false
	}
	return m[1] + m[2], true
}

// postalPoint derives the approximate point for an 8-digit CEP.
func postalPoint(cep string, region Region) (lat, lng float64, err error) {
	code, err := strconv.ParseInt(cep, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	dLat, dLng := offsetFrom(code)
	return region.CenterLat + dLat, region.CenterLng + dLng, nil
}

// formatPostalCode renders "19700000" as "19700-000".
func formatPostalCode(cep string) string {
	if len(cep) != 8 {
		return cep
	}
	return cep[:5] + "-" + cep[5:]
}
