package evidence

import "strings"

// Vietnamese mobile prefixes by carrier. The heuristic only classifies the
// provider for the evidence record; an unknown prefix is reported as such,
// never rejected.
var carrierPrefixes = map[string][]string{
	"viettel":      {"086", "096", "097", "098", "032", "033", "034", "035", "036", "037", "038", "039"},
	"vinaphone":    {"088", "091", "094", "081", "082", "083", "084", "085"},
	"mobifone":     {"089", "090", "093", "070", "076", "077", "078", "079"},
	"vietnamobile": {"092", "052", "056", "058"},
	"gmobile":      {"099", "059"},
}

// CarrierForPhone classifies a Vietnamese phone number by its prefix.
// Accepts +84, 84, and 0 leading forms.
func CarrierForPhone(phone string) string {
	digits := normalizePhone(phone)
	if len(digits) < 3 {
		return "unknown"
	}
	prefix := digits[:3]
	for carrier, prefixes := range carrierPrefixes {
		for _, p := range prefixes {
			if prefix == p {
				return carrier
			}
		}
	}
	return "unknown"
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "84") && len(digits) >= 11 {
		digits = "0" + digits[2:]
	}
	return digits
}
