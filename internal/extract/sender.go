package extract

import "strings"

// accountDomainSuffixes are the transport domains that chat account
// identifiers arrive suffixed with. At most one suffix is stripped.
var accountDomainSuffixes = []string{
	"@s.whatsapp.net",
	"@c.us",
	"@g.us",
	"@lid",
	"@broadcast",
}

// NormalizeSender strips transport-address decorations from a raw sender
// identifier: an Optional(...) wrapper, surrounding quotes, a leading
// whatsapp: scheme, then one known account-domain suffix, in that order.
// An identifier that strips down to nothing collapses to "no sender" so
// downstream display code never renders an empty string.
func NormalizeSender(raw string) string {
	s := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(s, "Optional("); ok {
		s = strings.TrimSuffix(rest, ")")
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimPrefix(s, "whatsapp:")
	for _, suffix := range accountDomainSuffixes {
		if rest, ok := strings.CutSuffix(s, suffix); ok {
			s = rest
			break
		}
	}

	if s == "" {
		return "no sender"
	}
	return s
}
