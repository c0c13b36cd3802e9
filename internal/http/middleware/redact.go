package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// RedactOptions configures the scrubbing applied by Logger.
//
// MaskHeaders lists extra header names whose values are replaced with
// "[REDACTED]" (case-insensitive, merged with Authorization, Cookie and
// Set-Cookie). LogHeaders adds the scrubbed request headers to access logs.
type RedactOptions struct {
	MaskHeaders []string
	LogHeaders  bool
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

type scrubber struct {
	mask map[string]struct{}
}

func newScrubber(opts RedactOptions) scrubber {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}
	return scrubber{mask: mask}
}

// value redacts identifiers, emails and phone numbers. UUIDs go first so the
// looser phone pattern cannot eat their digit groups.
func (s scrubber) value(v string) string {
	if v == "" {
		return v
	}
	v = uuidRE.ReplaceAllString(v, "[REDACTED:id]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

func (s scrubber) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.mask[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = s.value(strings.Join(vv, ", "))
	}
	return out
}
