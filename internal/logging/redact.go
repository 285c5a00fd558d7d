package logging

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

const redacted = "REDACTED"

// Attribute keys whose values are never logged.
var secretKeys = map[string]struct{}{
	"password":    {},
	"api_key":     {},
	"apikey":      {},
	"private_key": {},
	"privatekey":  {},
	"secret":      {},
	"mnemonic":    {},
}

var (
	urlPattern = regexp.MustCompile(`(?i)\b(?:https?|wss?)://[^\s"'<>]+`)

	// Provider keys are embedded as long opaque path segments, e.g. /v3/<key>.
	keySegment = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}$`)
)

// RedactURL masks the credentials an RPC endpoint may carry: user info,
// query values and key-like path segments. Scheme and host are kept.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}
	if u.RawQuery != "" {
		u.RawQuery = redacted
	}
	segments := strings.Split(u.Path, "/")
	for i, s := range segments {
		if keySegment.MatchString(s) {
			segments[i] = redacted
		}
	}
	u.Path = strings.Join(segments, "/")
	u.RawPath = ""
	return u.String()
}

// RedactText applies RedactURL to every URL inside s.
func RedactText(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, RedactURL)
}

// redactAttr is installed as the handler's ReplaceAttr.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(RedactText(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			a.Value = slog.StringValue(RedactText(err.Error()))
		}
	}
	return a
}
