package mailclean

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodePayload returns raw as valid UTF-8. Payloads that are already valid
// are returned unchanged. Otherwise the charset is detected and the bytes
// re-decoded; when that fails, invalid sequences become U+FFFD. The second
// result reports whether any recovery was needed.
func DecodePayload(raw string) (string, bool) {
	if utf8.ValidString(raw) {
		return raw, false
	}
	if decoded, ok := decodeDetected([]byte(raw)); ok {
		return decoded, true
	}
	return strings.ToValidUTF8(raw, "\uFFFD"), true
}

func decodeDetected(b []byte) (string, bool) {
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil || res.Charset == "" {
		return "", false
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	s := string(out)
	if !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}
