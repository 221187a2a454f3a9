package simulate

import (
	"encoding/json"
	"strings"

	"github.com/getmockd/mimic/pkg/mock"
)

// RenderCurl returns a cURL command reproducing the request. Arguments are
// single quoted so the command can be pasted into a POSIX shell. A JSON
// body adds a Content-Type header unless one is already given.
func RenderCurl(method, target string, headers []mock.Header, body []byte) string {
	parts := []string{"curl", "-X", method, shellQuote(target)}

	hasContentType := false
	for _, h := range headers {
		if strings.EqualFold(h.Key, "Content-Type") {
			hasContentType = true
		}
		parts = append(parts, "-H", shellQuote(h.Key+": "+h.Value))
	}

	if len(body) > 0 {
		if !hasContentType && json.Valid(body) {
			parts = append(parts, "-H", shellQuote("Content-Type: application/json"))
		}
		parts = append(parts, "--data", shellQuote(string(body)))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
