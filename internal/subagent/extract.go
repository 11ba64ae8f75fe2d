package subagent

import (
	"regexp"
	"strings"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/reader"
)

var (
	// Rule 1: the last fenced block tagged clojure/lisp/clj/text whose body
	// begins (after whitespace) with "(".
	fencedTagged = regexp.MustCompile("(?s)```(?:clojure|lisp|clj|text)\\s*\\n(.*?)\\n?```")

	// Rule 2: a fully XML-style tag pair.
	xmlBlock = regexp.MustCompile(`(?s)<(clojure|lisp)>(.*?)</(?:clojure|lisp)>`)

	// Rule 3: a ```clojure fence closed by a mismatched </clojure> or
	// </lisp> tag instead of a closing fence (malformed-but-recoverable).
	fenceClosedByTag = regexp.MustCompile(`(?s)\x60\x60\x60(?:clojure|lisp)?\s*\n(.*?)</(?:clojure|lisp)>`)

	// Rule 4: an untagged fenced block whose body begins with "(".
	fencedBare = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n?```")
)

// ExtractCode applies the deterministic code-extraction rules to one LLM
// response, in precedence order. It always sanitizes the winning candidate
// before returning it. Returns a no_code_found error if nothing matches.
func ExtractCode(response string) (string, error) {
	sanitized := reader.Sanitize(response)

	if code, ok := lastMatchStartingWithParen(fencedTagged, sanitized); ok {
		return reader.Sanitize(code), nil
	}

	if ms := xmlBlock.FindAllStringSubmatch(sanitized, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		return reader.Sanitize(strings.TrimSpace(last[2])), nil
	}

	if ms := fenceClosedByTag.FindAllStringSubmatch(sanitized, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		return reader.Sanitize(strings.TrimSpace(last[1])), nil
	}

	if code, ok := lastMatchStartingWithParen(fencedBare, sanitized); ok {
		return reader.Sanitize(code), nil
	}

	// Rule 5: the response, after trimming whitespace, starts with "(".
	trimmed := strings.TrimSpace(sanitized)
	if idx := strings.Index(trimmed, "("); idx == 0 {
		return trimmed, nil
	}

	return "", errs.New(errs.KindNoCodeFound, "no_code_in_response", nil)
}

func lastMatchStartingWithParen(re *regexp.Regexp, s string) (string, bool) {
	ms := re.FindAllStringSubmatch(s, -1)
	for i := len(ms) - 1; i >= 0; i-- {
		body := strings.TrimSpace(ms[i][1])
		if strings.HasPrefix(body, "(") {
			return body, true
		}
	}
	return "", false
}
