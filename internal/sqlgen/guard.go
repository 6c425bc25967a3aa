package sqlgen

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?i)```(?:sql)?")

// Sanitize strips markdown code fences and surrounding whitespace from
// generated output. It never rewrites the statement itself.
func Sanitize(raw string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
}

var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter",
	"create", "truncate", "grant", "revoke", "copy",
}

// IsSafeSelect reports whether a sanitized statement is a single
// read-only SELECT. It rejects multi-statement input and any write or
// DDL keyword appearing outside a quoted string. Keyword scanning is
// conservative: a false positive only downgrades the answer to
// retrieval context, never the other way.
func IsSafeSelect(sql string) bool {
	s := strings.TrimSpace(sql)
	if s == "" {
		return false
	}

	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return false
	}

	stripped := stripQuoted(lower)

	// A semicolon is allowed only as the trailing terminator.
	if i := strings.Index(stripped, ";"); i >= 0 {
		if strings.TrimSpace(stripped[i+1:]) != "" {
			return false
		}
	}

	for _, kw := range forbiddenKeywords {
		if containsWord(stripped, kw) {
			return false
		}
	}
	return true
}

// stripQuoted blanks out single-quoted string literals, honoring the ''
// escape, so literal text cannot hide or fake keywords.
func stripQuoted(s string) string {
	out := []byte(s)
	inQuote := false
	for i := 0; i < len(out); i++ {
		if out[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			out[i] = ' '
		}
	}
	return string(out)
}

func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return true
		}
		start = i + len(word)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
