package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ExtractAttr returns the literal text between the first `name="` in fragment
// and the next double quote. The second result is false when either delimiter
// is missing. Escapes and repeated attributes are not interpreted.
func ExtractAttr(fragment, name string) (string, bool) {
	key := name + `="`
	start := strings.Index(fragment, key)
	if start < 0 {
		return "", false
	}
	start += len(key)

	end := strings.IndexByte(fragment[start:], '"')
	if end < 0 {
		return "", false
	}
	return fragment[start : start+end], true
}

// innerText returns the text between the open and close markers, searching
// for close only after open. The second result is false when either is missing.
func innerText(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := strings.Index(s[start:], close)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}

// parseLeadingInt converts the longest leading integer in s, after trimming
// surrounding whitespace. clean is false when anything was ignored or
// defaulted; no digits at all yields 0.
func parseLeadingInt(s string) (n int, clean bool) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if digits == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, false
	}
	return n, i == len(s)
}

// parseLeadingFloat is parseLeadingInt for decimal floats with an optional
// fraction and exponent. NaN and Inf spellings are not accepted.
func parseLeadingFloat(s string) (f float64, clean bool) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}

	// exponent only counts when followed by at least one digit
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}

	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, false
	}
	return f, i == len(s)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
// max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
