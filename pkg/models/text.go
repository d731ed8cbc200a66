package models

import "unicode/utf8"

// TruncateUTF8 returns the longest prefix of s that is at most n bytes and
// does not end inside a multi-byte rune.
func TruncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
