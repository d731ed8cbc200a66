package cache

import (
	"regexp"
	"strings"
)

var (
	repoMarker    = regexp.MustCompile("(?:repository|repo)['\\s]*[\"'`]?([a-zA-Z0-9\\-_]+/[a-zA-Z0-9\\-_]+)")
	userMarker    = regexp.MustCompile("user[_\\s]*id['\\s]*[\"'`]?([a-zA-Z0-9\\-_]+)")
	quotedMarker  = regexp.MustCompile("[\"'`]([a-zA-Z0-9\\-_]{3,})[\"'`]")
	minQuotedSize = 4
)

// Markers extracts the context markers of a prompt: repository slugs,
// user ids and quoted identifiers, all lowercased.
func Markers(prompt string) map[string]struct{} {
	markers := make(map[string]struct{})
	lower := strings.ToLower(prompt)
	for _, re := range []*regexp.Regexp{repoMarker, userMarker} {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			markers[m[1]] = struct{}{}
		}
	}
	for _, m := range quotedMarker.FindAllStringSubmatch(prompt, -1) {
		if len(m[1]) >= minQuotedSize {
			markers[strings.ToLower(m[1])] = struct{}{}
		}
	}
	return markers
}

// Relevant reports whether a response cached for cached may answer current.
// Prompts without markers match each other; prompts with markers need a
// Jaccard overlap above one half; a marked prompt never matches an unmarked one.
func Relevant(current, cached string) bool {
	a, b := Markers(current), Markers(cached)
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0 || len(b) == 0:
		return false
	}
	shared := 0
	for m := range a {
		if _, ok := b[m]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared)/float64(union) > 0.5
}
