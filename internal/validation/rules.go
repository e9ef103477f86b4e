package validation

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10,}$`)
	phoneStrip   = regexp.MustCompile(`[\s-]`)
)

const MinPasswordLength = 8

func Email(s string) bool {
	return emailPattern.MatchString(s)
}

func Password(s string) bool {
	return len([]rune(s)) >= MinPasswordLength
}

// Phone accepts at least ten digits once spaces and dashes are removed.
func Phone(s string) bool {
	return phonePattern.MatchString(phoneStrip.ReplaceAllString(s, ""))
}

// URL accepts absolute URLs with a scheme.
func URL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}

// SplitList splits a comma separated input, trimming each entry.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
