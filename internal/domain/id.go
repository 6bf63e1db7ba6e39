package domain

import "regexp"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is safe to embed in storage keys and archive subjects.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
