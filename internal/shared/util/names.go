package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidFileName = errors.New("invalid file name")

// maxFileNameLen bounds names used in storage keys and upload forms, in runes.
const maxFileNameLen = 200

// SanitizeFileName flattens path separators and drops control characters so
// the result is always a single path segment. Empty names and the dot
// segments are rejected.
func SanitizeFileName(name string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	switch s {
	case "", ".", "..":
		return "", ErrInvalidFileName
	}
	if r := []rune(s); len(r) > maxFileNameLen {
		s = string(r[len(r)-maxFileNameLen:])
	}
	return s, nil
}

// HashKey returns a filesystem-safe, non-reversible identifier for s.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
