package util

import (
	"errors"
	"strings"
)

// SanitizeFileName removes path separators and rejects ".." path segments.
// Dots inside a segment, as in "invoice..final.pdf", are kept.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	segments := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if strings.TrimSpace(seg) == ".." {
			return "", errors.New("invalid file name")
		}
	}
	if s == "" || s == "." {
		return "", errors.New("invalid file name")
	}
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s, nil
}

// BaseName strips directories and the final extension from a file name.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "document"
	}
	return name
}
