// Package filetype decides which uploads are accepted and what media type a
// stored blob is served as.
package filetype

import (
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultExtensions is the upload allow-list used when none is configured.
var DefaultExtensions = []string{"txt", "pdf", "png", "jpg", "jpeg", "gif"}

// Filter is a fixed, case-insensitive extension allow-list.
type Filter struct {
	allowed map[string]struct{}
}

// NewFilter builds a filter from extensions. Leading dots and case are
// ignored; an empty list falls back to DefaultExtensions.
func NewFilter(extensions []string) *Filter {
	allowed := make(map[string]struct{}, len(extensions))
	for _, raw := range extensions {
		ext := normalizeExtension(raw)
		if ext == "" {
			continue
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		for _, ext := range DefaultExtensions {
			allowed[ext] = struct{}{}
		}
	}
	return &Filter{allowed: allowed}
}

// IsAllowed reports whether filename carries an allowed final extension.
// Names without an extension are rejected.
func (f *Filter) IsAllowed(filename string) bool {
	if f == nil {
		return false
	}
	ext, ok := Extension(filename)
	if !ok {
		return false
	}
	_, allowed := f.allowed[ext]
	return allowed
}

// Extensions returns the sorted allow-list.
func (f *Filter) Extensions() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.allowed))
	for ext := range f.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extension returns the lowercase text after the last "." in filename.
func Extension(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", false
	}
	return strings.ToLower(filename[idx+1:]), true
}

// DetectMediaType sniffs the media type of a blob from its leading bytes.
func DetectMediaType(head []byte) string {
	return mimetype.Detect(head).String()
}

func normalizeExtension(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
}
