// Package sanitize normalizes user-supplied filenames before they become
// storage object names.
package sanitize

import (
	"path/filepath"
	"strings"
)

const maxFilenameLength = 128

// Filename strips directory components, control characters, and
// path-traversal sequences, restricts the name to a safe character set,
// and caps its length. An empty or fully-stripped name becomes "file".
func Filename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > maxFilenameLength {
		// Keep the extension when truncating.
		ext := filepath.Ext(out)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		out = out[:maxFilenameLength-len(ext)] + ext
	}
	if out == "" {
		return "file"
	}
	return out
}
