package validation

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 255

// SanitizeFilename makes an uploaded file name safe to store and to echo back.
// Path separators, quotes and control characters become underscores, the
// result is capped at 255 bytes with the extension kept, and an empty
// result becomes "file".
func SanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 32 || r == 127, r == utf8.RuneError:
			return '_'
		case strings.ContainsRune(`"/\:`, r):
			return '_'
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)

	if strings.Trim(cleaned, "_.") == "" {
		return "file"
	}
	if len(cleaned) > maxFilenameLength {
		cleaned = truncateKeepingExt(cleaned)
	}
	return cleaned
}

func truncateKeepingExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxFilenameLength/2 {
		return truncateBytes(name, maxFilenameLength)
	}
	return truncateBytes(strings.TrimSuffix(name, ext), maxFilenameLength-len(ext)) + ext
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
