package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

const OctetStream = "application/octet-stream"

// DetectContentType guesses the mime type of a file from its name alone. Unknown extensions
// map to application/octet-stream.
func DetectContentType(name string) string {
	if isTextLike(name) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(name)); mimeType != "" {
		return mimeType
	}
	return OctetStream
}

func isTextLike(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".yaml", ".yml", ".toml", ".md", ".txt", ".ini", ".conf":
		return true
	}
	return false
}
