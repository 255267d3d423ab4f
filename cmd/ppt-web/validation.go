package main

import (
	"path"
	"path/filepath"
	"strings"
)

// maxUploadBytes caps uploaded presentations at 1.5 GB.
const maxUploadBytes int64 = 1536 * 1024 * 1024

// allowedUploadExtensions is the extension allowlist for uploads.
var allowedUploadExtensions = map[string]bool{
	".pptx": true,
}

func hasAllowedExtension(name string) bool {
	return allowedUploadExtensions[strings.ToLower(filepath.Ext(name))]
}

// sanitizeFilename reduces a client-supplied filename to a safe basename.
// Directory components are stripped and anything outside a conservative
// character set becomes an underscore, so the result can be joined to a
// storage directory without escaping it.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ' ' || r == '(' || r == ')' {
			return r
		}
		return '_'
	}, name)

	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "presentation.pptx"
	}
	return name
}

// containsPathTraversal returns true if the value contains directory
// traversal sequences that could escape the intended directory.
//
// We check the raw segments before filepath.Clean resolves them, because
// Clean("/tmp/../etc") silently produces "/etc" with no ".." remaining.
func containsPathTraversal(p string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
