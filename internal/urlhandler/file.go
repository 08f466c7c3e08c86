package urlhandler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"netstack/internal/errs"
)

// FileSecurityPolicy controls which paths a file: URL may resolve to.
type FileSecurityPolicy struct {
	AllowDirectoryTraversal bool
	AllowedPaths            []string
}

// IsAllowed reports whether path is permitted: an empty allowlist rejects
// everything; ".." components are rejected unless AllowDirectoryTraversal;
// the (best-effort canonicalized) path must fall under one allowed prefix.
func (p FileSecurityPolicy) IsAllowed(path string) bool {
	if len(p.AllowedPaths) == 0 {
		return false
	}
	if !p.AllowDirectoryTraversal {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if part == ".." {
				return false
			}
		}
	}

	canonical := canonicalizeBestEffort(path)
	for _, prefix := range p.AllowedPaths {
		canonicalPrefix := canonicalizeBestEffort(prefix)
		if strings.HasPrefix(canonical, canonicalPrefix) {
			return true
		}
	}
	return false
}

func canonicalizeBestEffort(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Handler reads files from file: URLs subject to a FileSecurityPolicy.
type Handler struct {
	Policy FileSecurityPolicy
}

func NewHandler(policy FileSecurityPolicy) *Handler {
	return &Handler{Policy: policy}
}

// IsFileURL reports whether raw begins with the file: scheme.
func IsFileURL(raw string) bool {
	return strings.HasPrefix(raw, "file:")
}

// Read resolves raw to a filesystem path, checks the security policy, and
// reads the file's contents.
func (h *Handler) Read(ctx context.Context, raw string) ([]byte, error) {
	if !IsFileURL(raw) {
		return nil, errs.InvalidURL("not a file URL (must start with 'file:')")
	}
	path, err := ParseFileURL(raw)
	if err != nil {
		return nil, err
	}
	if !h.Policy.IsAllowed(path) {
		return nil, errs.Other("access denied: path '"+path+"' not in allowed paths", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO("failed to read file", err)
	}
	return data, nil
}

// ParseFileURL parses file:///path, file://localhost/path, and the
// non-standard file:/path forms into a filesystem path.
func ParseFileURL(raw string) (string, error) {
	rest, ok := strings.CutPrefix(raw, "file:")
	if !ok {
		return "", errs.InvalidURL("not a file URL")
	}

	switch {
	case strings.HasPrefix(rest, "///"):
		return "/" + strings.TrimPrefix(rest, "///"), nil
	case strings.HasPrefix(rest, "//localhost/"):
		return "/" + strings.TrimPrefix(rest, "//localhost/"), nil
	case strings.HasPrefix(rest, "//"):
		stripped := strings.TrimPrefix(rest, "//")
		slashPos := strings.IndexByte(stripped, '/')
		if slashPos < 0 {
			return "", errs.InvalidURL("invalid file URL format")
		}
		host := stripped[:slashPos]
		if host != "" && host != "localhost" {
			return "", errs.Other("remote file URLs not supported", nil)
		}
		return "/" + stripped[slashPos+1:], nil
	case strings.HasPrefix(rest, "/"):
		return "/" + strings.TrimPrefix(rest, "/"), nil
	default:
		return "", errs.InvalidURL("invalid file URL format")
	}
}
