package gitstore

import (
	"errors"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidPath is returned for paths that escape the workbook root.
var ErrInvalidPath = errors.New("invalid workbook path")

// cleanPath returns the NFC-normalized, slash-separated form of p.
// Absolute paths, empty paths and paths leaving the root are rejected.
func cleanPath(p string) (string, error) {
	p = norm.NFC.String(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	if cleaned == ".git" || strings.HasPrefix(cleaned, ".git/") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

func branchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}
