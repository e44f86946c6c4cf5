// Package pathutil maps slash-separated asset destinations onto the local
// filesystem.
package pathutil

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for destinations that would escape the output
// directory.
var ErrUnsafePath = errors.New("unsafe path")

// Clean normalizes a destination: backslashes become slashes, leading
// slashes and drive letters are dropped, and "." elements are removed. It
// rejects destinations containing "..".
func Clean(dest string) (string, error) {
	dest = strings.ReplaceAll(dest, `\`, "/")
	if len(dest) >= 2 && dest[1] == ':' {
		dest = dest[2:]
	}
	dest = strings.TrimLeft(dest, "/")
	for _, elem := range strings.Split(dest, "/") {
		if elem == ".." {
			return "", ErrUnsafePath
		}
	}
	cleaned := path.Clean(dest)
	if cleaned == "." || cleaned == "" {
		return "", ErrUnsafePath
	}
	return cleaned, nil
}

// Join cleans dest and joins it under dir.
func Join(dir, dest string) (string, error) {
	rel, err := Clean(dest)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}
