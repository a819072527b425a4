package util

import (
	"errors"
	"mime"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// FilenameFromContentDisposition extracts the filename parameter of a Content-Disposition header value, preferring
// the RFC 5987 filename* form when present.
func FilenameFromContentDisposition(header string) (string, error) {
	if header == "" {
		return "", ErrNoFilename
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", err
	}
	filename := SanitizeFilename(params["filename"])
	if filename == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

// SanitizeFilename reduces name to a single path element that is safe to create in a target directory, or "" if
// nothing usable remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"|?*`, r) {
			return '_'
		}
		return r
	}, name)
	if strings.ReplaceAll(name, ".", "") == "" || name == "/" {
		return ""
	}
	return name
}
