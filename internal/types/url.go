package types

import (
	"fmt"
	"net/url"
	"strings"
)

// AbsoluteURL resolves a DOM reference against the site origin.
//
//	//cdn.example.com/a.jpg -> https://cdn.example.com/a.jpg
//	/products/chair/        -> <origin>/products/chair/
//	https://x.test/y        -> unchanged
//
// Anything else (empty, fragments, javascript:, bare relative paths) is
// reported as unresolvable.
func AbsoluteURL(origin, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", false
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref, true
	case strings.HasPrefix(ref, "/"):
		if origin == "" {
			return "", false
		}
		return strings.TrimRight(origin, "/") + ref, true
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return ref, true
}

// Origin returns scheme://host of rawURL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", ErrInvalidURL, rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
