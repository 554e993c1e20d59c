package helpers

import (
	"net/url"
	"strconv"
	"strings"
)

// Canonicalize resolves href against base and drops the query string and fragment.
// It returns an empty string for hrefs that do not resolve to an http(s) URL.
func Canonicalize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := baseURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.RawQuery = ""
	abs.ForceQuery = false
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

// WithQueryParam returns rawURL with param set to value, keeping other parameters
func WithQueryParam(rawURL, param string, value int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(value))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Host returns the host of rawURL, or an empty string when it cannot be parsed
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
