package utils

import (
	"errors"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict drops every tag; catalog names and member names are shown as text
// on the seat terminals.
var strict = bluemonday.StrictPolicy()

// ErrInvalidImageURL is returned for image links that are not absolute
// http(s) URLs.
var ErrInvalidImageURL = errors.New("image url must be an absolute http or https url")

// CleanText strips markup and surrounding whitespace from user-supplied
// display text.  The result is plain text: entities the policy emits are
// decoded again so "Fish & Chips" is stored as typed.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// CleanImageURL trims s and checks it is an absolute http or https URL.
// An empty string means no image.
func CleanImageURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidImageURL
	}
	return s, nil
}
