// Package normalize canonicalizes discovered image URLs and derives
// filesystem-safe names for a location.
package normalize

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gmapsimages/pkg/models"
)

var (
	sizeDirective   = regexp.MustCompile(`=w\d+-h\d+`)
	unsafeFileChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// DefaultExtension is used when a URL path carries no usable image extension
const DefaultExtension = ".jpg"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".avif": true,
	".heic": true,
}

// HighResolution rewrites every "=w<digits>-h<digits>" size directive to
// "=w0-h0". URLs without a directive are returned unchanged.
func HighResolution(raw string) string {
	return sizeDirective.ReplaceAllString(raw, "=w0-h0")
}

// Reference builds the immutable reference for a raw URL. The dedup key is
// the exact canonical string.
func Reference(raw string) models.ImageReference {
	canonical := HighResolution(strings.TrimSpace(raw))
	return models.ImageReference{
		RawURL:       raw,
		CanonicalURL: canonical,
		DedupKey:     canonical,
	}
}

// IsAssetURL reports whether u points at the image asset host
func IsAssetURL(u, host string) bool {
	if u == "" || host == "" {
		return false
	}
	return strings.Contains(u, host)
}

// SanitizeFilename makes a location label safe as a directory and file stem
func SanitizeFilename(s string) string {
	s = norm.NFC.String(s)
	s = unsafeFileChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")
	return whitespaceRun.ReplaceAllString(s, "_")
}

// Extension infers the file extension from the URL path
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}

	// Size directives such as "=w0-h0" trail the path segment
	if i := strings.LastIndex(p, "="); i > strings.LastIndex(p, "/") {
		p = p[:i]
	}

	ext := strings.ToLower(path.Ext(p))
	if !imageExtensions[ext] {
		return DefaultExtension
	}
	return ext
}
