package evidence

import "strings"

// ParseUserAgent extracts a coarse device class, OS, and browser from a raw
// user-agent string. This is evidence metadata, not feature detection, so
// the buckets are deliberately broad.
func ParseUserAgent(ua string) (class, os, browser string) {
	lower := strings.ToLower(strings.TrimSpace(ua))
	if lower == "" {
		return "unknown", "unknown", "unknown"
	}

	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		class = "tablet"
	case strings.Contains(lower, "mobi"), strings.Contains(lower, "iphone"), strings.Contains(lower, "android"):
		class = "mobile"
	default:
		class = "desktop"
	}

	switch {
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		os = "ios"
	case strings.Contains(lower, "android"):
		os = "android"
	case strings.Contains(lower, "windows"):
		os = "windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		os = "macos"
	case strings.Contains(lower, "linux"):
		os = "linux"
	default:
		os = "unknown"
	}

	switch {
	case strings.Contains(lower, "edg/"):
		browser = "edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		browser = "opera"
	case strings.Contains(lower, "chrome/"):
		browser = "chrome"
	case strings.Contains(lower, "firefox/"):
		browser = "firefox"
	case strings.Contains(lower, "safari/"):
		browser = "safari"
	default:
		browser = "unknown"
	}
	return class, os, browser
}
