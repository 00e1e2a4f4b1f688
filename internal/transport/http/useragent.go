package http

import "strings"

// DetectOS classifies a User-Agent header into a coarse operating system
// label for device records. Order matters: Android UAs also contain "linux",
// and iOS UAs contain "mac os".
func DetectOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macos"), strings.Contains(ua, "darwin"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "other"
	}
}
