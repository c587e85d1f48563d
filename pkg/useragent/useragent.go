// Package useragent derives coarse device metadata from a User-Agent header.
//
// The output is for display in a "your devices" list, nothing more. It is a
// pure substring matcher with an explicit Unknown fallback for every field;
// no external database, no version parsing.
package useragent

import "strings"

// Unknown is the fallback value for every field that cannot be determined.
const Unknown = "Unknown"

// Info is the parsed device metadata.
type Info struct {
	DeviceName string
	Browser    string
	OS         string
}

// Parse extracts device name, browser, and operating system from a raw
// User-Agent string. Every field falls back to Unknown rather than an empty
// string so persisted session rows are always displayable.
func Parse(ua string) Info {
	info := Info{
		DeviceName: Unknown,
		Browser:    Unknown,
		OS:         Unknown,
	}
	if strings.TrimSpace(ua) == "" {
		return info
	}

	lower := strings.ToLower(ua)

	info.OS = parseOS(lower)
	info.Browser = parseBrowser(lower)
	info.DeviceName = deviceName(lower, info.OS)

	return info
}

func parseOS(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return Unknown
	}
}

func parseBrowser(ua string) string {
	// Order matters: Chrome-family agents embed "safari", Edge embeds
	// "chrome", Opera embeds both.
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	default:
		return Unknown
	}
}

func deviceName(ua, os string) string {
	switch {
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "android") && strings.Contains(ua, "mobile"):
		return "Android Phone"
	case strings.Contains(ua, "android"):
		return "Android Tablet"
	}

	switch os {
	case "Windows":
		return "Windows PC"
	case "macOS":
		return "Mac"
	case "Linux":
		return "Linux PC"
	default:
		return Unknown
	}
}
