//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight per-request metadata for the mini-app endpoint: client IP,
//  parsed user agent, and timestamp.  These structs are inert and safe to
//  log.  The client IP is what the verification page hands back to the bot,
//  so it is extracted once here and read by the web-app handler.
//
//  Dependencies
//  • github.com/avct/uasurfer   (UA parsing)
//

package requestinfo

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avct/uasurfer"
)

// UA holds the parsed user-agent properties we log.
type UA struct {
	Raw         string
	Browser     string // "Chrome", "Safari", ...
	Version     string // "124.0.6367"
	OS          string // "iOS", "Android", ...
	Device      string // "Phone", "Tablet", "Desktop", ...
	IsBot       bool
	PrimaryLang string // first Accept-Language tag
}

// RequestInfo is attached to the request context by Enrich.
type RequestInfo struct {
	IP        net.IP
	UA        UA
	Timestamp time.Time
}

type ctxKey struct{}

// FromContext returns the value stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// parseUA converts a raw header into UA using uasurfer.
func parseUA(uaHeader, acceptLang string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}

	return UA{
		Raw:         uaHeader,
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     trimVersion(u.Browser.Version),
		OS:          osName,
		Device:      deviceName(u.DeviceType),
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// trimVersion renders "major.minor.patch" without trailing ".0" groups.
func trimVersion(v uasurfer.Version) string {
	parts := []string{
		strconv.Itoa(v.Major),
		strconv.Itoa(v.Minor),
		strconv.Itoa(v.Patch),
	}
	for len(parts) > 1 && parts[len(parts)-1] == "0" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func deviceName(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// primaryLang extracts the first language tag before any ";q=" rule.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag, _, _ := strings.Cut(al, ",")
	tag, _, _ = strings.Cut(strings.TrimSpace(tag), ";")
	return strings.ToLower(tag)
}
