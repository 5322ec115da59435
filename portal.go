package screenrec

import (
	"fmt"
	"strings"
)

// Portal ScreenCast source type bits.
const (
	PortalSourceMonitor uint32 = 1
	PortalSourceWindow  uint32 = 2
	PortalSourceVirtual uint32 = 4
)

// Portal ScreenCast cursor mode bits.
const (
	PortalCursorHidden   uint32 = 1
	PortalCursorEmbedded uint32 = 2
	PortalCursorMetadata uint32 = 4
)

// PortalInfo describes the desktop's xdg-desktop-portal ScreenCast
// interface, the display capture backend of Linux browsers.
type PortalInfo struct {
	Version     uint32
	SourceTypes uint32
	CursorModes uint32
}

// MediaSources returns the capture source hints the portal can serve, in
// the order display capture tries them.
func (p PortalInfo) MediaSources() []string {
	var out []string
	if p.SourceTypes&PortalSourceMonitor != 0 {
		out = append(out, "screen")
	}
	if p.SourceTypes&PortalSourceWindow != 0 {
		out = append(out, "window")
	}
	if p.SourceTypes&PortalSourceVirtual != 0 {
		out = append(out, "application")
	}
	return out
}

func (p PortalInfo) String() string {
	var modes []string
	if p.CursorModes&PortalCursorHidden != 0 {
		modes = append(modes, "hidden")
	}
	if p.CursorModes&PortalCursorEmbedded != 0 {
		modes = append(modes, "embedded")
	}
	if p.CursorModes&PortalCursorMetadata != 0 {
		modes = append(modes, "metadata")
	}
	return fmt.Sprintf("screencast v%d sources=[%s] cursor=[%s]",
		p.Version, strings.Join(p.MediaSources(), ","), strings.Join(modes, ","))
}
