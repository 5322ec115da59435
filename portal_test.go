package screenrec

import (
	"slices"
	"testing"
)

func TestPortalInfo(t *testing.T) {
	tests := []struct {
		name    string
		info    PortalInfo
		sources []string
		str     string
	}{
		{
			name:    "gnome",
			info:    PortalInfo{Version: 4, SourceTypes: PortalSourceMonitor | PortalSourceWindow, CursorModes: PortalCursorHidden | PortalCursorEmbedded},
			sources: []string{"screen", "window"},
			str:     "screencast v4 sources=[screen,window] cursor=[hidden,embedded]",
		},
		{
			name:    "everything",
			info:    PortalInfo{Version: 5, SourceTypes: 7, CursorModes: 7},
			sources: []string{"screen", "window", "application"},
			str:     "screencast v5 sources=[screen,window,application] cursor=[hidden,embedded,metadata]",
		},
		{
			name: "empty",
			str:  "screencast v0 sources=[] cursor=[]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.MediaSources(); !slices.Equal(got, tt.sources) {
				t.Errorf("MediaSources = %v, want %v", got, tt.sources)
			}
			if got := tt.info.String(); got != tt.str {
				t.Errorf("String = %q, want %q", got, tt.str)
			}
		})
	}
}
