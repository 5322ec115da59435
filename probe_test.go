package screenrec

import "testing"

const (
	desktopSafariUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	androidChromeUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Mobile Safari/537.36"
	firefoxUA       = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

func TestUserAgentDetection(t *testing.T) {
	tests := []struct {
		name   string
		ua     string
		mobile bool
		safari bool
	}{
		{"desktop chromium", DefaultDesktopUserAgent, false, false},
		{"desktop safari", desktopSafariUA, false, true},
		{"iphone safari", iphoneUA, true, true},
		{"android chrome", androidChromeUA, true, false},
		{"firefox", firefoxUA, false, false},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Safari/604.1", true, true},
		{"empty", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMobileUserAgent(tt.ua); got != tt.mobile {
				t.Errorf("IsMobileUserAgent = %v, want %v", got, tt.mobile)
			}
			if got := IsSafariUserAgent(tt.ua); got != tt.safari {
				t.Errorf("IsSafariUserAgent = %v, want %v", got, tt.safari)
			}
		})
	}
}

func TestMimeTypeCandidates_Order(t *testing.T) {
	webm := MimeTypeCandidates(false)
	if webm[0] != "video/webm;codecs=vp9,opus" || webm[len(webm)-1] != "video/mp4" {
		t.Errorf("non-safari order = %v", webm)
	}
	mp4 := MimeTypeCandidates(true)
	if mp4[0] != "video/mp4;codecs=h264,aac" || mp4[len(mp4)-1] != "video/webm" {
		t.Errorf("safari order = %v", mp4)
	}
	if len(webm) != 8 || len(mp4) != 8 {
		t.Errorf("candidate counts = %d/%d, want 8", len(webm), len(mp4))
	}
}

func TestNegotiateMimeType(t *testing.T) {
	only := func(types ...string) func(string) bool {
		return func(mt string) bool {
			for _, t := range types {
				if t == mt {
					return true
				}
			}
			return false
		}
	}
	tests := []struct {
		name      string
		safari    bool
		supported func(string) bool
		want      string
	}{
		{"chromium full support", false, func(string) bool { return true }, "video/webm;codecs=vp9,opus"},
		{"safari full support", true, func(string) bool { return true }, "video/mp4;codecs=h264,aac"},
		{"vp8 only", false, only("video/webm;codecs=vp8"), "video/webm;codecs=vp8"},
		{"safari without mp4", true, only("video/webm;codecs=vp8,opus"), "video/webm;codecs=vp8,opus"},
		{"non-safari mp4 only", false, only("video/mp4;codecs=h264"), "video/mp4;codecs=h264"},
		{"nothing supported", false, only(), DefaultMimeType},
		{"no support check", false, nil, DefaultMimeType},
		{"panicking check", false, func(string) bool { panic("boom") }, DefaultMimeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NegotiateMimeType(tt.safari, tt.supported); got != tt.want {
				t.Errorf("NegotiateMimeType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	caps := Probe(Environment{UserAgent: iphoneUA}, nil)
	if !caps.Mobile || !caps.Safari || caps.MimeType != DefaultMimeType {
		t.Errorf("Probe without recorder = %+v", caps)
	}

	caps = Probe(Environment{UserAgent: DefaultDesktopUserAgent}, NewWebMRecorderFactory())
	if caps.Mobile || caps.Safari || caps.MimeType != "video/webm" {
		t.Errorf("Probe with webm recorder = %+v", caps)
	}
	if caps.Format().Container != ContainerWebM {
		t.Errorf("Format().Container = %v, want webm", caps.Format().Container)
	}
}
