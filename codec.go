package screenrec

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// Container identifies the recording container of a negotiated MIME type.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerWebM
	ContainerMP4
)

func (c Container) String() string {
	switch c {
	case ContainerWebM:
		return "WebM"
	case ContainerMP4:
		return "MP4"
	default:
		return "Unknown"
	}
}

// VideoCodec identifies the video codec named in a MIME type.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecH264:
		return "H264"
	default:
		return "Unknown"
	}
}

// MimeType returns the RTP-style MIME type for this codec.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecVP8:
		return webrtc.MimeTypeVP8
	case VideoCodecVP9:
		return webrtc.MimeTypeVP9
	case VideoCodecH264:
		return webrtc.MimeTypeH264
	default:
		return ""
	}
}

// AudioCodec identifies the audio codec named in a MIME type.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
	AudioCodecAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "Opus"
	case AudioCodecAAC:
		return "AAC"
	default:
		return "Unknown"
	}
}

// MimeType returns the RTP-style MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecOpus:
		return webrtc.MimeTypeOpus
	case AudioCodecAAC:
		return "audio/AAC"
	default:
		return ""
	}
}

// Format is a parsed recorder MIME type such as "video/webm;codecs=vp9,opus".
type Format struct {
	MimeType   string
	Container  Container
	VideoCodec VideoCodec
	AudioCodec AudioCodec
}

// ParseFormat splits a recorder MIME type into container and codecs.
// Unknown parts are left at their zero values.
func ParseFormat(mimeType string) Format {
	f := Format{MimeType: mimeType}
	base, params, _ := strings.Cut(strings.ToLower(mimeType), ";")
	switch strings.TrimSpace(base) {
	case "video/webm", "audio/webm":
		f.Container = ContainerWebM
	case "video/mp4", "audio/mp4":
		f.Container = ContainerMP4
	}

	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(key) != "codecs" {
			continue
		}
		for _, codec := range strings.Split(strings.Trim(value, `"`), ",") {
			switch c := strings.TrimSpace(codec); {
			case c == "vp8":
				f.VideoCodec = VideoCodecVP8
			case c == "vp9" || strings.HasPrefix(c, "vp09"):
				f.VideoCodec = VideoCodecVP9
			case c == "h264" || c == "avc1" || strings.HasPrefix(c, "avc1."):
				f.VideoCodec = VideoCodecH264
			case c == "opus":
				f.AudioCodec = AudioCodecOpus
			case c == "aac" || strings.HasPrefix(c, "mp4a"):
				f.AudioCodec = AudioCodecAAC
			}
		}
	}
	return f
}

// IsMP4 reports whether the negotiated type names MPEG-4.
func (f Format) IsMP4() bool {
	return f.Container == ContainerMP4 || strings.Contains(strings.ToLower(f.MimeType), "mp4")
}

// Extension returns the file extension for an artifact of this format.
func (f Format) Extension() string {
	if f.IsMP4() {
		return "mp4"
	}
	return "webm"
}

// Capabilities returns the codec capabilities named by the format, video first.
func (f Format) Capabilities() []webrtc.RTPCodecCapability {
	var caps []webrtc.RTPCodecCapability
	if m := f.VideoCodec.MimeType(); m != "" {
		caps = append(caps, webrtc.RTPCodecCapability{MimeType: m, ClockRate: 90000})
	}
	switch f.AudioCodec {
	case AudioCodecOpus:
		caps = append(caps, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2})
	case AudioCodecAAC:
		caps = append(caps, webrtc.RTPCodecCapability{MimeType: f.AudioCodec.MimeType(), ClockRate: 48000, Channels: 2})
	}
	return caps
}
