package screenrec

import "regexp"

// DefaultMimeType is used when the recorder claims support for no candidate.
const DefaultMimeType = "video/webm"

var (
	webmCandidates = []string{
		"video/webm;codecs=vp9,opus",
		"video/webm;codecs=vp9",
		"video/webm;codecs=vp8,opus",
		"video/webm;codecs=vp8",
		"video/webm",
	}
	mp4Candidates = []string{
		"video/mp4;codecs=h264,aac",
		"video/mp4;codecs=h264",
		"video/mp4",
	}

	mobileUA   = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|Mobile`)
	safariUA   = regexp.MustCompile(`(?i)Safari`)
	chromiumUA = regexp.MustCompile(`(?i)Chrome|Chromium`)
)

// Environment describes the running platform as far as the prober cares.
type Environment struct {
	UserAgent string
}

// IsMobileUserAgent reports whether ua belongs to a mobile-class device.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// IsSafariUserAgent reports whether ua belongs to a Safari-like engine.
func IsSafariUserAgent(ua string) bool {
	return safariUA.MatchString(ua) && !chromiumUA.MatchString(ua)
}

// Capabilities is the result of probing an environment.
type Capabilities struct {
	Mobile   bool
	Safari   bool
	MimeType string
}

// Format returns the parsed negotiated MIME type.
func (c Capabilities) Format() Format {
	return ParseFormat(c.MimeType)
}

// MimeTypeCandidates returns the recorder MIME types in preference order.
// Safari-like engines get the MP4 list first.
func MimeTypeCandidates(safari bool) []string {
	out := make([]string, 0, len(webmCandidates)+len(mp4Candidates))
	if safari {
		out = append(out, mp4Candidates...)
		return append(out, webmCandidates...)
	}
	out = append(out, webmCandidates...)
	return append(out, mp4Candidates...)
}

// NegotiateMimeType returns the first candidate that supported accepts,
// or DefaultMimeType when none does.
func NegotiateMimeType(safari bool, supported func(string) bool) string {
	if supported == nil {
		return DefaultMimeType
	}
	for _, mt := range MimeTypeCandidates(safari) {
		if checkSupported(supported, mt) {
			return mt
		}
	}
	return DefaultMimeType
}

// checkSupported treats a panicking support check as "unsupported".
func checkSupported(supported func(string) bool, mimeType string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return supported(mimeType)
}

// Probe inspects env and the recorder factory. It has no side effects and
// always returns a usable MIME type.
func Probe(env Environment, recorders RecorderFactory) Capabilities {
	caps := Capabilities{
		Mobile: IsMobileUserAgent(env.UserAgent),
		Safari: IsSafariUserAgent(env.UserAgent),
	}
	var supported func(string) bool
	if recorders != nil {
		supported = recorders.IsTypeSupported
	}
	caps.MimeType = NegotiateMimeType(caps.Safari, supported)
	return caps
}
