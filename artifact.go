package screenrec

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// DefaultFilenamePrefix names downloaded recordings.
const DefaultFilenamePrefix = "pisethz-recording"

// Artifact is a finished recording held in memory.
type Artifact struct {
	mu          sync.Mutex
	data        []byte
	contentType string
	released    bool
}

// NewArtifact concatenates chunks, in order, into an artifact of the given
// content type.
func NewArtifact(chunks [][]byte, contentType string) *Artifact {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	data := make([]byte, 0, n)
	for _, c := range chunks {
		data = append(data, c...)
	}
	if contentType == "" {
		contentType = DefaultMimeType
	}
	return &Artifact{data: data, contentType: contentType}
}

// Bytes returns the recording, or nil once released.
func (a *Artifact) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Size returns the recording length in bytes.
func (a *Artifact) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

// ContentType returns the negotiated recorder MIME type.
func (a *Artifact) ContentType() string { return a.contentType }

// Extension returns "mp4" when the content type names MPEG-4, else "webm".
func (a *Artifact) Extension() string {
	return ParseFormat(a.contentType).Extension()
}

// Filename returns the suggested download name, e.g. "prefix.webm".
func (a *Artifact) Filename(prefix string) string {
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}
	return fmt.Sprintf("%s.%s", prefix, a.Extension())
}

// WriteTo writes the recording to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(a.Bytes()).WriteTo(w)
}

// Release drops the recording bytes. It is idempotent.
func (a *Artifact) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.released = true
}

// Released reports whether Release was called.
func (a *Artifact) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}
