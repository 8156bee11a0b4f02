package story

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/haivivi/storyspark/pkg/genx"
)

// ErrUnsupportedMedia is returned for attachments that are neither an image
// nor a video.
var ErrUnsupportedMedia = errors.New("story: unsupported media type")

// Media is an uploaded image or video. The zero value is an empty
// attachment.
type Media struct {
	data     []byte
	mimeType string
}

// NewMedia captures a copy of data. Only image/* and video/* MIME types are
// accepted.
func NewMedia(data []byte, mimeType string) (Media, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if !isVisualMIME(mt) {
		return Media{}, fmt.Errorf("%w: %q", ErrUnsupportedMedia, mimeType)
	}
	if len(data) == 0 {
		return Media{}, fmt.Errorf("story: empty %s attachment", mt)
	}
	return Media{data: slices.Clone(data), mimeType: mt}, nil
}

// FirstMedia returns the first item that is an image or a video. Later
// items are ignored, matching a paste of several files where only one
// attachment is kept.
func FirstMedia(items []*genx.Blob) (Media, error) {
	for _, it := range items {
		if it == nil || !isVisualMIME(baseMIME(it.MIMEType)) {
			continue
		}
		return NewMedia(it.Data, it.MIMEType)
	}
	return Media{}, ErrUnsupportedMedia
}

// ReadMediaFile reads path and detects its MIME type from the content,
// falling back to the file extension.
func ReadMediaFile(path string) (*genx.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &genx.Blob{MIMEType: DetectMIME(path, data), Data: data}, nil
}

// videoExts covers containers that content sniffing does not recognize and
// that the platform MIME table may lack.
var videoExts = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".3gp":  "video/3gpp",
}

// DetectMIME sniffs the MIME type of data, falling back to the extension of
// name when the content is not recognized.
func DetectMIME(name string, data []byte) string {
	mt := baseMIME(http.DetectContentType(data))
	if mt != "application/octet-stream" && mt != "text/plain" {
		return mt
	}
	ext := strings.ToLower(filepath.Ext(name))
	if v, ok := videoExts[ext]; ok {
		return v
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return baseMIME(byExt)
	}
	return mt
}

// Data returns a copy of the attachment bytes.
func (m Media) Data() []byte {
	return slices.Clone(m.data)
}

func (m Media) MIMEType() string {
	return m.mimeType
}

func (m Media) Size() int {
	return len(m.data)
}

func (m Media) IsZero() bool {
	return m.mimeType == ""
}

func (m Media) IsVideo() bool {
	return strings.HasPrefix(m.mimeType, "video/")
}

// Blob returns the attachment as an inline request part.
func (m Media) Blob() *genx.Blob {
	return &genx.Blob{MIMEType: m.mimeType, Data: m.Data()}
}

func baseMIME(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}

func isVisualMIME(mt string) bool {
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/")
}
