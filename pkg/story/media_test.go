package story

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/storyspark/pkg/genx"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewMedia(t *testing.T) {
	data := []byte{1, 2, 3}
	m, err := NewMedia(data, "Image/PNG; foo=bar")
	if err != nil {
		t.Fatal(err)
	}
	if m.MIMEType() != "image/png" || m.IsVideo() || m.Size() != 3 {
		t.Fatalf("media = %q video=%v size=%d", m.MIMEType(), m.IsVideo(), m.Size())
	}
	data[0] = 9
	if m.Data()[0] != 1 {
		t.Fatal("NewMedia kept the caller's slice")
	}
	d := m.Data()
	d[1] = 9
	if m.Data()[1] != 2 {
		t.Fatal("Data exposed internal bytes")
	}

	v, err := NewMedia(data, "video/mp4")
	if err != nil || !v.IsVideo() {
		t.Fatalf("video: %v, %v", v.IsVideo(), err)
	}
}

func TestNewMedia_Rejects(t *testing.T) {
	for _, mt := range []string{"audio/wav", "text/plain", "application/pdf", ""} {
		if _, err := NewMedia([]byte{1}, mt); !errors.Is(err, ErrUnsupportedMedia) {
			t.Errorf("NewMedia(%q) error = %v", mt, err)
		}
	}
	if _, err := NewMedia(nil, "image/png"); err == nil {
		t.Error("empty data should fail")
	}
}

func TestFirstMedia(t *testing.T) {
	items := []*genx.Blob{
		{MIMEType: "text/plain", Data: []byte("hi")},
		nil,
		{MIMEType: "video/webm", Data: []byte{1}},
		{MIMEType: "image/png", Data: []byte{2}},
	}
	m, err := FirstMedia(items)
	if err != nil {
		t.Fatal(err)
	}
	if m.MIMEType() != "video/webm" {
		t.Fatalf("picked %q, want the first visual item", m.MIMEType())
	}

	if _, err := FirstMedia(items[:2]); !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("no visual items: error = %v", err)
	}
}

func TestReadMediaFile(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "pic.bin")
	if err := os.WriteFile(png, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := ReadMediaFile(png)
	if err != nil {
		t.Fatal(err)
	}
	if b.MIMEType != "image/png" {
		t.Errorf("sniffed %q, want image/png", b.MIMEType)
	}

	mov := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(mov, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err = ReadMediaFile(mov)
	if err != nil {
		t.Fatal(err)
	}
	if b.MIMEType != "video/quicktime" {
		t.Errorf("extension fallback = %q, want video/quicktime", b.MIMEType)
	}

	if _, err := ReadMediaFile(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}
