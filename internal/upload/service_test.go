package upload

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldCV/internal/errcode"
)

// newFileHeader 通过真实的 multipart 编解码构造 *multipart.FileHeader。
func newFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["file"]
	if len(files) != 1 {
		t.Fatalf("want 1 file, got %d", len(files))
	}
	return files[0]
}

func TestStoreWritesDatePartitionedFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, "https://cv.example.com", 1<<20, "image/png", "", nil)

	stored, err := svc.Store(newFileHeader(t, "avatar.PNG", "image/png", []byte("png-bytes")))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	wantPrefix := time.Now().Format("2006/01/02") + "/"
	if !strings.HasPrefix(stored.Path, wantPrefix) {
		t.Fatalf("path should be date partitioned, want prefix %q, got %q", wantPrefix, stored.Path)
	}
	if !strings.HasSuffix(stored.Path, ".png") {
		t.Fatalf("path should keep the lowercased extension, got %q", stored.Path)
	}
	if stored.URL != "https://cv.example.com/uploads/"+stored.Path {
		t.Fatalf("unexpected url %q", stored.URL)
	}
	if stored.Size != int64(len("png-bytes")) {
		t.Fatalf("want size %d, got %d", len("png-bytes"), stored.Size)
	}

	content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(stored.Path)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(content) != "png-bytes" {
		t.Fatalf("stored content mismatch: %q", content)
	}
}

func TestStoreRejectsOversizedFile(t *testing.T) {
	svc := NewService(t.TempDir(), "https://cv.example.com", 4, "image/png", "", nil)

	_, err := svc.Store(newFileHeader(t, "big.png", "image/png", []byte("way too large")))
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("oversized file: want BadRequest, got %v", err)
	}
}

func TestStoreRejectsDisallowedType(t *testing.T) {
	svc := NewService(t.TempDir(), "https://cv.example.com", 1<<20, "image/png,image/jpeg", "", nil)

	_, err := svc.Store(newFileHeader(t, "evil.exe", "application/octet-stream", []byte("MZ")))
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("disallowed type: want BadRequest, got %v", err)
	}
}

func TestStoreNormalizesContentType(t *testing.T) {
	svc := NewService(t.TempDir(), "https://cv.example.com", 1<<20, "text/plain", "", nil)

	stored, err := svc.Store(newFileHeader(t, "note.txt", "Text/Plain; charset=utf-8", []byte("hello")))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if stored.MimeType != "text/plain" {
		t.Fatalf("want normalized mime type, got %q", stored.MimeType)
	}
}
