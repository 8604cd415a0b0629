package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
)

func TestKey(t *testing.T) {
	if got := Key("u-1", "2026-10-19", "lunch"); got != "u-1/2026-10-19/lunch" {
		t.Fatalf("Key = %q", got)
	}
	a, d, m, ok := SplitKey("u-1/2026-10-19/lunch")
	if !ok || a != "u-1" || d != "2026-10-19" || m != "lunch" {
		t.Fatalf("SplitKey = %q %q %q %v", a, d, m, ok)
	}
	if _, _, _, ok := SplitKey("meal-photos/u-1/2026-10-19/lunch"); ok {
		t.Fatalf("SplitKey accepted a prefixed key")
	}
}

func TestMemory_OverwriteBumpsVersion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.Put(ctx, "a/2026-10-19/lunch", []byte("one"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := m.Put(ctx, "a/2026-10-19/lunch", []byte("two"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first.Version == second.Version {
		t.Fatalf("expected new version after overwrite, both %q", first.Version)
	}
	data, version, ok := m.Get("a/2026-10-19/lunch")
	if !ok || string(data) != "two" || version != second.Version {
		t.Fatalf("unexpected stored object: %q %q %v", data, version, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("expected single object, got %d", m.Len())
	}

	u1, _ := m.URL(first.Key, first.Version)
	u2, _ := m.URL(second.Key, second.Version)
	if u1 == u2 {
		t.Fatalf("URLs must differ across versions: %s", u1)
	}
}

func TestMemory_URLMissingObject(t *testing.T) {
	m := NewMemory()
	if _, err := m.URL("ghost", "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.URL("", "1"); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestCloudinary_PutDeleteAndURL(t *testing.T) {
	var seen []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		fields := map[string]string{"path": r.URL.Path}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if f, _, err := r.FormFile("file"); err == nil {
			b, _ := io.ReadAll(f)
			fields["file"] = string(b)
		}
		seen = append(seen, fields)
		switch {
		case strings.HasSuffix(r.URL.Path, "/upload"):
			_, _ = io.WriteString(w, `{"public_id":"meal-photos/u1/2026-10-19/lunch","version":1760850000,"bytes":3}`)
		case strings.HasSuffix(r.URL.Path, "/destroy"):
			_, _ = io.WriteString(w, `{"result":"ok"}`)
		}
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "meal-photos")
	c.APIBase = srv.URL
	c.now = func() time.Time { return time.Unix(1760850000, 0) }

	obj, err := c.Put(context.Background(), "u1/2026-10-19/lunch", []byte("jpg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Version != "1760850000" || obj.Size != 3 {
		t.Fatalf("unexpected object: %+v", obj)
	}
	up := seen[0]
	if up["path"] != "/v1_1/demo/image/upload" || up["public_id"] != "meal-photos/u1/2026-10-19/lunch" || up["overwrite"] != "true" || up["file"] != "jpg" {
		t.Fatalf("unexpected upload form: %+v", up)
	}
	want := c.sign(map[string]string{
		"timestamp":  "1760850000",
		"public_id":  "meal-photos/u1/2026-10-19/lunch",
		"overwrite":  "true",
		"invalidate": "true",
	})
	if up["signature"] != want {
		t.Fatalf("signature = %s, want %s", up["signature"], want)
	}

	if err := c.Delete(context.Background(), "u1/2026-10-19/lunch"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if seen[1]["path"] != "/v1_1/demo/image/destroy" {
		t.Fatalf("unexpected destroy path: %s", seen[1]["path"])
	}

	u, err := c.URL(obj.Key, obj.Version)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if u != "https://res.cloudinary.com/demo/image/upload/v1760850000/meal-photos/u1/2026-10-19/lunch" {
		t.Fatalf("URL = %s", u)
	}
	if _, err := c.URL(obj.Key, ""); !errors.Is(err, ErrNoVersion) {
		t.Fatalf("expected ErrNoVersion, got %v", err)
	}
}

func TestCloudinary_UploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "")
	c.APIBase = srv.URL
	if _, err := c.Put(context.Background(), "k", []byte("x"), ""); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestCloudinary_SignExcludesAPIKey(t *testing.T) {
	c := NewCloudinary("demo", "key", "secret", "")
	a := c.sign(map[string]string{"timestamp": "1", "public_id": "x"})
	b := c.sign(map[string]string{"timestamp": "1", "public_id": "x", "api_key": "other", "file": "data"})
	if a != b {
		t.Fatalf("api_key and file must not affect the signature")
	}
}

func TestS3Version(t *testing.T) {
	if got := s3Version(aws.String("3HL4kqtJlcpXroDTDmJ"), aws.String(`"abc"`)); got != "3HL4kqtJlcpXroDTDmJ" {
		t.Fatalf("version id should win, got %q", got)
	}
	if got := s3Version(aws.String("null"), aws.String(`"abc"`)); got != "abc" {
		t.Fatalf("expected etag, got %q", got)
	}
	if got := s3Version(nil, aws.String(`"d41d8"`)); got != "d41d8" {
		t.Fatalf("expected etag, got %q", got)
	}
}

func TestS3_PublicURLCarriesVersion(t *testing.T) {
	s, err := NewS3(S3Config{Bucket: "meal-photos", Region: "ap-southeast-1", PublicBaseURL: "https://cdn.example/meal-photos/"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	u, err := s.URL("u1/2026-10-19/dinner", "abc")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if u != "https://cdn.example/meal-photos/u1/2026-10-19/dinner?v=abc" {
		t.Fatalf("URL = %s", u)
	}
}
