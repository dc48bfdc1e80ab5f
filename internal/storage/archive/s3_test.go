// internal/storage/archive/s3_test.go
package archive

import (
	"testing"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "runs/r1/trades.csv", "runs/r1/trades.csv"},
		{"driftlab", "runs/r1/trades.csv", "driftlab/runs/r1/trades.csv"},
		{"driftlab/", "/prices/AAPL.csv", "driftlab/prices/AAPL.csv"},
	}

	for _, tt := range tests {
		s, _ := NewS3(S3Config{Bucket: "b", Prefix: tt.prefix})
		if got := s.key(tt.path); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestS3Storage_Relative(t *testing.T) {
	s, _ := NewS3(S3Config{Bucket: "b", Prefix: "driftlab"})
	if got := s.relative("driftlab/runs/r1/result.json"); got != "runs/r1/result.json" {
		t.Errorf("relative = %q", got)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"runs/r1/trades.csv":  "text/csv",
		"runs/r1/result.json": "application/json",
		"blob":                "application/octet-stream",
	}
	for p, want := range tests {
		if got := contentType(p); got != want {
			t.Errorf("contentType(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	if _, err := New(Config{Type: "localfs", Path: t.TempDir()}); err != nil {
		t.Errorf("localfs: %v", err)
	}
	if _, err := New(Config{Type: "s3", S3: S3Config{Bucket: "artifacts", Endpoint: "http://localhost:9000"}}); err != nil {
		t.Errorf("s3: %v", err)
	}
	if _, err := New(Config{Type: "localfs"}); err == nil {
		t.Error("expected error for missing path")
	}
	if _, err := New(Config{Type: "s3"}); err == nil {
		t.Error("expected error for missing bucket")
	}
	if _, err := New(Config{Type: "gcs"}); err == nil {
		t.Error("expected error for unknown type")
	}
}
