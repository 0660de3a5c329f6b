package archival

import (
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := zerolog.New(io.Discard)

	tests := []struct {
		name          string
		cfg           Config
		expectError   bool
		errorContains string
	}{
		{
			name: "valid credentials",
			cfg: Config{
				AccountID: "acct", AccessKeyID: "key", SecretAccessKey: "secret", Bucket: "thumbs",
			},
		},
		{
			name:          "missing account id",
			cfg:           Config{AccessKeyID: "key", SecretAccessKey: "secret", Bucket: "thumbs"},
			expectError:   true,
			errorContains: "credentials incomplete",
		},
		{
			name:          "missing access key",
			cfg:           Config{AccountID: "acct", SecretAccessKey: "secret", Bucket: "thumbs"},
			expectError:   true,
			errorContains: "credentials incomplete",
		},
		{
			name:          "missing bucket",
			cfg:           Config{AccountID: "acct", AccessKeyID: "key", SecretAccessKey: "secret"},
			expectError:   true,
			errorContains: "credentials incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg, log)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorContains)
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error containing %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.bucket != tt.cfg.Bucket {
				t.Fatalf("expected bucket %q, got %q", tt.cfg.Bucket, client.bucket)
			}
			if client.uploader == nil {
				t.Fatal("expected uploader to be initialized")
			}
		})
	}
}

func TestKey_IsNamespacedByPlatformAndDay(t *testing.T) {
	k := key("coupang", "https://img.example.com/p/123.jpg")
	if !strings.HasPrefix(k, "thumbnails/coupang/") {
		t.Fatalf("expected key to be namespaced under thumbnails/coupang/, got %q", k)
	}
}

func TestSanitize_StripsUnsafeCharacters(t *testing.T) {
	got := sanitize("https://img.example.com/p/123?v=2&w=400")
	if strings.ContainsAny(got, ":/?&=") {
		t.Fatalf("expected unsafe characters to be stripped, got %q", got)
	}
}
