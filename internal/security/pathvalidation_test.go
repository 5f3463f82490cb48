package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "site.json")
	if err := os.WriteFile(good, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	clean, err := ValidateConfigPath(good)
	if err != nil {
		t.Fatalf("ValidateConfigPath(%q) failed: %v", good, err)
	}
	if clean != good {
		t.Errorf("Cleaned path = %q, want %q", clean, good)
	}
}

func TestValidateConfigPathRejectsExtension(t *testing.T) {
	if _, err := ValidateConfigPath("site.yaml"); err == nil {
		t.Error("Expected error for non-JSON extension")
	}
}

func TestValidateConfigPathMissingFile(t *testing.T) {
	if _, err := ValidateConfigPath(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateConfigPathTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.json")
	if err := os.WriteFile(path, make([]byte, MaxConfigFileSize+1), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := ValidateConfigPath(path); err == nil {
		t.Error("Expected error for oversized file")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"car", "car"},
		{"traffic light", "traffic_light"},
		{"a/b\\c", "a_b_c"},
		{"  spaces  ", "spaces"},
		{"..", "unknown"},
		{"", "unknown"},
		{"multi   space", "multi_space"},
		{"UPPER-case.ok_1", "UPPER-case.ok_1"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameLengthCap(t *testing.T) {
	long := strings.Repeat("a", 500)
	if got := SanitizeFilename(long); len(got) > 128 {
		t.Errorf("Sanitized length = %d, want <= 128", len(got))
	}
}
