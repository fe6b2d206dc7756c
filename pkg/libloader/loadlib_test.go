package libloader_test

import (
	"testing"

	"github.com/johbar/ocr-service/pkg/libloader"
)

func TestTryLoadLibFails(t *testing.T) {
	lib, path, err := libloader.TryLoadLib("/nonexistent/libfoo.so", "libdoesnotexist-4711.so")
	if err == nil {
		t.Fatalf("expected an error, got lib %v at %q", lib, path)
	}
	if lib != 0 || path != "" {
		t.Errorf("got: %v %q, want: 0 \"\"", lib, path)
	}
}

func TestTryLoadLibNoPaths(t *testing.T) {
	if _, _, err := libloader.TryLoadLib(); err == nil {
		t.Error("expected an error when no paths are given")
	}
}
