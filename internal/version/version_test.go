package version

import (
	"strings"
	"testing"
)

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) || !strings.Contains(full, Commit) {
		t.Errorf("Full() = %q, want version and commit", full)
	}
}

func TestUserAgent(t *testing.T) {
	if got, want := UserAgent(), "castscan/"+Version; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
	if Version == "" {
		t.Error("Version should never be empty after init")
	}
}
