package version

import "testing"

func TestGet(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "  v1.2.3\n"
	if got := Get(); got != "v1.2.3" {
		t.Errorf("Get() = %q, want v1.2.3", got)
	}

	version = ""
	if got := Get(); got == "" {
		t.Error("Get() should never be empty")
	}
}
