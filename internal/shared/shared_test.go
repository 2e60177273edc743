package shared

import "testing"

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("GenerateID() = %q, %q, want distinct non-empty ids", a, b)
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if len(state) != 32 {
		t.Errorf("len(state) = %d, want 32 hex chars", len(state))
	}

	other, _ := GenerateState()
	if state == other {
		t.Error("GenerateState() returned duplicate tokens")
	}
}

func TestOpenBrowserUnsupportedPlatform(t *testing.T) {
	original := getRuntime
	getRuntime = func() string { return "plan9" }
	defer func() { getRuntime = original }()

	if err := OpenBrowser("https://example.com"); err == nil {
		t.Error("OpenBrowser() error = nil, want unsupported platform")
	}
}
