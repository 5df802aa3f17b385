package translate

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMessages(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write translation file: %v", err)
	}
}

func TestTranslator_LocalizesKnownMessage(t *testing.T) {
	dir := t.TempDir()
	writeMessages(t, dir, "en.yaml", "greeting: \"hello {{.Name}}\"\n")

	tr, err := New("en", dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := tr.T("greeting", map[string]any{"Name": "Ada"})
	if got != "hello Ada" {
		t.Fatalf("got %q", got)
	}
}

func TestTranslator_FallsBackToMessageIDWhenMissing(t *testing.T) {
	dir := t.TempDir()
	writeMessages(t, dir, "en.yaml", "greeting: hello\n")

	tr, err := New("en", dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tr.T("does_not_exist", nil); got != "does_not_exist" {
		t.Fatalf("expected fallback to message id, got %q", got)
	}
}

func TestTranslator_MissingDirDoesNotError(t *testing.T) {
	tr, err := New("en", filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatalf("New should tolerate a missing translation dir: %v", err)
	}
	if got := tr.T("anything", nil); got != "anything" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
