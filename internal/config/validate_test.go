package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFileClassifiesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.ini")
	body := `
[Connection]
connector = tcp
tcp_host = 1.2.3.4
tcp_port = 5000

[Bot]
name = bot

[Connnection]
foo = bar

[SomeRandomSection]
x = 1
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	issues, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}

	var sawMissingChannels, sawTypo, sawUnknown bool
	for _, iss := range issues {
		switch {
		case iss.Severity == SeverityError && iss.Section == "Channels":
			sawMissingChannels = true
		case iss.Section == "Connnection":
			sawTypo = true
		case iss.Section == "SomeRandomSection":
			sawUnknown = true
		}
	}
	if !sawMissingChannels {
		t.Errorf("expected missing required [Channels] error, got %+v", issues)
	}
	if !sawTypo {
		t.Errorf("expected typo warning for [Connnection], got %+v", issues)
	}
	if !sawUnknown {
		t.Errorf("expected unknown-section warning for [SomeRandomSection], got %+v", issues)
	}
	if !HasErrors(issues) {
		t.Errorf("expected HasErrors true")
	}
}

func TestValidateFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.ini")
	body := "[Connection]\nconnector = tcp\ntcp_host = 1.2.3.4\ntcp_port = 5000\n\n[Bot]\nname=b\n\n[Channels]\nmonitor_channels=general\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	first, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile first: %v", err)
	}
	second, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile second: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected idempotent issue count, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected idempotent issue at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCommandSectionsAreNotFlaggedUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.ini")
	body := "[Connection]\nconnector = tcp\ntcp_host = 1.2.3.4\ntcp_port=5000\n\n[Bot]\n\n[Channels]\n\n[Ping_Command]\nenabled=true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	issues, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
	for _, iss := range issues {
		if iss.Section == "Ping_Command" {
			t.Fatalf("did not expect a finding for a *_Command section, got %+v", iss)
		}
	}
}
