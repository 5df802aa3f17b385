package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Severity classifies one validator finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one classified validator finding.
type Issue struct {
	Severity Severity
	Section  string
	Message  string
}

func (i Issue) String() string {
	if i.Section == "" {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("[%s] [%s] %s", i.Severity, i.Section, i.Message)
}

var canonicalSections = map[string]bool{
	"Connection": true, "Bot": true, "Channels": true,
	"Admin_ACL": true, "Banned_Users": true, "Localization": true,
	"Keywords": true, "Custom_Syntax": true, "Scheduled_Messages": true,
	"Logging": true, "External_Data": true, "Weather": true,
	"Solar_Config": true, "Channels_List": true, "Web_Viewer": true,
	"Feed_Manager": true, "PacketCapture": true, "MapUploader": true,
	"Weather_Service": true, "DiscordBridge": true, "Plugin_Overrides": true,
	"Companion_Purge": true,
	"DEFAULT":         true,
}

// knownTypos maps a commonly mistyped section name to the canonical one.
var knownTypos = map[string]string{
	"Connnection": "Connection", "Bott": "Bot", "Chanels": "Channels",
	"Admin_Acl": "Admin_ACL", "Localisation": "Localization",
	"Scheduled_Message": "Scheduled_Messages", "Plugin_Override": "Plugin_Overrides",
}

// ValidateFile classifies every section of path and returns severity-tagged
// issues: errors for missing required sections, warnings for section-name
// typos, unrecognized sections and a log_to_file setting with an empty
// file_path, info for absent optional sections. It does not check whether
// the database, log or web-viewer paths are writable.
func ValidateFile(path string) ([]Issue, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: false}, path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	var issues []Issue

	for _, name := range requiredSections {
		if !f.HasSection(name) {
			issues = append(issues, Issue{Severity: SeverityError, Section: name, Message: "required section is missing"})
		}
	}

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			continue
		}
		switch classifySection(name) {
		case classKnownTypo:
			issues = append(issues, Issue{
				Severity: SeverityWarning, Section: name,
				Message: fmt.Sprintf("looks like a typo of [%s]", knownTypos[name]),
			})
		case classUnknown:
			issues = append(issues, Issue{
				Severity: SeverityWarning, Section: name,
				Message: "unrecognized section",
			})
		}
	}

	optionalInfo := []string{
		"Admin_ACL", "Banned_Users", "Localization", "Keywords",
		"Custom_Syntax", "Scheduled_Messages", "Logging", "Web_Viewer",
		"Feed_Manager", "PacketCapture", "MapUploader", "Plugin_Overrides",
		"Companion_Purge",
	}
	for _, name := range optionalInfo {
		if !f.HasSection(name) {
			issues = append(issues, Issue{Severity: SeverityInfo, Section: name, Message: "optional section absent, defaults apply"})
		}
	}

	if f.HasSection("Logging") {
		sec := f.Section("Logging")
		if sec.Key("log_to_file").MustBool(false) {
			if strings.TrimSpace(sec.Key("file_path").String()) == "" {
				issues = append(issues, Issue{Severity: SeverityWarning, Section: "Logging", Message: "log_to_file is set but file_path is empty"})
			}
		}
	}

	if f.HasSection("Connection") {
		connector := strings.ToLower(unquote(f.Section("Connection").Key("connector").String()))
		switch ConnectorType(connector) {
		case ConnectorSerial, ConnectorBLE, ConnectorTCP, "":
		default:
			issues = append(issues, Issue{Severity: SeverityError, Section: "Connection", Message: fmt.Sprintf("unknown connector %q", connector)})
		}
	}

	return issues, nil
}

type sectionClass int

const (
	classCanonical sectionClass = iota
	classCommand
	classKnownTypo
	classUnknown
)

func classifySection(name string) sectionClass {
	if canonicalSections[name] {
		return classCanonical
	}
	if strings.HasSuffix(name, "_Command") {
		return classCommand
	}
	if _, ok := knownTypos[name]; ok {
		return classKnownTypo
	}
	return classUnknown
}

// HasErrors reports whether any issue is an error-severity finding.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
