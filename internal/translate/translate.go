// Package translate wraps go-i18n so every user-facing reply goes through a
// single localization point, honoring the [Localization] section's
// language and translation_path (spec.md §6.1).
package translate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Translator renders message IDs to localized strings, falling back to
// English (and finally to the message ID itself) when a translation or
// file is missing — a missing string must never crash a reply.
type Translator struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	log       *slog.Logger
}

const defaultLanguage = "en"

// New loads every "*.yaml"/"*.yml" message file under dir and builds a
// Localizer for lang. dir defaults to "translations/" when empty.
func New(lang, dir string, log *slog.Logger) (*Translator, error) {
	if log == nil {
		log = slog.Default()
	}
	if lang == "" {
		lang = defaultLanguage
	}
	if dir == "" {
		dir = "translations/"
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	bundle.RegisterUnmarshalFunc("yml", yaml.Unmarshal)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("translation directory not found, using message IDs as fallback", "dir", dir)
		} else {
			return nil, fmt.Errorf("read translation dir %q: %w", dir, err)
		}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if _, err := bundle.LoadMessageFile(filepath.Join(dir, entry.Name())); err != nil {
			log.Warn("failed to load translation file", "file", entry.Name(), "error", err)
		}
	}

	return &Translator{
		bundle:    bundle,
		localizer: i18n.NewLocalizer(bundle, lang, defaultLanguage),
		log:       log,
	}, nil
}

// T localizes messageID with the given template data. On any failure
// (missing message, bad template) it logs at debug level and returns the
// message ID unchanged, so a translation gap never blocks a reply.
func (t *Translator) T(messageID string, data map[string]any) string {
	out, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		t.log.Debug("translation miss", "message_id", messageID, "error", err)
		return messageID
	}
	return out
}

// HelpKeywords are the literal strings (across languages) that short-circuit
// dispatch into the help flow.
func (t *Translator) HelpKeywords() []string {
	return []string{"help", t.T("keyword_help", nil)}
}
