// Package config loads and validates the bot's INI configuration file.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// ConnectorType identifies which radio transport backend should be used.
type ConnectorType string

const (
	ConnectorSerial    ConnectorType = "serial"
	ConnectorBLE       ConnectorType = "ble"
	ConnectorTCP       ConnectorType = "tcp"
	DefaultSerialBaud                = 115200
	DefaultTCPPort                   = 5000
)

// ConnectionConfig holds the [Connection] section.
type ConnectionConfig struct {
	Connector  ConnectorType
	SerialPort string
	SerialBaud int
	BLEAddress string
	TCPHost    string
	TCPPort    int
}

// BotConfig holds the [Bot] section.
type BotConfig struct {
	Name                   string
	CommandPrefix          string
	RespondToDMs           bool
	AutoManageContacts     string // "device" | "bot" | "false"
	AdvertIntervalHours    float64
	RateLimitSeconds       float64
	BotTXRateLimitSeconds  float64
	PerUserRateLimitSeconds float64
	TXDelayMS              int
	ChannelRetryEnabled    bool
	ChannelRetryEchoWindow float64
	ChannelRetryMaxAttempts int
	MaxSendAttempts        int
	MaxFloodAttempts       int
	FloodAfterAttempts     int
	ServiceRestartBackoffSeconds float64
	RFDataTimeoutSeconds   float64
	MessageCorrelationTimeoutSeconds float64
}

// ChannelsConfig holds the [Channels] section.
type ChannelsConfig struct {
	MonitorChannels []string
	ChannelKeywords []string
}

// LocalizationConfig holds the [Localization] section.
type LocalizationConfig struct {
	Language        string
	TranslationPath string
}

// CompanionPurgeConfig holds the [Companion_Purge] section.
type CompanionPurgeConfig struct {
	Enabled     bool
	MaxContacts int
}

// WebsiteConfig holds the [Website] section, read only by
// cmd/generate-website — the bot itself never touches these keys.
type WebsiteConfig struct {
	Title            string
	IntroductionText string
}

// AppConfig is the root parsed configuration document.
type AppConfig struct {
	Connection     ConnectionConfig
	Bot            BotConfig
	Channels       ChannelsConfig
	Localization   LocalizationConfig
	Logging        LoggingConfig
	CompanionPurge CompanionPurgeConfig
	Website        WebsiteConfig

	AdminPubkeys []string
	BannedUsers  []string

	// ChannelsList maps a "[category.]#channel" key from [Channels_List]
	// to its human description, read only by cmd/generate-website.
	ChannelsList map[string]string

	// Keywords maps a plain-text trigger to its formatted response template (§4.4).
	Keywords map[string]string
	// CustomSyntax maps alternate trigger spellings to a canonical keyword.
	CustomSyntax map[string]string
	// ScheduledMessages maps "HHMM" to "channel:text" (§4.9).
	ScheduledMessages map[string]string
	// PluginOverrides maps a canonical plugin name to an alternative file/factory name (§4.10).
	PluginOverrides map[string]string

	// raw retains every section verbatim so plugin-owned sections
	// (Weather, Solar_Config, *_Command, ...) can be read by plugins
	// without the core needing to know their shape.
	raw *ini.File
}

// LoggingConfig holds the [Logging] section.
type LoggingConfig struct {
	Level     string
	LogToFile bool
	FilePath  string
}

func defaultConfig() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorTCP,
			SerialBaud: DefaultSerialBaud,
			TCPPort:    DefaultTCPPort,
		},
		Bot: BotConfig{
			CommandPrefix:           "",
			RespondToDMs:            true,
			AutoManageContacts:      "device",
			RateLimitSeconds:        2,
			BotTXRateLimitSeconds:   2,
			PerUserRateLimitSeconds: 5,
			TXDelayMS:               0,
			ChannelRetryEchoWindow:  10,
			ChannelRetryMaxAttempts: 1,
			MaxSendAttempts:         3,
			ServiceRestartBackoffSeconds: 300,
			RFDataTimeoutSeconds:    15,
			MessageCorrelationTimeoutSeconds: 10,
		},
		Localization: LocalizationConfig{
			Language:        "en",
			TranslationPath: "translations/",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		CompanionPurge: CompanionPurgeConfig{
			MaxContacts: 200,
		},
		Keywords:          map[string]string{},
		CustomSyntax:      map[string]string{},
		ScheduledMessages: map[string]string{},
		PluginOverrides:   map[string]string{},
		ChannelsList:      map[string]string{},
	}
}

// requiredSections must be present for the bot to start (spec.md §6.1).
var requiredSections = []string{"Connection", "Bot", "Channels"}

// Load parses the INI file at path and fills defaults for everything
// left unset. It does not validate [Connection] reachability; call
// Validate for that.
func Load(path string) (AppConfig, error) {
	cfg := defaultConfig()

	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: false}, path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("load config %q: %w", path, err)
	}
	cfg.raw = f

	for _, name := range requiredSections {
		if !f.HasSection(name) {
			return AppConfig{}, fmt.Errorf("missing required section [%s]", name)
		}
	}

	if err := cfg.fillConnection(f); err != nil {
		return AppConfig{}, err
	}
	cfg.fillBot(f)
	cfg.fillChannels(f)
	cfg.fillLocalization(f)
	cfg.fillLogging(f)
	cfg.fillCompanionPurge(f)
	cfg.fillWebsite(f)
	cfg.fillListSection(f, "Admin_ACL", &cfg.AdminPubkeys)
	cfg.fillListSection(f, "Banned_Users", &cfg.BannedUsers)
	cfg.fillMapSection(f, "Keywords", cfg.Keywords)
	cfg.fillMapSection(f, "Custom_Syntax", cfg.CustomSyntax)
	cfg.fillMapSection(f, "Scheduled_Messages", cfg.ScheduledMessages)
	cfg.fillMapSection(f, "Plugin_Overrides", cfg.PluginOverrides)
	cfg.fillMapSection(f, "Channels_List", cfg.ChannelsList)

	return cfg, nil
}

// Raw exposes the parsed INI document for plugin-owned sections.
func (c AppConfig) Raw() *ini.File {
	return c.raw
}

// unquote strips one layer of matched '"' or '\'' quoting (spec.md §6.1).
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func (c *AppConfig) fillConnection(f *ini.File) error {
	sec := f.Section("Connection")
	c.Connection.Connector = ConnectorType(strings.ToLower(unquote(sec.Key("connector").String())))
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorTCP
	}
	c.Connection.SerialPort = unquote(sec.Key("serial_port").String())
	if baud, err := sec.Key("serial_baud").Int(); err == nil && baud > 0 {
		c.Connection.SerialBaud = baud
	}
	c.Connection.BLEAddress = unquote(sec.Key("ble_address").String())
	c.Connection.TCPHost = unquote(sec.Key("tcp_host").String())
	if port, err := sec.Key("tcp_port").Int(); err == nil && port > 0 {
		c.Connection.TCPPort = port
	}

	switch c.Connection.Connector {
	case ConnectorSerial, ConnectorBLE, ConnectorTCP:
	default:
		return fmt.Errorf("[Connection] connector: unknown value %q", c.Connection.Connector)
	}

	return nil
}

func (c *AppConfig) fillBot(f *ini.File) {
	sec := f.Section("Bot")
	c.Bot.Name = unquote(sec.Key("name").String())
	c.Bot.CommandPrefix = unquote(sec.Key("command_prefix").String())
	c.Bot.RespondToDMs = sec.Key("respond_to_dms").MustBool(true)
	if v := unquote(sec.Key("auto_manage_contacts").String()); v != "" {
		c.Bot.AutoManageContacts = strings.ToLower(v)
	}
	c.Bot.AdvertIntervalHours = sec.Key("advert_interval_hours").MustFloat64(0)
	c.Bot.RateLimitSeconds = sec.Key("rate_limit_seconds").MustFloat64(c.Bot.RateLimitSeconds)
	c.Bot.BotTXRateLimitSeconds = sec.Key("bot_tx_rate_limit_seconds").MustFloat64(c.Bot.BotTXRateLimitSeconds)
	c.Bot.PerUserRateLimitSeconds = sec.Key("per_user_rate_limit_seconds").MustFloat64(c.Bot.PerUserRateLimitSeconds)
	c.Bot.TXDelayMS = sec.Key("tx_delay_ms").MustInt(c.Bot.TXDelayMS)
	c.Bot.ChannelRetryEnabled = sec.Key("channel_retry_enabled").MustBool(false)
	c.Bot.ChannelRetryEchoWindow = sec.Key("channel_retry_echo_window").MustFloat64(c.Bot.ChannelRetryEchoWindow)
	c.Bot.ChannelRetryMaxAttempts = sec.Key("channel_retry_max_attempts").MustInt(c.Bot.ChannelRetryMaxAttempts)
	c.Bot.MaxSendAttempts = sec.Key("max_attempts").MustInt(c.Bot.MaxSendAttempts)
	c.Bot.MaxFloodAttempts = sec.Key("max_flood_attempts").MustInt(c.Bot.MaxFloodAttempts)
	c.Bot.FloodAfterAttempts = sec.Key("flood_after").MustInt(c.Bot.FloodAfterAttempts)
	c.Bot.ServiceRestartBackoffSeconds = sec.Key("service_restart_backoff_seconds").MustFloat64(c.Bot.ServiceRestartBackoffSeconds)
	c.Bot.RFDataTimeoutSeconds = sec.Key("rf_data_timeout").MustFloat64(c.Bot.RFDataTimeoutSeconds)
	c.Bot.MessageCorrelationTimeoutSeconds = sec.Key("message_correlation_timeout").MustFloat64(c.Bot.MessageCorrelationTimeoutSeconds)
}

func (c *AppConfig) fillChannels(f *ini.File) {
	sec := f.Section("Channels")
	c.Channels.MonitorChannels = splitList(sec.Key("monitor_channels").String())
	c.Channels.ChannelKeywords = splitList(sec.Key("channel_keywords").String())
}

func (c *AppConfig) fillLocalization(f *ini.File) {
	if !f.HasSection("Localization") {
		return
	}
	sec := f.Section("Localization")
	if v := unquote(sec.Key("language").String()); v != "" {
		c.Localization.Language = v
	}
	if v := unquote(sec.Key("translation_path").String()); v != "" {
		c.Localization.TranslationPath = v
	}
}

func (c *AppConfig) fillLogging(f *ini.File) {
	if !f.HasSection("Logging") {
		return
	}
	sec := f.Section("Logging")
	if v := unquote(sec.Key("level").String()); v != "" {
		c.Logging.Level = v
	}
	c.Logging.LogToFile = sec.Key("log_to_file").MustBool(false)
	c.Logging.FilePath = unquote(sec.Key("file_path").String())
}

func (c *AppConfig) fillCompanionPurge(f *ini.File) {
	if !f.HasSection("Companion_Purge") {
		return
	}
	sec := f.Section("Companion_Purge")
	c.CompanionPurge.Enabled = sec.Key("enabled").MustBool(false)
	c.CompanionPurge.MaxContacts = sec.Key("max_contacts").MustInt(c.CompanionPurge.MaxContacts)
}

func (c *AppConfig) fillWebsite(f *ini.File) {
	if !f.HasSection("Website") {
		return
	}
	sec := f.Section("Website")
	c.Website.Title = unquote(sec.Key("website_title").String())
	c.Website.IntroductionText = unquote(sec.Key("introduction_text").String())
}

func (c *AppConfig) fillListSection(f *ini.File, name string, out *[]string) {
	if !f.HasSection(name) {
		return
	}
	sec := f.Section(name)
	var items []string
	for _, key := range sec.Keys() {
		v := unquote(key.Value())
		if v == "" {
			continue
		}
		items = append(items, v)
	}
	*out = items
}

func (c *AppConfig) fillMapSection(f *ini.File, name string, out map[string]string) {
	if !f.HasSection(name) {
		return
	}
	sec := f.Section(name)
	for _, key := range sec.Keys() {
		out[key.Name()] = unquote(key.Value())
	}
}

func splitList(raw string) []string {
	raw = unquote(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the parsed configuration is internally
// consistent enough to start the bot (reachability of the chosen
// connector's required fields).
func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return fmt.Errorf("serial_port is required for connector=serial")
		}
		if c.Connection.SerialBaud <= 0 {
			return fmt.Errorf("serial_baud must be positive")
		}
	case ConnectorBLE:
		if strings.TrimSpace(c.Connection.BLEAddress) == "" {
			return fmt.Errorf("ble_address is required for connector=ble")
		}
	case ConnectorTCP:
		if strings.TrimSpace(c.Connection.TCPHost) == "" {
			return fmt.Errorf("tcp_host is required for connector=tcp")
		}
		if c.Connection.TCPPort <= 0 {
			return fmt.Errorf("tcp_port must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	switch c.Bot.AutoManageContacts {
	case "device", "bot", "false":
	default:
		return fmt.Errorf("[Bot] auto_manage_contacts must be one of device/bot/false, got %q", c.Bot.AutoManageContacts)
	}

	return nil
}

// Reload re-parses path and returns the new config, refusing to apply
// it if [Connection] changed (spec.md §8 round-trip property). The
// caller should keep using the previous AppConfig on error.
func Reload(path string, previous AppConfig) (AppConfig, error) {
	next, err := Load(path)
	if err != nil {
		return AppConfig{}, err
	}
	if next.Connection != previous.Connection {
		return AppConfig{}, fmt.Errorf("reload rejected: [Connection] changed (restart required)")
	}

	return next, nil
}

