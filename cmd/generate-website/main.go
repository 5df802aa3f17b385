// Command generate-website renders a static HTML command-reference page
// from a bot's config.ini (and, when present, its command_stats table) —
// the Go realization of the original bot's standalone website generator,
// kept deliberately thin since the page's visual design is the only part
// of it this spec names.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"meshbot/internal/config"
	"meshbot/internal/dispatch"
	"meshbot/internal/persistence"
	"meshbot/internal/plugins"
)

func main() {
	style := flag.String("style", "default", "visual theme for the generated page")
	listStyles := flag.Bool("list-styles", false, "list available themes and exit")
	sample := flag.Bool("sample", false, "render every theme plus an index.html picker")
	dbPath := flag.String("db", "", "path to the bot's SQLite database, for command popularity ordering (default: <config dir>/meshbot.db)")
	outDir := flag.String("out", "", "output directory (default: <config dir>/website)")
	flag.Parse()

	if *listStyles {
		printStyles()
		return
	}

	configPath := "config.ini"
	if args := flag.Args(); len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	configDir := filepath.Dir(configPath)
	if *outDir == "" {
		*outDir = filepath.Join(configDir, "website")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(configDir, "meshbot.db")
	}

	data := buildPageData(cfg, popularityRanking(*dbPath))

	if *sample {
		if err := writeSamples(*outDir, data); err != nil {
			fmt.Fprintf(os.Stderr, "generate samples: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample pages written to %s\n", *outDir)
		return
	}

	th, ok := themeByKey(*style)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown style %q; run with --list-styles\n", *style)
		os.Exit(1)
	}

	outPath := filepath.Join(*outDir, "index.html")
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", outPath, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := renderTo(f, th, data); err != nil {
		fmt.Fprintf(os.Stderr, "render website: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, cat := range data.Categories {
		total += len(cat.Commands)
	}
	fmt.Printf("website generated: %s (bot=%s, commands=%d, theme=%s)\n", outPath, data.BotName, total, th.name)
}

func printStyles() {
	fmt.Println("available themes:")
	for _, key := range themeOrder {
		t := themes[key]
		fmt.Printf("  %-12s %s — %s\n", t.key, t.name, t.description)
	}
}

func writeSamples(outDir string, data pageData) error {
	var links []string
	for _, key := range themeOrder {
		th := themes[key]
		path := filepath.Join(outDir, key+".html")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = renderTo(f, th, data)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("render %s: %w", key, err)
		}
		if closeErr != nil {
			return closeErr
		}
		links = append(links, fmt.Sprintf(`<li><a href="%s.html">%s</a> — %s</li>`, key, th.name, th.description))
	}

	indexPath := filepath.Join(outDir, "index.html")
	index := fmt.Sprintf("<!DOCTYPE html><html><head><meta charset=\"UTF-8\"><title>Theme samples</title></head>"+
		"<body><h1>%s — theme samples</h1><ul>%s</ul></body></html>", data.BotName, strings.Join(links, ""))
	return os.WriteFile(indexPath, []byte(index), 0o644)
}

// popularityRanking returns command names ordered by historical usage, or
// nil when the database is absent or empty — callers fall back to
// registration order, mirroring the original generator's default ordering
// when no command_stats rows exist yet.
func popularityRanking(dbPath string) []string {
	if _, err := os.Stat(dbPath); err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := persistence.Open(ctx, dbPath)
	if err != nil {
		return nil
	}
	defer db.Close()

	rows, err := persistence.NewStatsRepo(db).PopularCommands(ctx, time.Unix(0, 0), 1000)
	if err != nil {
		return nil
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.CommandName
	}
	return names
}

// categoryTitles maps a plugin's Category() to its display heading,
// falling back to a title-cased rendering of the category key itself.
var categoryTitles = map[string]string{
	"utility": "Utility Commands",
	"general": "General Commands",
}

func displayCategory(category string) string {
	if title, ok := categoryTitles[category]; ok {
		return title
	}
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func buildPageData(cfg config.AppConfig, popularity []string) pageData {
	registry := dispatch.NewRegistry(nil)
	registry.Register(plugins.NewPing())

	rank := make(map[string]int, len(popularity))
	for i, name := range popularity {
		rank[name] = i
	}

	byCategory := map[string][]commandView{}
	for _, cmd := range registry.All() {
		if cmd.RequiresAdminAccess() {
			continue
		}
		var aliases []string
		for _, kw := range cmd.Keywords() {
			if !strings.EqualFold(kw, cmd.Name()) {
				aliases = append(aliases, kw)
			}
		}
		view := commandView{
			Name:        cmd.Name(),
			Aliases:     aliases,
			Category:    cmd.Category(),
			Description: cmd.Description(),
			Usage:       cmd.Usage(),
			Examples:    cmd.Examples(),
			DMOnly:      cmd.RequiresDM(),
		}
		byCategory[cmd.Category()] = append(byCategory[cmd.Category()], view)
	}

	categoryKeys := make([]string, 0, len(byCategory))
	for key := range byCategory {
		categoryKeys = append(categoryKeys, key)
	}
	sort.Strings(categoryKeys)
	// basic/utility leads, matching the original generator's nav ordering.
	for i, key := range categoryKeys {
		if key == "utility" {
			categoryKeys = append(categoryKeys[:i], categoryKeys[i+1:]...)
			categoryKeys = append([]string{"utility"}, categoryKeys...)
			break
		}
	}

	categories := make([]categoryView, 0, len(categoryKeys))
	for _, key := range categoryKeys {
		cmds := byCategory[key]
		sort.SliceStable(cmds, func(i, j int) bool {
			ri, iok := rank[cmds[i].Name]
			rj, jok := rank[cmds[j].Name]
			switch {
			case iok && jok:
				return ri < rj
			case iok:
				return true
			case jok:
				return false
			default:
				return false
			}
		})
		categories = append(categories, categoryView{
			ID:       "commands-" + strings.ReplaceAll(key, "_", "-"),
			Title:    displayCategory(key),
			Commands: cmds,
		})
	}

	return pageData{
		Title:           websiteTitle(cfg),
		BotName:         botName(cfg),
		Introduction:    introduction(cfg),
		MonitorChannels: cfg.Channels.MonitorChannels,
		Categories:      categories,
		ChannelGroups:   channelGroups(cfg),
	}
}

func botName(cfg config.AppConfig) string {
	if cfg.Bot.Name != "" {
		return cfg.Bot.Name
	}
	return "MeshCore Bot"
}

func websiteTitle(cfg config.AppConfig) string {
	if cfg.Website.Title != "" {
		return cfg.Website.Title
	}
	return botName(cfg) + " - Command Reference"
}

func introduction(cfg config.AppConfig) string {
	if cfg.Website.IntroductionText != "" {
		return cfg.Website.IntroductionText
	}
	return fmt.Sprintf("Hi, I'm %s! I provide various commands to help you interact with the mesh network. Use the commands below to get started.", botName(cfg))
}

// channelGroups realizes [Channels_List]'s "category.#channel = description"
// dot-notation grouping (spec.md §6.1 Channels_List) into display groups,
// general channels (no dot prefix) first.
func channelGroups(cfg config.AppConfig) []channelCategoryView {
	if len(cfg.ChannelsList) == 0 {
		return nil
	}

	byCategory := map[string][]channelView{}
	for key, description := range cfg.ChannelsList {
		category := "general"
		name := key
		if idx := strings.Index(key, "."); idx >= 0 {
			category = key[:idx]
			name = key[idx+1:]
		}
		if !strings.HasPrefix(name, "#") {
			name = "#" + name
		}
		byCategory[category] = append(byCategory[category], channelView{Name: name, Description: description})
	}

	categories := make([]string, 0, len(byCategory))
	for key := range byCategory {
		if key != "general" {
			categories = append(categories, key)
		}
	}
	sort.Strings(categories)
	categories = append([]string{"general"}, categories...)

	groups := make([]channelCategoryView, 0, len(categories))
	for _, category := range categories {
		channels, ok := byCategory[category]
		if !ok {
			continue
		}
		sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
		title := "General Channels"
		if category != "general" {
			title = displayCategory(category)
		}
		groups = append(groups, channelCategoryView{
			ID:       "channels-" + strings.ReplaceAll(category, "_", "-"),
			Title:    title,
			Channels: channels,
		})
	}
	return groups
}
