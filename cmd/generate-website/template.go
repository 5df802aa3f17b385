package main

import (
	"html/template"
	"io"
)

// commandView is one plugin flattened for display.
type commandView struct {
	Name        string
	Aliases     []string
	Category    string
	Description string
	Usage       string
	Examples    []string
	DMOnly      bool
}

// categoryView groups commandViews under a display heading.
type categoryView struct {
	ID       string
	Title    string
	Commands []commandView
}

// channelView is one entry under a [Channels_List] category.
type channelView struct {
	Name        string
	Description string
}

// channelCategoryView groups channelViews under a display heading.
type channelCategoryView struct {
	ID       string
	Title    string
	Channels []channelView
}

// pageData is everything the page template needs, independent of theme.
type pageData struct {
	Title           string
	BotName         string
	Introduction    string
	MonitorChannels []string
	Categories      []categoryView
	ChannelGroups   []channelCategoryView
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Data.Title}}</title>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link href="{{.Theme.fontsURL}}" rel="stylesheet">
<style>
:root { {{.Theme.cssVars}} }
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Outfit', sans-serif; background: var(--bg-primary); color: var(--text-primary); line-height: 1.6; }
.container { max-width: 1100px; margin: 0 auto; padding: 3rem 2rem; }
header { background: var(--bg-card); border: 1px solid var(--border); border-radius: 16px; padding: 2rem; margin-bottom: 3rem; }
h1 { font-size: 2.25rem; margin-bottom: 0.75rem; color: var(--accent); }
.intro { color: var(--text-secondary); }
.category-title { font-size: 1.4rem; margin: 2rem 0 1rem; border-bottom: 2px solid var(--border); padding-bottom: 0.5rem; }
.commands-grid, .channels-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(260px, 1fr)); gap: 1rem; }
.command-card, .channel-card { background: var(--bg-card); border: 1px solid var(--border); border-radius: 10px; padding: 1.25rem; }
.command-card:hover, .channel-card:hover { background: var(--bg-card-hover); }
.command-name, .channel-name { font-weight: 600; font-size: 1.1rem; }
.command-keyword { display: inline-block; font-size: 0.75rem; background: var(--bg-card-hover); border: 1px solid var(--border); border-radius: 6px; padding: 0.1rem 0.4rem; margin: 0.2rem 0.2rem 0 0; }
.command-usage { font-family: monospace; background: var(--bg-card-hover); border-left: 2px solid var(--accent); padding: 0.4rem 0.6rem; margin-top: 0.5rem; }
.command-channels { font-size: 0.8rem; color: var(--text-secondary); margin-top: 0.5rem; }
footer { margin-top: 3rem; color: var(--text-secondary); font-size: 0.85rem; }
{{.Theme.cssOverride}}
</style>
</head>
<body>
<div class="container">
<header>
<h1>{{.Data.BotName}}</h1>
<p class="intro">{{.Data.Introduction}}{{if .Data.MonitorChannels}} I'll answer in {{range $i, $ch := .Data.MonitorChannels}}{{if $i}}, {{end}}#{{$ch}}{{end}}.{{end}}</p>
</header>
{{range .Data.Categories}}
<section id="{{.ID}}">
<h2 class="category-title">{{.Title}}</h2>
<div class="commands-grid">
{{range .Commands}}
<div class="command-card">
<div class="command-name">{{.Name}}</div>
{{range .Aliases}}<span class="command-keyword">{{.}}</span>{{end}}
<p>{{.Description}}</p>
{{if .Usage}}<div class="command-usage">{{.Usage}}</div>{{end}}
{{range .Examples}}<div class="command-usage">{{.}}</div>{{end}}
{{if .DMOnly}}<div class="command-channels">DM only</div>{{end}}
</div>
{{end}}
</div>
</section>
{{end}}
{{if .Data.ChannelGroups}}
<section id="channels">
<h2 class="category-title">Available Channels</h2>
{{range .Data.ChannelGroups}}
<h3>{{.Title}}</h3>
<div class="channels-grid">
{{range .Channels}}
<div class="channel-card">
<div class="channel-name">{{.Name}}</div>
<p>{{.Description}}</p>
</div>
{{end}}
</div>
{{end}}
</section>
{{end}}
<footer>Generated by generate-website &mdash; theme: {{.Theme.name}}</footer>
</div>
</body>
</html>
`))

type pageContext struct {
	Theme theme
	Data  pageData
}

func renderTo(w io.Writer, th theme, data pageData) error {
	return pageTemplate.Execute(w, pageContext{Theme: th, Data: data})
}
