package main

import "html/template"

// theme is one named visual skin for the generated status page — the Go
// shape of the original bot's STYLES table, trimmed to the CSS custom
// properties that actually vary between themes plus a short free-form
// override block for the handful of themes with a distinct texture
// (terminal scanlines, neon glow, brutalist shadows).
//
// cssVars/cssOverride are template.CSS rather than string: these values
// are compiled-in constants, never user input, and html/template's CSS
// escaper would otherwise mangle legitimate gradients/rgba() values.
type theme struct {
	key         string
	name        string
	description string
	fontsURL    template.URL
	cssVars     template.CSS
	cssOverride template.CSS
}

var themeOrder = []string{
	"default", "minimalist", "terminal", "glass", "neon", "brutalist", "gradient", "pixel",
}

var themes = map[string]theme{
	"default": {
		key:         "default",
		name:        "Modern Dark",
		description: "Dark theme with gradients and modern cards",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Outfit:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: #0a0e14; --bg-card: #151c25; --bg-card-hover: #1a232e;
			--accent: #00d4ff; --accent-2: #00ffc8; --text-primary: #e8edf4;
			--text-secondary: #8892a4; --border: rgba(255,255,255,0.08);`,
	},
	"minimalist": {
		key:         "minimalist",
		name:        "Minimalist Clean",
		description: "Light theme with clean typography and whitespace",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: #ffffff; --bg-card: #ffffff; --bg-card-hover: #f8f9fa;
			--accent: #0052cc; --accent-2: #006699; --text-primary: #1a1a1a;
			--text-secondary: #4a4a4a; --border: rgba(0,0,0,0.15);`,
		cssOverride: `* { border-radius: 0 !important; box-shadow: none !important; transition: none !important; }`,
	},
	"terminal": {
		key:         "terminal",
		name:        "Terminal/Hacker",
		description: "Green on black, monospace, retro terminal aesthetic",
		fontsURL:    "https://fonts.googleapis.com/css2?family=JetBrains+Mono:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: #000000; --bg-card: #0f0f0f; --bg-card-hover: #1a1a1a;
			--accent: #00ff00; --accent-2: #ffb000; --text-primary: #00ff00;
			--text-secondary: #00aa00; --border: rgba(0,255,0,0.3);`,
		cssOverride: `body, h1, h2, h3, .command-name, .command-usage { font-family: 'JetBrains Mono', monospace !important; }
			.command-usage::before { content: '$ '; color: var(--accent-2); }`,
	},
	"glass": {
		key:         "glass",
		name:        "Glass/Glassmorphism",
		description: "Frosted glass cards with blur effects over a gradient backdrop",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Outfit:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: linear-gradient(135deg, #4c5fd7 0%, #764ba2 100%);
			--bg-card: rgba(255,255,255,0.1); --bg-card-hover: rgba(255,255,255,0.15);
			--accent: #a8daff; --accent-2: #a8fff4; --text-primary: #ffffff;
			--text-secondary: rgba(255,255,255,0.8); --border: rgba(255,255,255,0.2);`,
		cssOverride: `.command-card { backdrop-filter: blur(12px); }`,
	},
	"neon": {
		key:         "neon",
		name:        "Neon/Cyberpunk",
		description: "Bright neon colors on dark backgrounds, futuristic aesthetic",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Orbitron:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: #0a0014; --bg-card: #1a0033; --bg-card-hover: #25004d;
			--accent: #00f5ff; --accent-2: #ff1493; --text-primary: #ffffff;
			--text-secondary: #e9d5ff; --border: rgba(157,78,221,0.3);`,
		cssOverride: `h1, .command-name { font-family: 'Orbitron', sans-serif !important; text-shadow: 0 0 10px var(--accent); }
			.command-card { border: 2px solid var(--accent); }`,
	},
	"brutalist": {
		key:         "brutalist",
		name:        "Brutalist/Bold",
		description: "High contrast, bold typography, thick borders",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Space+Grotesk:wght@400;500;700;900&display=swap",
		cssVars: `--bg-primary: #ffffff; --bg-card: #ffffff; --bg-card-hover: #f5f5f5;
			--accent: #0000cc; --accent-2: #cc0000; --text-primary: #000000;
			--text-secondary: #1a1a1a; --border: rgba(0,0,0,1);`,
		cssOverride: `* { border-radius: 0 !important; transition: none !important; }
			.command-card { border: 4px solid #000000 !important; box-shadow: 8px 8px 0 #000000 !important; }`,
	},
	"gradient": {
		key:         "gradient",
		name:        "Gradient/Modern",
		description: "Colorful gradients and vibrant accent colors",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Outfit:wght@400;500;600;700&display=swap",
		cssVars: `--bg-primary: linear-gradient(135deg, #667eea 0%, #764ba2 50%, #f093fb 100%);
			--bg-card: rgba(255,255,255,0.95); --bg-card-hover: rgba(255,255,255,0.98);
			--accent: #4338ca; --accent-2: #ea580c; --text-primary: #1a1a1a;
			--text-secondary: #374151; --border: rgba(0,0,0,0.15);`,
		cssOverride: `h1 { background: linear-gradient(135deg, #667eea, #764ba2, #f093fb); -webkit-background-clip: text; -webkit-text-fill-color: transparent; }`,
	},
	"pixel": {
		key:         "pixel",
		name:        "Pixel/Retro",
		description: "Pixel art aesthetic, squared boxes, retro gaming colors",
		fontsURL:    "https://fonts.googleapis.com/css2?family=Press+Start+2P&display=swap",
		cssVars: `--bg-primary: #2b2d42; --bg-card: #4a4e69; --bg-card-hover: #5a5f7e;
			--accent: #00f5d4; --accent-2: #ff6b35; --text-primary: #ffffff;
			--text-secondary: #e0e0e0; --border: rgba(255,255,255,0.3);`,
		cssOverride: `* { border-radius: 0 !important; transition: none !important; }
			body { font-family: 'Press Start 2P', cursive !important; line-height: 1.8; }
			.command-card { box-shadow: 4px 4px 0 var(--border) !important; }`,
	},
}

func themeByKey(key string) (theme, bool) {
	t, ok := themes[key]
	return t, ok
}
