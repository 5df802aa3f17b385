// Command validate-config loads an INI configuration file and reports
// whether it passes the bot's validation rules, without starting the bot.
package main

import (
	"flag"
	"fmt"
	"os"

	"meshbot/internal/config"
)

func main() {
	path := flag.String("config", "config.ini", "path to the INI configuration file to validate")
	flag.Parse()

	issues, err := config.ValidateFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}
	for _, issue := range issues {
		fmt.Fprintln(os.Stderr, issue.String())
	}
	if config.HasErrors(issues) {
		os.Exit(1)
	}

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("config OK")
}
