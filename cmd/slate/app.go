package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/log"
)

func runAppList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	log.Setup("warn", cfg.Service.LogFormat)

	store, err := appstore.Discover(cfg.Applications)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
		return 1
	}
	apps := store.Applications()
	if *jsonOut {
		return printJSON(apps)
	}
	if len(apps) == 0 {
		fmt.Println("No applications found.")
		return 0
	}

	rows := make([][]string, 0, len(apps))
	for _, a := range apps {
		rows = append(rows, []string{a.Identifier, a.Label, a.Version, a.Variant, a.Path})
	}
	fmt.Println(renderTable([]string{"IDENTIFIER", "LABEL", "VERSION", "VARIANT", "PATH"}, rows, nil))
	return 0
}
