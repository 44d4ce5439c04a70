package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/doctor"
	"github.com/mattjoyce/slate/internal/scripts"
)

func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DiscoverConfigDir()
}

func runConfigCheck(args []string) int {
	var configPath string
	var strict, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target, err := resolveConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	files, err := config.DiscoverAllConfigFiles(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}
	mismatches, err := config.Check(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Integrity check error: %v\n", err)
		return 1
	}
	if len(mismatches) > 0 {
		result := &doctor.Result{}
		for _, m := range mismatches {
			result.Errors = append(result.Errors, doctor.Issue{Category: "integrity", Message: m.String()})
		}
		return reportValidation(result, jsonOut, strict)
	}

	cfg, err := config.Load(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	// Missing roots are reported by the doctor itself.
	found, _ := scripts.Discover(cfg.ActionsDir, nil)
	return reportValidation(doctor.New(cfg, found).Validate(), jsonOut, strict)
}

func reportValidation(result *doctor.Result, jsonOut, strict bool) int {
	if jsonOut {
		data, err := result.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printValidationSummary(result)
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func printValidationSummary(result *doctor.Result) {
	if result == nil {
		return
	}
	if !result.Valid {
		fmt.Printf("Validation: failed (%d error(s), %d warning(s))\n", len(result.Errors), len(result.Warnings))
		for _, issue := range result.Errors {
			fmt.Printf("  ERROR %s\n", issue)
		}
	} else if len(result.Warnings) == 0 {
		fmt.Println("Validation: ✓ All checks passed")
		return
	} else {
		fmt.Printf("Validation: ✓ passed with %d warning(s)\n", len(result.Warnings))
	}
	for _, issue := range result.Warnings {
		fmt.Printf("  WARN  %s\n", issue)
	}
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Show what would be written")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	isVerbose := verbose || verboseShort

	target, err := resolveConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}
	files, err := config.DiscoverAllConfigFiles(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config files: %v\n", err)
		return 1
	}

	reports, err := config.Lock(files, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	if isVerbose {
		for _, report := range reports {
			fmt.Printf("Processing directory: %s\n", report.ConfigDir)
			for _, f := range report.Files {
				fmt.Printf("  HASH %s: %s\n", f.Path, f.Hash)
			}
			if report.Written {
				fmt.Printf("  WROTE %s\n", report.ChecksumPath)
			} else {
				fmt.Printf("  DRY-RUN %s (not written)\n", report.ChecksumPath)
			}
		}
	}

	if dryRun {
		fmt.Printf("Dry run completed for %d directory/ies (no files written):\n", len(reports))
	} else {
		fmt.Printf("Successfully locked configuration in %d directory/ies:\n", len(reports))
	}
	for _, report := range reports {
		fmt.Printf("  - %s\n", report.ConfigDir)
	}
	return 0
}
