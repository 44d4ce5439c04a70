package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "action":
		return runActionNoun(args)
	case "app":
		return runAppNoun(args)
	case "job":
		return runJobNoun(args)
	case "config":
		return runConfigNoun(args)

	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: slate version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("slate %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`slate - action and application launcher for production tracking

Usage:
  slate <noun> <action> [flags]

Nouns:
  system    Service lifecycle
  action    Discover and launch actions on a selection
  app       Installed applications
  job       Background job records
  config    Configuration integrity and validation

System Commands:
  system start          Run the action bus and HTTP API in the foreground

Action Commands:
  action discover       List actions available for a selection
  action launch <id>    Launch an action on a selection

App Commands:
  app list              Show discovered applications

Job Commands:
  job list              List recent jobs
  job show <id>         Show one job and its attachments
  job watch             Live job monitor (TUI, needs a running API)
  job prune             Delete finished jobs older than a cutoff

Config Commands:
  config check          Validate configuration and integrity
  config lock           Record config file hashes in .checksums

General:
  version               Show version information
  help                  Show this help message

Use 'slate <noun> help' for action-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// nounAction is one action of a noun: its runner and help text.
type nounAction struct {
	run  func([]string) int
	help string
}

// runNoun dispatches args[0] to the matching action of noun.
func runNoun(noun string, actions map[string]nounAction, order []string, args []string) int {
	usage := func(w *os.File) {
		fmt.Fprintf(w, "Usage: slate %s <action> [flags]\n", noun)
		fmt.Fprintf(w, "Actions: %s\n", strings.Join(order, ", "))
	}
	if len(args) < 1 {
		usage(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		usage(os.Stdout)
		return 0
	}

	a, ok := actions[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown %s action: %s\n", noun, args[0])
		return 1
	}
	if hasHelpFlag(args[1:]) {
		fmt.Print(a.help)
		return 0
	}
	return a.run(args[1:])
}

func runSystemNoun(args []string) int {
	return runNoun("system", map[string]nounAction{
		"start": {runStart, systemStartHelp},
	}, []string{"start"}, args)
}

func runActionNoun(args []string) int {
	return runNoun("action", map[string]nounAction{
		"discover": {runActionDiscover, actionDiscoverHelp},
		"launch":   {runActionLaunch, actionLaunchHelp},
	}, []string{"discover", "launch"}, args)
}

func runAppNoun(args []string) int {
	return runNoun("app", map[string]nounAction{
		"list": {runAppList, appListHelp},
	}, []string{"list"}, args)
}

func runJobNoun(args []string) int {
	return runNoun("job", map[string]nounAction{
		"list":  {runJobList, jobListHelp},
		"show":  {runJobShow, jobShowHelp},
		"watch": {runJobWatch, jobWatchHelp},
		"prune": {runJobPrune, jobPruneHelp},
	}, []string{"list", "show", "watch", "prune"}, args)
}

func runConfigNoun(args []string) int {
	return runNoun("config", map[string]nounAction{
		"check": {runConfigCheck, configCheckHelp},
		"lock":  {runConfigLock, configLockHelp},
	}, []string{"check", "lock"}, args)
}

const systemStartHelp = `Usage: slate system start [--config PATH]
Run the action bus, job workers and (when enabled) the HTTP API in the
foreground. Only one instance may run per state database.
`

const actionDiscoverHelp = `Usage: slate action discover --select TYPE:ID [--select ...] [--user NAME] [--config PATH] [--json]
List the actions that apply to a selection.
`

const actionLaunchHelp = `Usage: slate action launch <identifier> --select TYPE:ID [--app ID] [--value NAME=VALUE ...] [--user NAME] [--config PATH] [--json]
Launch an action. When the action answers with a form, its fields are
printed; pass them back with --value.
`

const appListHelp = `Usage: slate app list [--config PATH] [--json]
Show the applications found by the configured search specs.
`

const jobListHelp = `Usage: slate job list [--status queued|running|done|failed] [--limit N] [--config PATH] [--json]
List recent jobs, newest first.
`

const jobShowHelp = `Usage: slate job show <id> [--config PATH] [--json]
Show a job record and its attachments.
`

const jobPruneHelp = `Usage: slate job prune --older-than DURATION [--config PATH]
Delete done and failed jobs that finished more than DURATION ago
(for example 720h). Queued and running jobs are never removed.
`

const jobWatchHelp = `Usage: slate job watch [--api-url URL] [--token TOKEN]
Live job monitor. Follows the event stream of a running 'slate system start'.
The token needs the jobs:ro and events:ro scopes (or SLATE_API_TOKEN).

Keybindings:
  q, Ctrl+C        Quit
  PgUp/PgDn        Scroll the event log
`

const configCheckHelp = `Usage: slate config check [--config PATH] [--strict] [--json]
Validate configuration syntax, integrity and the machine it runs on.

Exit codes:
  0  Valid
  1  Errors found
  2  Warnings found with --strict
`

const configLockHelp = `Usage: slate config lock [--config PATH] [--dry-run] [-v]
Record BLAKE3 hashes of every config file in a .checksums file per directory.
`
