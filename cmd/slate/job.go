package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/storage"
	"github.com/mattjoyce/slate/internal/tui"
)

// openJobStore opens the state database named by the config at configPath.
func openJobStore(ctx context.Context, configPath string) (*jobs.Store, func(), error) {
	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return jobs.NewStore(db), func() { _ = db.Close() }, nil
}

func runJobList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	status := fs.String("status", "", "Only show jobs with this status")
	limit := fs.Int("limit", 20, "Maximum number of jobs")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	filter := jobs.ListFilter{Status: jobs.Status(*status), Limit: *limit}
	if filter.Status != "" && !filter.Status.Valid() {
		fmt.Fprintf(os.Stderr, "Unknown status %q (queued, running, done, failed)\n", *status)
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openJobStore(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	list, err := store.List(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No jobs.")
		return 0
	}

	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.ID,
			string(j.Status),
			j.Description,
			j.User,
			humanize.Time(j.CreatedAt),
			formatDuration(j.Duration()),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "STATUS", "DESCRIPTION", "USER", "CREATED", "DURATION"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
	return 0
}

func runJobPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	olderThan := fs.Duration("older-than", 0, "Remove jobs that finished before now minus this duration")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *olderThan <= 0 {
		fmt.Fprintln(os.Stderr, "--older-than must be a positive duration")
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openJobStore(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	cutoff := time.Now().Add(-*olderThan)
	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %s job(s) finished before %s.\n", humanize.Comma(n), cutoff.Format(time.RFC3339))
	return 0
}

func runJobShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")

	flagArgs, positional := splitFlagsAndPositionals(args, map[string]bool{"config": true})
	if err := fs.Parse(flagArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: slate job show <id> [--json]")
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openJobStore(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	j, err := store.Get(ctx, positional[0])
	if errors.Is(err, jobs.ErrJobNotFound) {
		fmt.Fprintf(os.Stderr, "Job %s not found\n", positional[0])
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(j)
	}

	fmt.Printf("Job:         %s\n", j.ID)
	fmt.Printf("Description: %s\n", j.Description)
	if j.User != "" {
		fmt.Printf("User:        %s\n", j.User)
	}
	fmt.Printf("Status:      %s\n", j.Status)
	fmt.Printf("Created:     %s (%s)\n", j.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(j.CreatedAt))
	if j.StartedAt != nil {
		fmt.Printf("Started:     %s\n", j.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if j.FinishedAt != nil {
		fmt.Printf("Finished:    %s (took %s)\n", j.FinishedAt.Format("2006-01-02 15:04:05"), formatDuration(j.Duration()))
	}
	if j.Error != nil {
		fmt.Printf("Error:       %s\n", *j.Error)
	}
	if len(j.Attachments) > 0 {
		rows := make([][]string, 0, len(j.Attachments))
		for _, a := range j.Attachments {
			rows = append(rows, []string{a.Name, a.Path, humanize.Time(a.CreatedAt)})
		}
		fmt.Println(renderTable([]string{"ATTACHMENT", "PATH", "ADDED"}, rows, nil))
	}
	return 0
}

func runJobWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8080", "slate API URL")
	token := fs.String("token", os.Getenv("SLATE_API_TOKEN"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: API token required. Use --token or SLATE_API_TOKEN env var.")
		return 1
	}
	if !isTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr, "Error: job watch needs an interactive terminal. Use 'slate job list' instead.")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	m := tui.NewMonitor(ctx, &tui.Client{BaseURL: *apiURL, Token: *token})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

