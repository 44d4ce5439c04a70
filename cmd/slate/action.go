package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
)

// selectionFlag collects repeated --select TYPE:ID flags.
type selectionFlag []protocol.SelectionReference

func (s *selectionFlag) String() string {
	parts := make([]string, 0, len(*s))
	for _, ref := range *s {
		parts = append(parts, ref.EntityType+":"+ref.EntityID)
	}
	return strings.Join(parts, ",")
}

func (s *selectionFlag) Set(v string) error {
	entityType, id, ok := strings.Cut(v, ":")
	if !ok || entityType == "" || id == "" {
		return fmt.Errorf("selection %q must be TYPE:ID", v)
	}
	*s = append(*s, protocol.SelectionReference{EntityType: entityType, EntityID: id})
	return nil
}

// valuesFlag collects repeated --value NAME=VALUE flags.
type valuesFlag map[string]any

func (v valuesFlag) String() string {
	return fmt.Sprint(map[string]any(v))
}

func (v valuesFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("value %q must be NAME=VALUE", s)
	}
	v[name] = value
	return nil
}

type actionFlags struct {
	configPath string
	user       string
	jsonOut    bool
	selection  selectionFlag
}

func (a *actionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&a.configPath, "config", "", "Path to configuration file or directory")
	fs.StringVar(&a.user, "user", os.Getenv("USER"), "User raising the event")
	fs.BoolVar(&a.jsonOut, "json", false, "Output replies as JSON")
	fs.Var(&a.selection, "select", "Selected entity as TYPE:ID (repeatable)")
}

func runActionDiscover(args []string) int {
	var af actionFlags
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	af.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(af.selection) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: slate action discover --select TYPE:ID [--select ...]")
		return 1
	}

	replies, code := publishOnce(af.configPath, nil, protocol.Event{
		Topic:  protocol.TopicDiscover,
		Source: protocol.Source{User: af.user},
		Data:   protocol.EventData{Selection: af.selection},
	})
	if code != 0 {
		return code
	}

	items := make([]protocol.Item, 0)
	for _, r := range replies {
		items = append(items, r.Items...)
	}
	if af.jsonOut {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("No actions apply to this selection.")
		return 0
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ActionIdentifier, it.ApplicationIdentifier, it.Label, it.Variant, it.Description})
	}
	fmt.Println(renderTable([]string{"ACTION", "APPLICATION", "LABEL", "VARIANT", "DESCRIPTION"}, rows, nil))
	return 0
}

func runActionLaunch(args []string) int {
	var af actionFlags
	values := valuesFlag{}
	fs := flag.NewFlagSet("launch", flag.ContinueOnError)
	af.register(fs)
	appID := fs.String("app", "", "Application identifier for application launches")
	fs.Var(values, "value", "Form value as NAME=VALUE (repeatable)")

	flagArgs, positional := splitFlagsAndPositionals(args, map[string]bool{
		"config": true, "user": true, "select": true, "app": true, "value": true,
	})
	if err := fs.Parse(flagArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: slate action launch <identifier> --select TYPE:ID [--value NAME=VALUE ...]")
		return 1
	}

	data := protocol.EventData{
		ActionIdentifier:      positional[0],
		ApplicationIdentifier: *appID,
		Selection:             af.selection,
	}
	if len(values) > 0 {
		data.Values = values
	}

	// Session tracking needs a long-lived process; one-shot launches
	// detach instead.
	replies, code := publishOnce(af.configPath, func(cfg *config.Config) {
		cfg.Jobs.TrackSessions = false
	}, protocol.Event{
		Topic:  protocol.TopicLaunch,
		Source: protocol.Source{User: af.user},
		Data:   data,
	})
	if code != 0 {
		return code
	}
	if af.jsonOut {
		return printJSON(replies)
	}
	return printLaunchReplies(replies)
}

// publishOnce builds a runtime, publishes ev on its bus and tears it down.
func publishOnce(configPath string, adjust func(*config.Config), ev protocol.Event) ([]protocol.Reply, int) {
	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return nil, 1
	}
	if adjust != nil {
		adjust(cfg)
	}
	log.Setup("warn", cfg.Service.LogFormat)

	ctx := context.Background()
	rt, err := newRuntime(ctx, cfg, log.WithComponent("main"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		return nil, 1
	}
	defer rt.Close(ctx)

	replies, err := rt.bus.Publish(ctx, ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Action failed: %v\n", err)
		return nil, 1
	}
	return replies, 0
}

func printLaunchReplies(replies []protocol.Reply) int {
	if len(replies) == 0 {
		fmt.Fprintln(os.Stderr, "No action handled the launch (check the identifier and selection).")
		return 1
	}
	code := 0
	for _, r := range replies {
		if r.IsResult() {
			status := "OK"
			if !r.Succeeded() {
				status = "FAILED"
				code = 1
			}
			fmt.Printf("%s: %s\n", status, r.Message)
			continue
		}
		if len(r.Items) == 0 {
			continue
		}
		fmt.Println("The action needs input; pass these fields back with --value NAME=VALUE:")
		rows := make([][]string, 0, len(r.Items))
		for _, it := range r.Items {
			rows = append(rows, []string{it.Name, it.Type, it.Label, formatValue(it.Value), formatOptions(it.Data)})
		}
		fmt.Println(renderTable([]string{"NAME", "TYPE", "LABEL", "DEFAULT", "OPTIONS"}, rows, nil))
	}
	return code
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func formatOptions(opts []protocol.Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, fmt.Sprintf("%v (%s)", o.Value, o.Label))
	}
	return strings.Join(parts, ", ")
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

// splitFlagsAndPositionals lets positionals appear before flags. takesValue
// names the flags that consume the following argument.
func splitFlagsAndPositionals(args []string, takesValue map[string]bool) ([]string, []string) {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if takesValue[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positional
}
