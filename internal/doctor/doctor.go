// Package doctor checks a loaded slate configuration against the machine it
// runs on.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/auth"
	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/scripts"
	"github.com/mattjoyce/slate/internal/storage"
	"github.com/mattjoyce/slate/internal/tracker"
	"github.com/mattjoyce/slate/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", i.Category, i.Field, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Category, i.Message)
}

// Doctor validates configuration against discovered actions and
// applications.
type Doctor struct {
	cfg     *config.Config
	scripts []*scripts.Script
}

// New creates a Doctor. found are the script actions discovered under the
// configured actions_dir roots.
func New(cfg *config.Config, found []*scripts.Script) *Doctor {
	return &Doctor{cfg: cfg, scripts: found}
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateStatePath(r)
	d.validateActionDirs(r)
	d.validateTemplates(r)
	d.validateTracker(r)
	d.validateAPI(r)
	d.validateWebhooks(r)
	d.warnUnknownActionTimeouts(r)
	d.warnEmptyApplicationSpecs(r)
	d.warnEnvironment(r)

	r.Valid = len(r.Errors) == 0
	return r
}

// JSON renders the result for --json output.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateStatePath(r *Result) {
	dir := filepath.Dir(d.cfg.State.Path)
	if fs, err := storage.ProbeFilesystem(dir); err == nil && fs.Network {
		d.addError(r, "state", "state.path", fmt.Sprintf("%s is on a %s network share; the state database needs a local disk", dir, fs.Type))
		return
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		d.addWarning(r, "state", "state.path", fmt.Sprintf("directory %s does not exist yet and will be created", dir))
		return
	}
	if err != nil {
		d.addError(r, "state", "state.path", err.Error())
		return
	}
	if !info.IsDir() {
		d.addError(r, "state", "state.path", fmt.Sprintf("%s is not a directory", dir))
	}
}

func (d *Doctor) validateActionDirs(r *Result) {
	for i, dir := range d.cfg.ActionsDir {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			d.addError(r, "actions", fmt.Sprintf("actions_dir[%d]", i), fmt.Sprintf("%s is not a readable directory", dir))
		}
	}
}

func (d *Doctor) validateTemplates(r *Result) {
	w := d.cfg.Workfile
	if len(w.Extensions) == 0 {
		return
	}
	for _, family := range sortedKeys(w.Extensions) {
		ext := strings.TrimPrefix(w.Extensions[family], ".")
		path := filepath.Join(w.TemplatesDir, family+"."+ext)
		if _, err := os.Stat(path); err != nil {
			d.addError(r, "workfile", "workfile.extensions."+family,
				fmt.Sprintf("template %s is missing", path))
		}
	}
}

func (d *Doctor) validateTracker(r *Result) {
	if d.cfg.Tracker.Fixture == "" {
		d.addWarning(r, "tracker", "tracker.fixture", "no fixture configured; the tracker starts empty")
		return
	}
	if _, err := tracker.LoadFixture(d.cfg.Tracker.Fixture); err != nil {
		d.addError(r, "tracker", "tracker.fixture", err.Error())
	}
}

func (d *Doctor) validateAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured; every request will be rejected")
	}
	for i, tok := range d.cfg.API.Auth.Tokens {
		for j, scope := range tok.Scopes {
			if !auth.Known(scope) {
				d.addError(r, "api", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
					fmt.Sprintf("unknown scope %q", scope))
			}
		}
	}
}

func (d *Doctor) validateWebhooks(r *Result) {
	if len(d.cfg.Webhooks.Endpoints) == 0 {
		return
	}
	if _, err := webhook.FromConfig(d.cfg.Webhooks); err != nil {
		d.addError(r, "webhooks", "webhooks.endpoints", err.Error())
	}
	if d.cfg.API.Enabled && d.cfg.API.Listen == d.cfg.Webhooks.Listen {
		d.addError(r, "webhooks", "webhooks.listen", "webhooks and api cannot share a listen address")
	}
}

func (d *Doctor) warnUnknownActionTimeouts(r *Result) {
	known := make(map[string]bool, len(d.scripts))
	for _, s := range d.scripts {
		known[s.Identifier] = true
	}
	for _, id := range sortedKeys(d.cfg.Actions) {
		if !known[id] {
			d.addWarning(r, "actions", "actions."+id, "no script action with this identifier was discovered")
		}
	}
}

func (d *Doctor) warnEmptyApplicationSpecs(r *Result) {
	for i, spec := range d.cfg.Applications {
		store, err := appstore.Discover([]appstore.SearchSpec{spec})
		if err != nil {
			d.addError(r, "applications", fmt.Sprintf("applications[%d]", i), err.Error())
			continue
		}
		if len(store.Applications()) == 0 {
			d.addWarning(r, "applications", fmt.Sprintf("applications[%d]", i),
				fmt.Sprintf("%s matched no installed application", spec.Identifier))
		}
	}
}

func (d *Doctor) warnEnvironment(r *Result) {
	check := func(field, value string) {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			d.addWarning(r, "environment", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
	for _, name := range sortedKeys(d.cfg.Environment.Scalars) {
		check("environment.scalars."+name, d.cfg.Environment.Scalars[name])
	}
	for _, family := range sortedKeys(d.cfg.Environment.FamilyScalars) {
		vars := d.cfg.Environment.FamilyScalars[family]
		for _, name := range sortedKeys(vars) {
			check(fmt.Sprintf("environment.family_scalars.%s.%s", family, name), vars[name])
		}
	}
	for i, dir := range d.cfg.Environment.DynamicDirs {
		if _, err := os.Stat(dir); err != nil {
			d.addWarning(r, "environment", fmt.Sprintf("environment.dynamic_dirs[%d]", i),
				fmt.Sprintf("%s does not exist", dir))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
