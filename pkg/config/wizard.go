package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// RunInitWizard walks the user through first-time setup and returns the
// resulting config. The caller decides whether to save it.
func RunInitWizard() (Config, error) {
	cfg := DefaultConfig()

	sourceType := cfg.Source.Type
	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Telemetry source").
				Description("Where should the graph pull data from?").
				Options(
					huh.NewOption("Auto-discover (freshest file under the data dir)", "auto"),
					huh.NewOption("Synthetic generator (demo mode)", "synthetic"),
					huh.NewOption("JSON snapshot file", "file"),
					huh.NewOption("HTTP endpoint", "http"),
					huh.NewOption("SQLite database", "sqlite"),
				).
				Value(&sourceType),
		),
	)
	if err := form.Run(); err != nil {
		return cfg, fmt.Errorf("source selection: %w", err)
	}
	cfg.Source.Type = sourceType

	switch sourceType {
	case "file", "sqlite":
		form = newForm(huh.NewGroup(
			huh.NewInput().
				Title("Path").
				Description("Path to the telemetry " + sourceType + " file").
				Validate(required("path")).
				Value(&cfg.Source.Path),
		))
	case "http":
		form = newForm(huh.NewGroup(
			huh.NewInput().
				Title("URL").
				Description("Endpoint returning a telemetry snapshot as JSON").
				Validate(required("url")).
				Value(&cfg.Source.URL),
		))
	case "auto":
		form = newForm(huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("Directory scanned for .db/.sqlite/.json sources (empty for ./telemetry)").
				Value(&cfg.Source.DataDir),
		))
	case "synthetic":
		population := strconv.Itoa(cfg.Source.Population)
		form = newForm(huh.NewGroup(
			huh.NewInput().
				Title("Population").
				Description("Target node count for the generator").
				Validate(positiveInt).
				Value(&population),
		))
		if err := form.Run(); err != nil {
			return cfg, fmt.Errorf("synthetic options: %w", err)
		}
		cfg.Source.Population, _ = strconv.Atoi(population)
		return cfg, cfg.Validate()
	}
	if err := form.Run(); err != nil {
		return cfg, fmt.Errorf("source options: %w", err)
	}

	return cfg, cfg.Validate()
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
