package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/vanderheijden86/lattice/pkg/config"
	"github.com/vanderheijden86/lattice/pkg/debug"
	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/telemetry"
	"github.com/vanderheijden86/lattice/pkg/ui"
	"github.com/vanderheijden86/lattice/pkg/version"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	initFlag := flag.Bool("init", false, "Run the interactive setup wizard and save the config")
	configPath := flag.String("config", "", "Config file (default: XDG config dir)")
	sourceType := flag.String("source", "", "Source type: auto, synthetic, file, http, sqlite")
	sourcePath := flag.String("path", "", "Path for file/sqlite sources")
	sourceURL := flag.String("url", "", "URL for http sources")
	dataDir := flag.String("data-dir", "", "Directory scanned when source=auto")
	category := flag.String("category", "", "Fetch only this category (quantum, agent, error, provenance, policy, hardware)")
	population := flag.Int("population", 0, "Synthetic generator target node count")
	seed := flag.Int64("seed", 0, "Synthetic generator seed (0 = time-based)")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: lg [options]")
		fmt.Println("\nA live terminal view of benchmark telemetry as a force-directed graph.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("lg %s\n", version.Version)
		os.Exit(0)
	}

	if *initFlag {
		cfg, err := config.RunInitWizard()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Setup cancelled: %v\n", err)
			os.Exit(1)
		}
		if err := config.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", config.ConfigPath())
		os.Exit(0)
	}

	var cfg config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *sourceType != "" {
		cfg.Source.Type = *sourceType
	}
	if *sourcePath != "" {
		cfg.Source.Path = *sourcePath
	}
	if *sourceURL != "" {
		cfg.Source.URL = *sourceURL
	}
	if *dataDir != "" {
		cfg.Source.DataDir = *dataDir
	}
	if *population > 0 {
		cfg.Source.Population = *population
	}
	if *seed != 0 {
		cfg.Source.Seed = *seed
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *category != "" {
		if _, ok := model.ParseCategory(*category); !ok {
			fmt.Fprintf(os.Stderr, "Unknown category %q (valid: %v)\n", *category, model.Categories)
			os.Exit(1)
		}
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "lg needs an interactive terminal")
		os.Exit(1)
	}

	provider, watchPath, cleanup, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening telemetry source: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	refresher, err := ui.NewRefresher(ui.RefresherConfig{
		Provider:        provider,
		Category:        *category,
		RefreshInterval: time.Duration(cfg.Refresh.IntervalMS) * time.Millisecond,
		JitterInterval:  time.Duration(cfg.Refresh.JitterMS) * time.Millisecond,
		FetchTimeout:    time.Duration(cfg.Refresh.FetchTimeoutMS) * time.Millisecond,
		WatchPath:       watchPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting refresher: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		ui.NewModel(refresher),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// buildProvider turns the source config into a telemetry provider. The
// returned watch path, when non-empty, points at a file whose rewrites
// should trigger an immediate refresh.
func buildProvider(cfg config.Config) (telemetry.Provider, string, func(), error) {
	switch cfg.Source.Type {
	case "synthetic":
		seed := cfg.Source.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return telemetry.NewSynthetic(seed, cfg.Source.Population), "", nil, nil

	case "file":
		return telemetry.NewFile(cfg.Source.Path), cfg.Source.Path, nil, nil

	case "http":
		return telemetry.NewHTTP(cfg.Source.URL, 0), "", nil, nil

	case "sqlite":
		p, err := telemetry.NewSQLite(cfg.Source.Path)
		if err != nil {
			return nil, "", nil, err
		}
		return p, "", func() { p.Close() }, nil

	case "", "auto":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sources, err := telemetry.DiscoverSources(ctx, telemetry.DiscoveryOptions{
			DataDir:  cfg.Source.DataDir,
			Validate: true,
			Logger:   func(msg string) { debug.Log("%s", msg) },
		})
		if err != nil {
			return nil, "", nil, err
		}
		best, err := telemetry.SelectBestSource(sources)
		if err != nil {
			return nil, "", nil, err
		}
		p, err := telemetry.OpenSource(best)
		if err != nil {
			return nil, "", nil, err
		}
		watch := ""
		if best.Type == telemetry.SourceTypeJSON {
			watch = best.Path
		}
		cleanup := func() {
			if c, ok := p.(interface{ Close() error }); ok {
				c.Close()
			}
		}
		return p, watch, cleanup, nil
	}
	return nil, "", nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
}
