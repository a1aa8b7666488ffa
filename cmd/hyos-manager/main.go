package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/EditMySave/HyOS-sub001/internal/aggregator"
	"github.com/EditMySave/HyOS-sub001/internal/config"
	"github.com/EditMySave/HyOS-sub001/internal/gameapi"
	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
	"github.com/EditMySave/HyOS-sub001/internal/jar"
	"github.com/EditMySave/HyOS-sub001/internal/mods"
	"github.com/EditMySave/HyOS-sub001/internal/provider"
	_ "github.com/EditMySave/HyOS-sub001/internal/provider/providers/curseforge" // register CurseForge adapter
	_ "github.com/EditMySave/HyOS-sub001/internal/provider/providers/modtale"    // register Modtale adapter
	_ "github.com/EditMySave/HyOS-sub001/internal/provider/providers/nexusmods"  // register NexusMods adapter
	"github.com/EditMySave/HyOS-sub001/internal/registry"
	"github.com/EditMySave/HyOS-sub001/internal/server"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
	"github.com/EditMySave/HyOS-sub001/internal/validate"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hyos-manager",
		Short: "Game server mod manager",
		Long:  "Manages installed mods, searches mod providers and patches content-only archives.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		searchCmd(),
		inspectCmd(),
		patchCmd(),
		registryCmd(),
		providersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired dependency graph shared by the commands.
type app struct {
	cfg      *config.Config
	settings *settings.Store
	mods     *mods.Manager
	search   *aggregator.Aggregator
	gameAPI  *gameapi.Client
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// One client per provider: each gets its own rate limit, and a slow
	// provider cannot starve the others' search branches.
	clients := make(map[provider.ID]*httpclient.Client)
	for _, id := range provider.List() {
		clients[id] = httpclient.New(
			httpclient.WithRateLimit(cfg.Providers.RateLimit),
			httpclient.WithTimeout(cfg.Providers.Timeout+5*time.Second),
		)
	}
	resolver := &provider.Resolver{Clients: clients, BaseURLs: cfg.BaseURLs()}
	store := settings.NewStore(cfg.StateDir, cfg.EnvKeys())
	game := gameapi.New(gameapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ClientID:     cfg.Server.ClientID,
		ClientSecret: cfg.Server.ClientSecret,
	}, nil)

	return &app{
		cfg:      cfg,
		settings: store,
		mods:     mods.NewManager(cfg.ModsDir, resolver, store),
		search:   aggregator.New(resolver, cfg.Providers.Timeout),
		gameAPI:  game,
	}, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(a.mods, a.search, a.settings, a.gameAPI).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "addr", addr, "mods_dir", a.cfg.ModsDir, "state_dir", a.cfg.StateDir)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: from config)")

	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search every enabled provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var params provider.SearchParams
			if len(args) == 1 {
				params.Query = args[0]
			}
			sort, _ := cmd.Flags().GetString("sort")
			params.Sort = provider.SortOrder(sort)
			params.Page, _ = cmd.Flags().GetInt("page")
			params.PageSize, _ = cmd.Flags().GetInt("page-size")
			ids, _ := cmd.Flags().GetStringSlice("providers")
			for _, id := range ids {
				params.Providers = append(params.Providers, provider.ID(id))
			}

			if res := validate.SearchParams(params); res.HasErrors() {
				fmt.Print(validate.FormatResult(res))
				return fmt.Errorf("invalid search parameters")
			}

			result := a.search.Search(cmd.Context(), params, a.settings.Effective())
			for _, m := range result.Results {
				fmt.Printf("%-12s %-12s %-40s %10d\n", m.Provider, m.ID, m.Name, m.DownloadCount)
			}
			for _, e := range result.Errors {
				fmt.Printf("error: %s: %s\n", e.Provider, e.Error)
			}
			fmt.Printf("\nTotal: %d results (has more: %v)\n", result.TotalCount, result.HasMore)
			return nil
		},
	}

	cmd.Flags().String("sort", "", "relevance, downloads, updated or name")
	cmd.Flags().Int("page", 0, "page number, starting at 0")
	cmd.Flags().Int("page-size", 0, "results per provider (default 20)")
	cmd.Flags().StringSlice("providers", nil, "providers to query (default: all enabled)")

	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>...",
		Short: "Show entry point and patch state of archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				insp, err := jar.Inspect(path)
				if err != nil {
					slog.Error("inspect failed", "path", path, "error", err)
					failed = true
					continue
				}
				state := "ok"
				switch {
				case insp.IsPatched:
					state = "patched"
				case insp.NeedsPatch:
					state = "needs patch"
				}
				fmt.Printf("%-40s %-12s %s %s\n", path, state, insp.Manifest.Name, insp.Manifest.Version)
			}
			if failed {
				return fmt.Errorf("some archives could not be inspected")
			}
			return nil
		},
	}
}

func patchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patch <archive>",
		Short: "Inject the stub entry point into a content-only archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := jar.Patch(args[0]); err != nil {
				return err
			}
			slog.Info("archive patched", "path", args[0])
			return nil
		},
	}
}

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Show or edit the mod registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(registry.Load(a.cfg.ModsDir))
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "unregister <file>",
		Short: "Remove a registry entry without touching the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return registry.Unregister(a.cfg.ModsDir, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "updates",
		Short: "Check registered mods for newer provider files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			report := a.mods.CheckUpdates(cmd.Context())
			for _, u := range report.Updates {
				critical := ""
				if u.IsCritical {
					critical = " (major)"
				}
				fmt.Printf("%-40s %s -> %s%s\n", u.FileName, u.CurrentVersion, u.LatestVersion, critical)
			}
			fmt.Printf("\n%d updates available\n", len(report.Updates))
			return nil
		},
	})

	return cmd
}

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers and their settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			public := make(map[provider.ID]settings.PublicProvider)
			for _, p := range a.settings.Public() {
				public[p.ID] = p
			}
			for _, info := range provider.Describe() {
				p := public[info.ID]
				key := "no key"
				if p.HasAPIKey {
					key = p.KeyHint + " (" + p.KeySource + ")"
				}
				fmt.Printf("%-12s %-12s enabled=%-5v requires_key=%-5v %s\n", info.ID, info.Name, p.Enabled, info.RequiresKey, key)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable <provider>",
		Short: "Enable a provider",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable <provider>",
		Short: "Disable a provider",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset-key <provider>",
		Short: "Remove a provider's stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}
			_, err = a.settings.ResetKey(id)
			return err
		},
	})

	return cmd
}

func setEnabled(name string, enabled bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	id, err := provider.ParseID(name)
	if err != nil {
		return err
	}
	_, err = a.settings.Save(id, settings.Update{Enabled: &enabled})
	return err
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
