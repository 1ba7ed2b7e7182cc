package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"babylog/internal/app"
	"babylog/internal/babylog"
	"babylog/internal/config"
	"babylog/internal/credential"
	"babylog/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a BabyLogApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "log pee", "feed stop").
func newApp(cmd *cobra.Command, operation string) (*app.BabyLogApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewBabyLogApp(cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	path := defaults["config_path"]
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, path, nil
}

// interruptContext is cancelled on Ctrl-C or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "babylog",
	Short:        "Log feedings, diapers, temperature and vitamins",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.Remote.BaseID, _ = cmd.Flags().GetString("base-id")
		if table, _ := cmd.Flags().GetString("table"); table != "" {
			cfg.Remote.Table = table
		}
		cfg.Display.Timezone, _ = cmd.Flags().GetString("timezone")

		storeType, _ := cmd.Flags().GetString("store")
		cfg.Store.Type = storeType
		if storeType == "sqlite" {
			cfg.Store.DataDir = filepath.Join(defaults["base_dir"], "data")
		}

		if _, err := cfg.Location(); err != nil {
			return err
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if storeType == "sqlite" {
			if err := migrateStore(cfg); err != nil {
				return err
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Store:    %s\n", storeType)
		if storeType == "remote" {
			fmt.Println("Run 'babylog config credentials' to enter your API token.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		tokenState := "not set"
		switch {
		case cfg.Remote.Token != "":
			tokenState = "inline"
		case credential.NewAgeTokenStore(cfg.Remote.TokenFile, cfg.Remote.IdentityPath).IsConfigured():
			tokenState = "encrypted at " + cfg.Remote.TokenFile
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Store:    %s\n", cfg.Store.Type)
		if cfg.Store.Type == "sqlite" {
			fmt.Printf("Data Dir: %s\n", cfg.Store.DataDir)
		}
		fmt.Printf("Base ID:  %s\n", cfg.Remote.BaseID)
		fmt.Printf("Table:    %s\n", cfg.Remote.Table)
		fmt.Printf("Token:    %s\n", tokenState)
		fmt.Printf("Session:  %s\n", cfg.Session.Type)
		fmt.Printf("Export:   %s\n", exportDestination(cfg.Export))
		if cfg.Display.Timezone != "" {
			fmt.Printf("Timezone: %s\n", cfg.Display.Timezone)
		}
		return nil
	},
}

func exportDestination(cfg config.ExportConfig) string {
	if cfg.Type == "s3" {
		return "s3://" + filepath.ToSlash(filepath.Join(cfg.S3Bucket, cfg.S3Prefix))
	}
	return cfg.Dir
}

var configCredentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Enter or clear the API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		if baseID, _ := cmd.Flags().GetString("base-id"); baseID != "" {
			cfg.Remote.BaseID = baseID
			cfg.Remote.Token = ""
			if err := config.WriteToFile(path, cfg); err != nil {
				return err
			}
		}

		tokens := credential.NewAgeTokenStore(cfg.Remote.TokenFile, cfg.Remote.IdentityPath)

		if clearToken, _ := cmd.Flags().GetBool("clear"); clearToken {
			if err := tokens.Clear(); err != nil {
				return err
			}
			fmt.Println("API token removed.")
			return nil
		}

		token, err := credential.PromptToken(os.Stdin, os.Stderr)
		if errors.Is(err, credential.ErrNoTerminal) {
			token, err = credential.ReadToken(os.Stdin)
		}
		if err != nil {
			return err
		}

		if err := tokens.Save(token); err != nil {
			return err
		}
		fmt.Printf("API token saved to %s\n", cfg.Remote.TokenFile)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Type != "sqlite" {
			return fmt.Errorf("store type %q has no database to migrate", cfg.Store.Type)
		}
		if err := migrateStore(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

func migrateStore(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Store.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewSQLiteStore(filepath.Join(cfg.Store.DataDir, store.DatabaseFile), nil, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log an event",
}

func newLogEventCmd(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   kind,
		Short: "Log a " + kind,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, "log "+kind)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.LogEvent(cmd.Context(), kind)
			if err != nil {
				return err
			}
			fmt.Printf("Logged %s at %s\n", kind, r.Timestamp.Format("15:04"))
			printCounts(a.Service().Summary())
			return nil
		},
	}
}

var logTempCmd = &cobra.Command{
	Use:   "temp CELSIUS",
	Short: "Log a temperature reading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "log temp")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.LogTemperature(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Logged %.1f °C at %s\n", r.Temperature, r.Timestamp.Format("15:04"))
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Run the feeding timer",
}

var feedStartCmd = &cobra.Command{
	Use:   "start SIDE",
	Short: "Start a feeding on SIDE (left or right)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed start")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.StartFeeding(args[0]); err != nil {
			return err
		}
		printFeeding(a)
		return nil
	},
}

var feedPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the feeding timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed pause")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PauseFeeding(); err != nil {
			return err
		}
		printFeeding(a)
		return nil
	},
}

var feedResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the feeding timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed resume")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResumeFeeding(); err != nil {
			return err
		}
		printFeeding(a)
		return nil
	},
}

var feedStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer, log the feeding and start the rest countdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed stop")
		if err != nil {
			return err
		}
		defer a.Close()

		r, rest, err := a.StopFeeding(cmd.Context())
		if r != nil {
			fmt.Printf("Logged %s feeding: %s\n", r.Side, babylog.FormatElapsed(time.Duration(r.DurationSeconds)*time.Second))
		}
		if rest == nil {
			return err
		}
		if noRest, _ := cmd.Flags().GetBool("no-rest"); noRest {
			rest.Skip()
			return err
		}

		ctx, stop := interruptContext()
		defer stop()
		waitRest(ctx, rest)
		return err
	},
}

var feedCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Discard the current feeding without logging it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed close")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CloseFeeding(); err != nil {
			return err
		}
		fmt.Println("Feeding discarded.")
		return nil
	},
}

var feedStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the feeding timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed status")
		if err != nil {
			return err
		}
		defer a.Close()

		printFeeding(a)
		return nil
	},
}

var feedWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the running timer until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "feed watch")
		if err != nil {
			return err
		}
		defer a.Close()

		session, elapsed := a.FeedingStatus()
		if session.State == babylog.TimerIdle {
			fmt.Println("No feeding in progress.")
			return nil
		}

		ctx, stop := interruptContext()
		defer stop()

		timer := a.Service().Timer()
		timer.OnRefresh(func(elapsed time.Duration) {
			fmt.Printf("\r%s  %s ", sideLabel(timer.Session().Side), babylog.FormatElapsed(elapsed))
		})
		fmt.Printf("%s  %s  %s ", sideLabel(session.Side), babylog.FormatElapsed(elapsed), session.State)

		<-ctx.Done()
		fmt.Println()
		return nil
	},
}

// vitamin command
var vitaminCmd = &cobra.Command{
	Use:       "vitamin {d|k} {on|off}",
	Short:     "Mark a vitamin as given or not given today",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"d", "k"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var given bool
		switch strings.ToLower(args[1]) {
		case "on", "yes", "given":
			given = true
		case "off", "no":
			given = false
		default:
			return fmt.Errorf("unknown state %q (want on or off)", args[1])
		}

		a, err := newApp(cmd, "vitamin")
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.SetVitamin(cmd.Context(), args[0], given)
		if err != nil {
			return err
		}
		fmt.Printf("Vitamin %s: %s\n", strings.ToUpper(args[0]), checkmark(state))
		return nil
	},
}

// today command
var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "today")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Today(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(snap.Summary, time.Now())

		if session, elapsed := a.FeedingStatus(); session.State != babylog.TimerIdle {
			fmt.Printf("\nFeeding in progress: %s %s (%s)\n", sideLabel(session.Side), babylog.FormatElapsed(elapsed), session.State)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show logged events grouped by day",
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, _ := cmd.Flags().GetInt("pages")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		groups, more, err := a.History(cmd.Context(), pages)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No events logged.")
			return nil
		}

		printHistory(groups)
		if more {
			fmt.Printf("\nMore events available: run with --pages %d\n", pages+1)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a logged event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			confirmed = confirm(fmt.Sprintf("Delete record %s?", args[0]))
		}

		a, err := newApp(cmd, "delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteRecord(cmd.Context(), args[0], confirmed); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full history to the configured destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		a, err := newApp(cmd, "export")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Export(cmd.Context(), format)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s record(s), %s, to %s\n",
			humanize.Comma(int64(result.Records)),
			humanize.Bytes(uint64(result.Bytes)),
			result.Location,
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo log lines to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("base-id", "", "Remote base ID")
	configInitCmd.Flags().String("table", "", "Remote table name (default Events)")
	configInitCmd.Flags().String("timezone", "", "IANA time zone for day boundaries (default local)")
	configInitCmd.Flags().String("store", "remote", "Record store: remote, sqlite or memory")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCredentialsCmd)
	configCredentialsCmd.Flags().String("base-id", "", "Also set the remote base ID")
	configCredentialsCmd.Flags().Bool("clear", false, "Remove the stored token")

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// log subcommands
	logCmd.AddCommand(newLogEventCmd("pee"))
	logCmd.AddCommand(newLogEventCmd("poop"))
	logCmd.AddCommand(logTempCmd)

	// feed subcommands
	feedCmd.AddCommand(feedStartCmd)
	feedCmd.AddCommand(feedPauseCmd)
	feedCmd.AddCommand(feedResumeCmd)
	feedCmd.AddCommand(feedStopCmd)
	feedStopCmd.Flags().Bool("no-rest", false, "Do not wait for the rest countdown")
	feedCmd.AddCommand(feedCloseCmd)
	feedCmd.AddCommand(feedStatusCmd)
	feedCmd.AddCommand(feedWatchCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(vitaminCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("pages", "p", 1, "Number of 100-record pages to load (0 for all)")
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "csv", "Export format: csv or json")
}
