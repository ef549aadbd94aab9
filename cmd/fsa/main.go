package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JesseWaas/fs-audit/internal/app"
	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/config"
	"github.com/JesseWaas/fs-audit/internal/fs"
	"github.com/JesseWaas/fs-audit/internal/hash"
	"github.com/JesseWaas/fs-audit/internal/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "capture", "diff").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "fsa",
	Short: "Filesystem audit tool",
	Long: `fsa captures snapshots of file metadata (and optionally content hashes),
stores them in archives, and compares two snapshots to report additions,
removals, and field-level changes.`,
	SilenceUsage: true,
}

// capture command
var captureCmd = &cobra.Command{
	Use:   "capture [PATH...]",
	Short: "Capture a snapshot of file metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		algorithm, _ := cmd.Flags().GetString("algorithm")
		ignore, _ := cmd.Flags().GetStringArray("ignore")
		ignoreFile, _ := cmd.Flags().GetString("ignore-file")
		save, _ := cmd.Flags().GetString("save")

		a, err := newApp(cmd.Context(), "capture")
		if err != nil {
			return err
		}
		defer a.Close()

		roots := args
		if len(roots) == 0 {
			roots = []string{"."}
		}

		if ignoreFile != "" {
			filePatterns, err := fs.ParseIgnoreFile(ignoreFile)
			if err != nil {
				return fmt.Errorf("reading ignore file: %w", err)
			}
			ignore = append(ignore, filePatterns...)
		}

		snap, err := a.Capture(cmd.Context(), app.CaptureRequest{
			Roots:     roots,
			Recursive: recursive,
			Algorithm: algorithm,
			Ignore:    ignore,
		})
		if err != nil {
			return err
		}

		if save != "" {
			if err := a.SaveSnapshot(cmd.Context(), save, snap); err != nil {
				return fmt.Errorf("saving archive: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Saved archive %s (%d records, %d skipped)\n",
				save, len(snap.Records), len(snap.Skips))
		}

		return renderSnapshot(cmd, snap)
	},
}

// diff command
var diffCmd = &cobra.Command{
	Use:   "diff ARCHIVE_A ARCHIVE_B",
	Short: "Compare two archived snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, _ := cmd.Flags().GetStringSlice("key")
		asJSON, _ := cmd.Flags().GetBool("json")
		showUnchanged, _ := cmd.Flags().GetBool("unchanged")

		a, err := newApp(cmd.Context(), "diff")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Diff(cmd.Context(), args[0], args[1], keys)
		if err != nil {
			return err
		}

		if asJSON || !app.StdoutIsTerminal() {
			return render.DiffJSON(os.Stdout, results)
		}
		return render.DiffTable(os.Stdout, results, showUnchanged)
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ARCHIVE",
	Short: "Display an archived snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "show")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.LoadSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderSnapshot(cmd, snap)
	},
}

// archives command
var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List stored archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "archives")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.ListArchives(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No archives stored.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

// algorithms command
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List supported hash algorithms",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range hash.Algorithms() {
			fmt.Println(name)
		}
	},
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

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:      %s\n", cfg.HostID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Algorithm:    %s\n", cfg.Capture.Algorithm)
		fmt.Printf("Archive Type: %s\n", cfg.Archive.Type)
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "keygen")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupEncryption(); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Archive key pair ready.")
		return nil
	},
}

// renderSnapshot writes snap to stdout (or a CSV file) according to the
// shared output flags.
func renderSnapshot(cmd *cobra.Command, snap *audit.Snapshot) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	csvPath, _ := cmd.Flags().GetString("csv")
	format, _ := cmd.Flags().GetString("string")

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("creating csv file: %w", err)
		}
		defer f.Close()
		return render.SnapshotCSV(f, snap)
	}
	if asJSON || !app.StdoutIsTerminal() {
		return render.SnapshotJSON(os.Stdout, snap)
	}
	if format == "" {
		format = render.DefaultFormat
	}
	return render.SnapshotTemplate(os.Stdout, snap, format)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output the full snapshot as JSON")
	cmd.Flags().String("csv", "", "Write records to a CSV file")
	cmd.Flags().StringP("string", "s", "", "Output template using {path} style keywords")
}

func init() {
	captureCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	captureCmd.Flags().StringP("algorithm", "a", "", "Content hash algorithm (\"none\" disables hashing)")
	captureCmd.Flags().StringArrayP("ignore", "i", nil, "Base-name glob pattern to exclude (repeatable)")
	captureCmd.Flags().String("ignore-file", "", "File with one ignore pattern per line")
	captureCmd.Flags().String("save", "", "Store the snapshot as a named archive")
	addOutputFlags(captureCmd)

	diffCmd.Flags().StringSliceP("key", "k", []string{"hash", "size"}, "Comparison key (repeatable)")
	diffCmd.Flags().Bool("json", false, "Output diff results as JSON")
	diffCmd.Flags().Bool("unchanged", false, "Include unchanged paths in the table")

	addOutputFlags(showCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(algorithmsCmd)
	rootCmd.AddCommand(configCmd)
}
