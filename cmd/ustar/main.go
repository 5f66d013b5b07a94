package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ustar-go/internal/app"
	"ustar-go/internal/config"
	"ustar-go/internal/database"
	"ustar-go/internal/ustar"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when none has
// been initialized.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadOrDefault(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp creates an App from cfg. The caller must defer app.Close().
func newApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "ustar",
	Short:        "Build UStar tar archives from directory trees",
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
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Output:      %s\n", describeOutput(cfg.Output))
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		catalog, err := database.DescribeCatalog(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}
		fmt.Printf("Catalog:     %s\n", catalog)
		fmt.Printf("Parallelism: %d\n", cfg.Filesystem.Parallelism)
		if len(cfg.Filesystem.Ignore) > 0 {
			fmt.Printf("Ignore:      %v\n", cfg.Filesystem.Ignore)
		}
		return nil
	},
}

func describeOutput(o config.OutputConfig) string {
	switch o.Type {
	case "s3":
		return fmt.Sprintf("s3://%s/%s", o.S3Bucket, o.S3Prefix)
	case "memory":
		return "memory"
	default:
		return o.Dir
	}
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <dir>",
	Short: "Archive a directory tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			cfg.Output = config.OutputConfig{Type: "filesystem", Dir: out}
		}
		name, _ := cmd.Flags().GetString("name")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.CreateArchive(cmd.Context(), args[0], name)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}

		fmt.Printf("Wrote %d entries (%d bytes) to %s\n", summary.Entries, summary.BytesWritten, summary.Location)
		fmt.Printf("Run: %s\n", summary.RunID)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "List the headers of an archive and verify their checksums",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		decrypt, _ := cmd.Flags().GetBool("decrypt")
		if !decrypt && a.IsEncryptedArchive(args[0]) {
			decrypt = true
		}
		var passphrase *string
		if decrypt {
			p, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			passphrase = &p
		}

		entries, err := a.InspectArchive(args[0], passphrase)
		for _, e := range entries {
			printEntry(e.Metadata, e.Offset)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%d entries, all checksums valid\n", len(entries))
		return nil
	},
}

func printEntry(m *ustar.Metadata, offset int64) {
	name := m.Path
	if m.LinkTarget != "" {
		name += " -> " + m.LinkTarget
	}
	mtime := time.Unix(m.ModTime, 0).UTC().Format("2006-01-02 15:04")
	fmt.Printf("%c %04o %d/%d %10d %s %8d  %s\n", byte(m.Type), m.Mode, m.UID, m.GID, m.Size, mtime, offset, name)
}

// runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show archive run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent archive runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := a.ListRuns(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No archive runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-7s  %6d  %s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.EntryCount, r.Destination)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archive run and its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		run, entries, err := a.GetRun(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run:         %s\n", run.ID)
		fmt.Printf("Source:      %s\n", run.SourceDir)
		fmt.Printf("Destination: %s\n", run.Destination)
		fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format(time.RFC3339))
		if !run.FinishedAt.IsZero() {
			fmt.Printf("Finished:    %s\n", run.FinishedAt.Local().Format(time.RFC3339))
		}
		fmt.Printf("Status:      %s\n", run.Status)
		if run.Error != "" {
			fmt.Printf("Error:       %s\n", run.Error)
		}
		fmt.Printf("Bytes:       %d\n\n", run.BytesWritten)

		for _, e := range entries {
			fmt.Printf("%c %04o %d/%d %10d %8d  %06o  %s\n",
				byte(e.Type), e.Mode, e.UID, e.GID, e.Size, e.Offset, e.Checksum, e.Path)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// runs subcommands
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")

	createCmd.Flags().StringP("output", "o", "", "Write the archive to this directory instead of the configured output")
	createCmd.Flags().String("name", "", "Archive name (default: <dir>.tar)")
	inspectCmd.Flags().Bool("decrypt", false, "Decrypt the archive with the configured key")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(inspectCmd)
}
