package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sback-go/internal/app"
	"sback-go/internal/config"
	"sback-go/internal/engine"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Export", "Restore").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echo when stdin is a
// terminal, falling back to a plain line read otherwise.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// maybeUnlock prompts for the key passphrase and installs the decryption
// context when --unlock is set.
func maybeUnlock(cmd *cobra.Command, a *app.App) error {
	unlock, _ := cmd.Flags().GetBool("unlock")
	if !unlock {
		return nil
	}
	passphrase, err := readPassphrase("Key passphrase: ")
	if err != nil {
		return err
	}
	if err := a.Unlock(passphrase); err != nil {
		return fmt.Errorf("unlocking key: %w", err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "sback",
	Short: "Scoped database backup and restore tool",
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
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Printf("Backup Dir: %s\n", defaults["backup_dir"])
		fmt.Println("Edit the config to set the database DSN and storage providers.")
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
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Backup Dir: %s\n", cfg.BackupDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		for i, s := range cfg.Storage {
			active := ""
			if i == 0 {
				active = "  [active]"
			}
			fmt.Printf("Storage:    %s (%s)%s\n", s.Name, s.Type, active)
		}
		return nil
	},
}

// scopes command
var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List backup scopes and the tables they cover",
	Run: func(cmd *cobra.Command, args []string) {
		for _, scope := range engine.AllScopes() {
			def := engine.Definition(scope)
			fmt.Printf("%-10s %s\n", scope, strings.Join(def.TableNames(), ", "))
		}
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export SCOPE",
	Short: "Export a scope to an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		a, err := newApp(cmd, "Export")
		if err != nil {
			return err
		}
		defer a.Close()

		result, savedPath, err := a.Export(cmd.Context(), args[0], mode)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		switch result.Mode {
		case engine.ModeDirect:
			fmt.Printf("Exported %s (%d bytes)\n", result.FileName, result.SizeBytes)
			fmt.Printf("Checksum: %s\n", result.Checksum)
			fmt.Printf("Saved to: %s\n", savedPath)
		case engine.ModeOSS:
			fmt.Printf("Exported %s (%d bytes)\n", result.FileName, result.SizeBytes)
			fmt.Printf("Checksum: %s\n", result.Checksum)
			fmt.Printf("Uploaded to %s (%s)\n", result.URL, result.ProviderName)
		case engine.ModeOSSRequired:
			fmt.Printf("Archive too large for inline delivery: %s\n", result.Message)
		}
		return nil
	},
}

// dry-run command
var dryRunCmd = &cobra.Command{
	Use:   "dry-run SOURCE",
	Short: "Validate an archive and preview the restore plan",
	Long: `Validate an archive against the target database and print the
table-by-table restore plan without writing anything.

SOURCE is a local archive file or an http(s) URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		checksum, _ := cmd.Flags().GetString("checksum")

		a, err := newApp(cmd, "DryRun")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(cmd, a); err != nil {
			return err
		}

		result, err := a.DryRun(cmd.Context(), args[0], scope, checksum)
		if err != nil {
			return fmt.Errorf("dry run failed: %w", err)
		}

		printDryRun(result)
		return nil
	},
}

func printDryRun(result *engine.DryRunResult) {
	fmt.Printf("Scope:    %s\n", result.Scope)
	fmt.Printf("Checksum: %s\n", result.Checksum)
	fmt.Printf("Size:     %d bytes\n", result.SizeBytes)
	fmt.Println()

	fmt.Printf("%-22s %10s %10s\n", "TABLE", "CURRENT", "INCOMING")
	for _, p := range result.TablePlans {
		fmt.Printf("%-22s %10d %10d\n", p.Table, p.Current, p.Incoming)
	}
	fmt.Printf("%-22s %10d %10d\n", "total", result.Summary.RowsToDelete, result.Summary.RowsToInsert)

	if len(result.Issues) > 0 {
		fmt.Println()
		for _, issue := range result.Issues {
			fmt.Printf("%-7s %-18s %s\n", issue.Level, issue.Code, issue.Message)
		}
	}

	fmt.Println()
	if result.Ready {
		fmt.Printf("Ready to restore. Run sback restore with --checksum %s\n", result.Checksum)
	} else {
		fmt.Println("Archive is NOT importable; fix the errors above first.")
	}
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SOURCE",
	Short: "Replace a scope's data from an archive",
	Long: `Replace all data in a scope with the contents of an archive.

This is destructive: every row in the scope's tables is deleted and
replaced. The archive checksum from a prior dry run must be supplied
with --checksum, and the confirmation phrase must be typed exactly.

SOURCE is a local archive file or an http(s) URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		checksum, _ := cmd.Flags().GetString("checksum")
		confirm, _ := cmd.Flags().GetString("confirm")

		a, err := newApp(cmd, "Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := maybeUnlock(cmd, a); err != nil {
			return err
		}

		if confirm == "" {
			confirm, err = promptConfirm()
			if err != nil {
				return err
			}
		}

		result, err := a.Restore(cmd.Context(), args[0], scope, checksum, confirm)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored scope %s\n", result.Scope)
		fmt.Printf("Deleted %d row(s), inserted %d row(s)\n",
			result.Summary.DeletedRows, result.Summary.InsertedRows)
		return nil
	},
}

// promptConfirm asks the operator to type the confirmation phrase. A
// non-interactive session must pass --confirm instead.
func promptConfirm() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; pass --confirm %q", engine.ConfirmPhrase)
	}
	fmt.Printf("This will DELETE and replace all data in the scope.\nType %q to proceed: ", engine.ConfirmPhrase)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// upload-init command
var uploadInitCmd = &cobra.Command{
	Use:   "upload-init FILENAME SIZE",
	Short: "Prepare a client-side upload of a restore file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType, _ := cmd.Flags().GetString("content-type")

		size, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}

		a, err := newApp(cmd, "InitUpload")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.InitUpload(cmd.Context(), args[0], size, contentType)
		if err != nil {
			return fmt.Errorf("upload init failed: %w", err)
		}

		switch result.Strategy {
		case engine.UploadClientS3:
			fmt.Printf("Strategy: %s\n", result.Strategy)
			fmt.Printf("%s %s\n", result.UploadMethod, result.UploadURL)
			for k, v := range result.UploadHeaders {
				fmt.Printf("  %s: %s\n", k, v)
			}
			fmt.Printf("Source URL after upload: %s\n", result.SourceURL)
		case engine.UploadClientBlob:
			fmt.Printf("Strategy: %s\n", result.Strategy)
			fmt.Printf("Pathname: %s\n", result.BlobPathname)
			fmt.Printf("Token:    %s\n", result.BlobClientToken)
			fmt.Printf("Source URL after upload: %s\n", result.SourceURL)
		case engine.UploadUnsupported:
			fmt.Printf("Client uploads unsupported: %s\n", result.Message)
		}
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local backup archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.ListBackups()
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("No local backups.")
			return nil
		}

		for _, f := range files {
			fmt.Printf("%s  %10d  %s\n", f.Modified.Format("2006-01-02 15:04:05"), f.Size, f.Name)
		}
		return nil
	},
}

// keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the age key pair for archive encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.EncryptionConfigured() {
			return fmt.Errorf("encryption keys already exist; remove them first to regenerate")
		}

		passphrase, err := readPassphrase("New key passphrase: ")
		if err != nil {
			return err
		}
		repeat, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != repeat {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Key pair generated. OSS exports will now be encrypted.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	exportCmd.Flags().String("mode", "DIRECT", "Delivery mode: DIRECT or OSS")

	dryRunCmd.Flags().String("scope", "", "Expected backup scope")
	dryRunCmd.Flags().String("checksum", "", "Expected archive checksum")
	dryRunCmd.Flags().Bool("unlock", false, "Unlock the decryption key for encrypted archives")
	dryRunCmd.MarkFlagRequired("scope")

	restoreCmd.Flags().String("scope", "", "Expected backup scope")
	restoreCmd.Flags().String("checksum", "", "Archive checksum from a prior dry run")
	restoreCmd.Flags().String("confirm", "", "Confirmation phrase (prompted interactively when omitted)")
	restoreCmd.Flags().Bool("unlock", false, "Unlock the decryption key for encrypted archives")
	restoreCmd.MarkFlagRequired("scope")
	restoreCmd.MarkFlagRequired("checksum")

	uploadInitCmd.Flags().String("content-type", "application/json", "MIME type of the upload")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scopesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(uploadInitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(keygenCmd)
}
