package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pantry-go/internal/app"
	"pantry-go/internal/config"
	"pantry-go/internal/pantry"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if kind := pantry.KindOf(err); kind != pantry.KindInternal {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// readConfig reads the config file from the default location.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a PantryApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Scan", "Undo").
func newApp(ctx context.Context, operation string) (*app.PantryApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewPantryApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp closes a and reports a close failure unless the command already failed.
func closeApp(a *app.PantryApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

var rootCmd = &cobra.Command{
	Use:           "pantry",
	Short:         "Household food inventory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		ownerID, _ := cmd.Flags().GetString("owner")
		if ownerID == "" {
			ownerID = uuid.New().String()
		}

		cfg := config.NewConfig(ownerID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.InitDatabase(cfg); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Owner ID: %s\n", ownerID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Run 'pantry config keygen' to enable encrypted snapshots.")
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
		fmt.Printf("Owner ID:   %s\n", cfg.OwnerID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Archive:    %s\n", cfg.Archive.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nProblems:\n%v\n", err)
		}
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ", true)
		if err != nil {
			return err
		}

		if err := app.GenerateKeys(cmd.Context(), cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan FILE",
	Short: "Reconcile a scan of one location (FILE may be - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		location, _ := cmd.Flags().GetString("location")
		commit, _ := cmd.Flags().GetBool("commit")
		importID, _ := cmd.Flags().GetString("import-id")

		in, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		operation := "Reconcile"
		if commit {
			operation = "Scan"
		}
		a, err := newApp(cmd.Context(), operation)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if !commit {
			list, err := a.Reconcile(cmd.Context(), in, pantry.Location(location))
			if err != nil {
				return err
			}
			return printReview(list)
		}

		list, result, err := a.Scan(cmd.Context(), in, pantry.Location(location), importID)
		if list != nil {
			if perr := printReview(list); perr != nil {
				return perr
			}
		}
		if result != nil {
			if perr := printCommit(result); perr != nil {
				return perr
			}
		}
		return err
	},
}

func printReview(list *pantry.ReviewList) error {
	return emit(list, func(w io.Writer) {
		fmt.Fprintf(w, "Review for %s (%d of %d selected)\n", list.Location, list.SelectedCount(), len(list.Items))
		fmt.Fprintln(w, "SEL\tNAME\tQTY\tWAS\tUNIT\tCONF\tNOTE")
		for _, row := range list.Items {
			sel := "[ ]"
			if row.Selected {
				sel = "[x]"
			}
			was, note := "", "new"
			if row.ID != "" {
				was, note = row.PreviousQuantity.String(), "update"
			}
			if row.NotDetected {
				note = "not detected"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n", sel, row.Name, row.Quantity, was, row.Unit, row.Confidence, note)
		}
	})
}

func printCommit(result *pantry.CommitResult) error {
	return emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Inserted %d, updated %d, deleted %d, skipped %d\n",
			result.Inserted, result.Updated, result.Deleted, result.Skipped)
		for _, f := range result.Failures {
			fmt.Fprintf(w, "  failed %s\n", f)
		}
		if result.UndoEntry != nil {
			fmt.Fprintf(w, "Undo with: pantry undo %s\n", result.UndoEntry.ImportID)
		}
	})
}

// receipt command
var receiptCmd = &cobra.Command{
	Use:   "receipt FILE",
	Short: "Add a receipt to inventory and purchase history (FILE may be - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		location, _ := cmd.Flags().GetString("location")

		in, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		a, err := newApp(cmd.Context(), "Receipt")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		result, err := a.Receipt(cmd.Context(), in, pantry.Location(location))
		if result != nil {
			if perr := printCommit(result); perr != nil {
				return perr
			}
		}
		return err
	},
}

// undo command
var undoCmd = &cobra.Command{
	Use:   "undo IMPORT_ID",
	Short: "Remove the items added by an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "Undo")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.Undo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d item(s) from import %s\n", n, args[0])
		return nil
	},
}

// imports command
var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List imports and whether they can still be undone",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "ListImports")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		imports, err := a.ListImports(cmd.Context())
		if err != nil {
			return err
		}
		if len(imports) == 0 {
			fmt.Println("No imports recorded.")
			return nil
		}

		return emit(imports, func(w io.Writer) {
			fmt.Fprintln(w, "IMPORT\tITEMS\tCREATED\tSTATUS")
			for _, s := range imports {
				status := "undo until " + s.ExpiresAt.Local().Format("2006-01-02 15:04")
				switch {
				case s.Entry.UndoneAt != nil:
					status = "undone"
				case !s.CanUndo:
					status = "expired"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					s.Entry.ImportID, len(s.Entry.InsertedIDs), s.Entry.CreatedAt.Local().Format("2006-01-02 15:04"), status)
			}
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		location, _ := cmd.Flags().GetString("location")

		a, err := newApp(cmd.Context(), "ListInventory")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		items, err := a.ListInventory(cmd.Context(), location)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No items.")
			return nil
		}

		return emit(items, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tLOCATION\tNAME\tQTY\tUNIT\tCATEGORY\tFRESHNESS")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					it.ID, it.Location, it.Name, it.Quantity, it.Unit, it.StorageCategory, it.Freshness)
			}
		})
	},
}

// remove command
var removeCmd = &cobra.Command{
	Use:   "remove ITEM_ID",
	Short: "Remove an item by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp(cmd.Context(), "RemoveItem")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		item, err := a.RemoveItem(cmd.Context(), args[0], reason)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s (%s)\n", item.Name, reason)
		return nil
	},
}

// staples command
var staplesCmd = &cobra.Command{
	Use:   "staples",
	Short: "Analyze and classify staple items",
}

var staplesAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recompute staples from purchase history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "AnalyzeStaples")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		analysis, err := a.AnalyzeStaples(cmd.Context())
		if analysis == nil {
			return err
		}
		if perr := emit(analysis, func(w io.Writer) {
			fmt.Fprintf(w, "%d item(s) analyzed, %d staple(s) (%d new, %d updated)\n",
				analysis.ItemsFound, analysis.StaplesIdentified, analysis.Inserted, analysis.Updated)
			printStapleList(w, "Top staples", analysis.TopStaples)
			printStapleList(w, "Frequent but not staples", analysis.FrequentOccasional)
			for _, f := range analysis.Failures {
				fmt.Fprintf(w, "  failed %s\n", f)
			}
		}); perr != nil {
			return perr
		}
		return err
	},
}

func printStapleList(w io.Writer, title string, recs []*pantry.StapleRecord) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, r := range recs {
		every := ""
		if r.AvgFrequencyDays != nil {
			every = fmt.Sprintf("every %d days", *r.AvgFrequencyDays)
		}
		fmt.Fprintf(w, "  %s\t%d\t%s\n", r.DisplayName, r.PurchaseCount, every)
	}
}

var staplesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all staple records",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "ClearStaples")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.ClearStaples(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d staple record(s)\n", n)
		return nil
	},
}

var staplesSetCmd = &cobra.Command{
	Use:   "set STAPLE_ID",
	Short: "Classify an item by hand (--staple or --occasional, =false to clear)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var override pantry.StapleOverride
		if cmd.Flags().Changed("staple") {
			v, _ := cmd.Flags().GetBool("staple")
			override.IsStaple = &v
		}
		if cmd.Flags().Changed("occasional") {
			v, _ := cmd.Flags().GetBool("occasional")
			override.IsOccasional = &v
		}

		a, err := newApp(cmd.Context(), "ClassifyStaple")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		rec, err := a.ClassifyStaple(cmd.Context(), args[0], override)
		if err != nil {
			return err
		}
		fmt.Printf("%s: staple=%t occasional=%t\n", rec.DisplayName, rec.IsStaple, rec.IsOccasional)
		return nil
	},
}

var staplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staple records",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "ListStaples")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		recs, err := a.ListStaples(cmd.Context())
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No staple records. Run 'pantry staples analyze'.")
			return nil
		}

		return emit(recs, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCOUNT\tEVERY\tCLASS")
			for _, r := range recs {
				every := "-"
				if r.AvgFrequencyDays != nil {
					every = fmt.Sprintf("%dd", *r.AvgFrequencyDays)
				}
				class := ""
				switch {
				case r.IsStaple:
					class = "staple"
				case r.IsOccasional:
					class = "occasional"
				}
				if r.ManualOverride {
					class += " (manual)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.DisplayName, r.Category, r.PurchaseCount, every, strings.TrimSpace(class))
			}
		})
	},
}

var staplesExportCmd = &cobra.Command{
	Use:   "export FILE.xlsx",
	Short: "Write staple records to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "ExportStaples")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.ExportStaples(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d staple record(s) to %s\n", n, args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		ops, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		return emit(ops, func(w io.Writer) {
			for _, op := range ops {
				duration := ""
				if op.FinishedAt != nil {
					duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\t%s\n",
					op.ID,
					op.Name,
					op.StartedAt.Local().Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
					op.Parameters,
				)
			}
		})
	},
}

// metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Export Prometheus metrics",
}

var metricsDumpCmd = &cobra.Command{
	Use:   "dump [FILE]",
	Short: "Write metrics to a textfile (default metrics.textfile_path)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "DumpMetrics")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return a.DumpMetrics(cmd.Context(), path)
	},
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "ServeMetrics")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.MetricsAddr()
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           a.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "Serving metrics on http://%s/metrics\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving metrics: %w", err)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage database snapshots",
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local database with the newest archived snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase := ""
		if cfg.Encryption.Type == "" || cfg.Encryption.Type == "age" {
			passphrase, err = readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
		}

		version, err := app.Restore(cmd.Context(), cfg, passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Restored snapshot version %d\n", version)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("owner", "", "Owner ID (default: a new UUID)")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	// inventory commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("location", "l", "", "Location scanned (overrides the file)")
	scanCmd.Flags().BoolP("commit", "c", false, "Commit the pre-selected rows")
	scanCmd.Flags().String("import-id", "", "Import ID for undo (default: generated)")
	rootCmd.AddCommand(receiptCmd)
	receiptCmd.Flags().StringP("location", "l", "", "Location the purchases go to (default: pantry)")
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("location", "l", "", "Only list one location")
	rootCmd.AddCommand(removeCmd)
	removeCmd.Flags().StringP("reason", "r", string(pantry.RemovalEaten), "Why: eaten, spoiled or mistake")

	// staples subcommands
	staplesCmd.AddCommand(staplesAnalyzeCmd)
	staplesCmd.AddCommand(staplesClearCmd)
	staplesCmd.AddCommand(staplesSetCmd)
	staplesSetCmd.Flags().Bool("staple", false, "Mark as staple")
	staplesSetCmd.Flags().Bool("occasional", false, "Mark as occasional")
	staplesCmd.AddCommand(staplesListCmd)
	staplesCmd.AddCommand(staplesExportCmd)
	rootCmd.AddCommand(staplesCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	metricsCmd.AddCommand(metricsDumpCmd)
	metricsCmd.AddCommand(metricsServeCmd)
	metricsServeCmd.Flags().String("addr", "", "Listen address (default: metrics.listen_addr)")
	rootCmd.AddCommand(metricsCmd)

	archiveCmd.AddCommand(archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}
