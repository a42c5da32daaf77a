package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tdnlab/tdnlaunch/pkg/config"
	"github.com/tdnlab/tdnlaunch/pkg/history"
	"github.com/tdnlab/tdnlaunch/pkg/launcher"
)

var (
	runsFailed bool
	runsAll    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [data-dir]",
	Short: "Query training run history",
	Long:  `Query recorded training runs for a dataset directory or across all datasets`,
	Run:   runRuns,
}

func init() {
	runsCmd.Flags().BoolVar(&runsFailed, "failed", false, "only show runs that exited non-zero")
	runsCmd.Flags().BoolVar(&runsAll, "all", false, "query runs for all datasets")
	rootCmd.AddCommand(runsCmd)
}

func recordRun(db *history.DB, cfg *config.Config, result *launcher.Result) error {
	if db == nil || !db.IsEnabled() {
		return nil
	}

	return db.RecordRun(&history.RunRecord{
		DataDir:          cfg.Training.DataDir,
		ResumeCheckpoint: cfg.Training.ResumeCheckpoint,
		Workers:          cfg.Launcher.Workers,
		GPUs:             cfg.Launcher.GPUs,
		Args:             strings.Join(result.Args, " "),
		ExitCode:         result.ExitCode,
		StartedAt:        result.StartTime,
		FinishedAt:       result.EndTime,
	})
}

func runRuns(cmd *cobra.Command, args []string) {
	if !runsAll && len(args) == 0 {
		color.Red("Error: either provide a data directory or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if runsAll && len(args) > 0 {
		color.Red("Error: cannot use both a data directory and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	manager := config.NewManager(configFile)
	if err := manager.LoadConfig(); err != nil {
		color.Red("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	cfg := manager.GetConfig()

	db, err := history.New(&cfg.Database)
	if err != nil || !db.IsEnabled() {
		color.Red("Error: Run history is not enabled. Please enable the database in config.yaml")
		os.Exit(1)
	}
	defer db.Close()

	dataDir := ""
	if len(args) > 0 {
		dataDir = args[0]
	}

	records, err := db.QueryRuns(dataDir, runsFailed)
	if err != nil {
		color.Red("Failed to query run history: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		color.Yellow("[INF] No recorded runs found.")
		os.Exit(0)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("ID\tDATA_DIR\tWORKERS\tGPUS\tEXIT\tDURATION\tSTARTED"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		exitColor := color.GreenString
		if r.ExitCode != 0 {
			exitColor = color.RedString
		}

		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.DataDir,
			r.Workers,
			r.GPUs,
			exitColor("%d", r.ExitCode),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.StartedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	color.Green("\nTotal runs: %d", len(records))
}
