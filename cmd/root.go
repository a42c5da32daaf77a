package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tdnlab/tdnlaunch/pkg/config"
	"github.com/tdnlab/tdnlaunch/pkg/history"
	"github.com/tdnlab/tdnlaunch/pkg/launcher"
	"github.com/tdnlab/tdnlaunch/pkg/prepare"
)

var (
	configFile   string
	dataDir      string
	resumeCkpt   string
	gpus         string
	workers      int
	logDir       string
	batchSize    int
	learningRate float64
	saveInterval int
	dryRun       bool
	silent       bool
	verbose      bool
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "tdnlaunch",
	Short: "multi-gpu diffusion training launcher",
	Long:  `launcher for TopoDiffusionNet image training over mpiexec`,
	Run:   runLaunch,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		if arg == "-silent" {
			os.Args[i] = "--silent"
			hasSilentFlag = true
		}
		if arg == "-resume" {
			os.Args[i] = "--resume"
		}
		if arg == "-gpus" {
			os.Args[i] = "--gpus"
		}
		if arg == "-dry-run" {
			os.Args[i] = "--dry-run"
		}
		if arg == "-lr" {
			os.Args[i] = "--lr"
		}
		if arg == "-logdir" {
			os.Args[i] = "--logdir"
		}
		if arg == "-save-interval" {
			os.Args[i] = "--save-interval"
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	launcher.DebugLog = DebugLog
	history.DebugLog = DebugLog
	prepare.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
TRAINING:
   -d, -data-dir string    dataset directory passed to image_train.py
   -r, -resume string      checkpoint path to resume training from
   -b, -batch-size int     per-worker batch size
   -lr float               learning rate
   -save-interval int      steps between checkpoint saves

LAUNCH:
   -n, -workers int        number of mpiexec workers (one per GPU)
   -gpus string            comma-separated GPU indices for CUDA_VISIBLE_DEVICES
   -logdir string          training log/checkpoint directory (OPENAI_LOGDIR)
   -dry-run                print the assembled command without launching

OUTPUT:
   -silent                 silent mode - no banner or extra output
   -v, -verbose            enable verbose/debug output

CONFIGURATION:
   -c, -config string      config file path (default: config/config.yaml)
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: config/config.yaml)")

	rootCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "dataset directory passed to image_train.py")
	rootCmd.Flags().StringVarP(&resumeCkpt, "resume", "r", "", "checkpoint path to resume training from")
	rootCmd.Flags().StringVar(&gpus, "gpus", "", "comma-separated GPU indices for CUDA_VISIBLE_DEVICES")
	rootCmd.Flags().IntVarP(&workers, "workers", "n", 0, "number of mpiexec workers (one per GPU)")
	rootCmd.Flags().StringVar(&logDir, "logdir", "", "training log/checkpoint directory (OPENAI_LOGDIR)")
	rootCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "per-worker batch size")
	rootCmd.Flags().Float64Var(&learningRate, "lr", 0, "learning rate")
	rootCmd.Flags().IntVar(&saveInterval, "save-interval", 0, "steps between checkpoint saves")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the assembled command without launching")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies command-line overrides on top of the YAML config and
// re-validates the result.
func loadConfig() (*config.Config, error) {
	manager := config.NewManager(configFile)
	if err := manager.LoadConfig(); err != nil {
		return nil, err
	}

	cfg := manager.GetConfig()

	if dataDir != "" {
		cfg.Training.DataDir = dataDir
	}
	if resumeCkpt != "" {
		cfg.Training.ResumeCheckpoint = resumeCkpt
	}
	if batchSize > 0 {
		cfg.Training.BatchSize = batchSize
	}
	if learningRate > 0 {
		cfg.Training.LR = learningRate
	}
	if saveInterval > 0 {
		cfg.Training.SaveInterval = saveInterval
	}
	if gpus != "" {
		cfg.Launcher.GPUs = gpus
		if workers == 0 {
			// Changing the device list without -n follows the list.
			cfg.Launcher.Workers = len(cfg.Launcher.GPUList())
		}
	}
	if workers > 0 {
		cfg.Launcher.Workers = workers
	}
	if logDir != "" {
		cfg.Launcher.LogDir = logDir
	}

	if lGPUs := cfg.Launcher.GPUList(); len(lGPUs) != cfg.Launcher.Workers {
		return nil, fmt.Errorf("workers (%d) does not match number of visible GPUs (%d: %q)",
			cfg.Launcher.Workers, len(lGPUs), cfg.Launcher.GPUs)
	}

	return cfg, nil
}

func runLaunch(cmd *cobra.Command, args []string) {
	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	l := launcher.New(cfg)
	l.SetSilent(silent)

	if dryRun {
		mpiexecPath, cmdArgs, err := l.Command()
		if err != nil {
			color.Red("Error: %v", err)
			os.Exit(1)
		}
		fmt.Printf("CUDA_VISIBLE_DEVICES=%s OPENAI_LOGDIR=%s %s", cfg.Launcher.GPUs, cfg.Launcher.LogDir, mpiexecPath)
		for _, a := range cmdArgs {
			fmt.Printf(" %s", a)
		}
		fmt.Println()
		os.Exit(0)
	}

	db, err := history.New(&cfg.Database)
	if err != nil {
		color.Yellow("Run history unavailable: %v", err)
	}
	defer db.Close()

	result, err := l.Run()
	if err != nil {
		color.Red("Launch failed: %v", err)
		os.Exit(1)
	}

	if err := recordRun(db, cfg, result); err != nil {
		color.Yellow("Failed to record run: %v", err)
	}

	os.Exit(result.ExitCode)
}

func printBanner() {
	banner := color.CyanString(`
┌┬┐┌┬┐┌┐┌┬  ┌─┐┬ ┬┌┐┌┌─┐┬ ┬
 │  ││││││  ├─┤│ │││││  ├─┤
 ┴ ─┴┘┘└┘┴─┘┴ ┴└─┘┘└┘└─┘┴ ┴
`)
	info := color.HiBlackString("multi-gpu launcher for TopoDiffusionNet training")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}
