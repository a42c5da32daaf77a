package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdnlab/tdnlaunch/pkg/config"
)

var DebugLog func(string, ...interface{})

// Launcher assembles the training command for one run and hands it to
// mpiexec. The configuration is fixed at construction time and never mutated
// afterwards.
type Launcher struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// Result describes one finished launch.
type Result struct {
	Args      []string
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func New(cfg *config.Config) *Launcher {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	return &Launcher{
		cfg:    cfg,
		logger: logger,
	}
}

// SetSilent drops informational output, leaving only errors and whatever the
// training program itself prints.
func (l *Launcher) SetSilent(silent bool) {
	if silent {
		l.logger.SetLevel(logrus.ErrorLevel)
	}
}

func getMpiexecPath() (string, error) {
	if path, err := exec.LookPath("mpiexec"); err == nil {
		return path, nil
	}

	candidates := []string{
		"/usr/lib64/openmpi/bin/mpiexec",
		"/opt/openmpi/bin/mpiexec",
	}

	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "openmpi", "bin", "mpiexec"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("mpiexec not found")
}

// Command resolves mpiexec and returns the full argument vector for the run:
// mpiexec -n <workers> <python> <script> <training flags...>.
func (l *Launcher) Command() (string, []string, error) {
	mpiexecPath, err := getMpiexecPath()
	if err != nil {
		return "", nil, fmt.Errorf("mpiexec executable not found: %w", err)
	}

	args := []string{
		"-n", strconv.Itoa(l.cfg.Launcher.Workers),
		l.cfg.Launcher.PythonBin,
		l.cfg.Launcher.ScriptPath,
	}
	args = append(args, BuildArgs(l.cfg)...)

	return mpiexecPath, args, nil
}

// childEnv is the parent environment plus the two overrides the training
// program reads: device visibility and its log directory. The overrides live
// only on the child's environment; the launcher's own environment is never
// touched.
func (l *Launcher) childEnv(base []string) []string {
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "CUDA_VISIBLE_DEVICES=") || strings.HasPrefix(kv, "OPENAI_LOGDIR=") {
			continue
		}
		env = append(env, kv)
	}

	env = append(env,
		"CUDA_VISIBLE_DEVICES="+l.cfg.Launcher.GPUs,
		"OPENAI_LOGDIR="+l.cfg.Launcher.LogDir,
	)
	return env
}

// Run launches the training program and blocks until it exits. The child's
// exit code is returned unchanged in the Result; failures inside the training
// program are not interpreted here.
func (l *Launcher) Run() (*Result, error) {
	mpiexecPath, args, err := l.Command()
	if err != nil {
		return nil, err
	}

	if DebugLog != nil {
		DebugLog("executing: %s %s", mpiexecPath, strings.Join(args, " "))
	}

	l.logger.Infof("Launching %s with %d workers on GPUs %s",
		l.cfg.Launcher.ScriptPath, l.cfg.Launcher.Workers, l.cfg.Launcher.GPUs)
	l.logger.Infof("Training logs and checkpoints: %s", l.cfg.Launcher.LogDir)

	result := &Result{
		Args:      args,
		StartTime: time.Now(),
	}

	cmd := exec.Command(mpiexecPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = l.childEnv(os.Environ())

	exitCode, err := runCommand(cmd)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.ExitCode = exitCode

	if err != nil {
		return result, err
	}

	if exitCode == 0 {
		l.logger.Infof("Training finished in %v", result.Duration.Round(time.Second))
	} else {
		l.logger.Errorf("Training exited with code %d after %v", exitCode, result.Duration.Round(time.Second))
	}

	return result, nil
}

// runCommand starts the command, forwards interrupt and termination signals
// to the child while it runs, and reports the child's exit code. A non-zero
// exit is not an error: the code is the launcher's only diagnostic surface
// and is passed through as-is.
func runCommand(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				// mpiexec propagates the signal to its worker group.
				cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to run %s: %w", cmd.Path, err)
	}

	return 0, nil
}
