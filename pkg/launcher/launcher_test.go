package launcher

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdnlab/tdnlaunch/pkg/config"
)

func TestChildEnvScopedOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	l := New(cfg)

	base := []string{"PATH=/usr/bin", "HOME=/home/user"}
	env := l.childEnv(base)

	assert.Contains(t, env, "CUDA_VISIBLE_DEVICES=0,1,2")
	assert.Contains(t, env, "OPENAI_LOGDIR="+cfg.Launcher.LogDir)
	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "HOME=/home/user")

	// the base slice the parent passed in is untouched
	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/home/user"}, base)
}

func TestChildEnvReplacesExistingOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Launcher.GPUs = "4,5"
	cfg.Launcher.Workers = 2
	l := New(cfg)

	env := l.childEnv([]string{"CUDA_VISIBLE_DEVICES=7", "OPENAI_LOGDIR=/tmp/old"})

	assert.Contains(t, env, "CUDA_VISIBLE_DEVICES=4,5")
	assert.NotContains(t, env, "CUDA_VISIBLE_DEVICES=7")
	assert.NotContains(t, env, "OPENAI_LOGDIR=/tmp/old")
}

func TestChildEnvDoesNotLeakIntoParent(t *testing.T) {
	cfg := config.DefaultConfig()
	l := New(cfg)

	before := os.Getenv("CUDA_VISIBLE_DEVICES")
	l.childEnv(os.Environ())
	assert.Equal(t, before, os.Getenv("CUDA_VISIBLE_DEVICES"))
}

func TestRunCommandExitCodeSuccess(t *testing.T) {
	shPath, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	code, err := runCommand(exec.Command(shPath, "-c", "exit 0"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunCommandExitCodeFailure(t *testing.T) {
	shPath, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	code, err := runCommand(exec.Command(shPath, "-c", "exit 7"))
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestRunCommandMissingBinary(t *testing.T) {
	code, err := runCommand(exec.Command("/nonexistent/mpiexec"))
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestCommandShape(t *testing.T) {
	if _, err := exec.LookPath("mpiexec"); err != nil {
		t.Skip("mpiexec not available")
	}

	cfg := config.DefaultConfig()
	l := New(cfg)

	_, args, err := l.Command()
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(args), 4)
	assert.Equal(t, "-n", args[0])
	assert.Equal(t, "3", args[1])
	assert.Equal(t, "python", args[2])
	assert.Equal(t, "scripts/image_train.py", args[3])
}
