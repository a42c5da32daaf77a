package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	m := NewManager("")
	err := m.validateConfig(DefaultConfig())
	assert.NoError(t, err)
}

func TestDefaultWorkersMatchGPUs(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.Launcher.Workers, len(cfg.Launcher.GPUList()))
}

func TestGPUList(t *testing.T) {
	l := Launcher{GPUs: "0,1,2"}
	assert.Equal(t, []string{"0", "1", "2"}, l.GPUList())

	l.GPUs = " 0 , 2 "
	assert.Equal(t, []string{"0", "2"}, l.GPUList())

	l.GPUs = ""
	assert.Nil(t, l.GPUList())
}

func TestValidateRejectsWorkerGPUMismatch(t *testing.T) {
	m := NewManager("")

	cfg := DefaultConfig()
	cfg.Launcher.Workers = 4

	err := m.validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestValidateRejectsBadValues(t *testing.T) {
	m := NewManager("")

	cfg := DefaultConfig()
	cfg.Diffusion.NoiseSchedule = "quadratic"
	assert.Error(t, m.validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Training.BatchSize = 0
	assert.Error(t, m.validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Training.LR = -1
	assert.Error(t, m.validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Launcher.Workers = 0
	assert.Error(t, m.validateConfig(cfg))
}

func TestLoadConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
training:
  batch_size: 8
  resume_checkpoint: results/coco_train/model050000.pt
launcher:
  workers: 2
  gpus: "0,1"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	m := NewManager(path)
	require.NoError(t, m.LoadConfig())

	cfg := m.GetConfig()
	assert.Equal(t, 8, cfg.Training.BatchSize)
	assert.Equal(t, "results/coco_train/model050000.pt", cfg.Training.ResumeCheckpoint)
	assert.Equal(t, 2, cfg.Launcher.Workers)
	assert.Equal(t, "0,1", cfg.Launcher.GPUs)

	// untouched sections keep their defaults
	assert.Equal(t, 1000, cfg.Diffusion.DiffusionSteps)
	assert.Equal(t, 256, cfg.Model.ImageSize)
}

func TestLoadConfigRejectsMismatchedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
launcher:
  workers: 4
  gpus: "0,1"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	m := NewManager(path)
	err := m.LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}
