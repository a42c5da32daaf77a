package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

type Config struct {
	Model     Model     `yaml:"model"`
	Diffusion Diffusion `yaml:"diffusion"`
	Training  Training  `yaml:"training"`
	Launcher  Launcher  `yaml:"launcher"`
	Database  Database  `yaml:"database"`
}

// Model mirrors the architecture flags accepted by image_train.py.
type Model struct {
	ClassCond            bool   `yaml:"class_cond"`
	ImageSize            int    `yaml:"image_size"`
	NumChannels          int    `yaml:"num_channels"`
	NumResBlocks         int    `yaml:"num_res_blocks"`
	NumHeadChannels      int    `yaml:"num_head_channels"`
	AttentionResolutions string `yaml:"attention_resolutions"`
	LearnSigma           bool   `yaml:"learn_sigma"`
	UseScaleShiftNorm    bool   `yaml:"use_scale_shift_norm"`
}

type Diffusion struct {
	DiffusionSteps       int    `yaml:"diffusion_steps"`
	NoiseSchedule        string `yaml:"noise_schedule"`
	RescaleLearnedSigmas bool   `yaml:"rescale_learned_sigmas"`
	RescaleTimesteps     bool   `yaml:"rescale_timesteps"`
}

type Training struct {
	LR               float64 `yaml:"lr"`
	BatchSize        int     `yaml:"batch_size"`
	SaveInterval     int     `yaml:"save_interval"`
	ResumeCheckpoint string  `yaml:"resume_checkpoint"`
	DataDir          string  `yaml:"data_dir"`
}

type Launcher struct {
	Workers    int    `yaml:"workers"`
	GPUs       string `yaml:"gpus"`
	LogDir     string `yaml:"log_dir"`
	PythonBin  string `yaml:"python_bin"`
	ScriptPath string `yaml:"script_path"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

var validNoiseSchedules = []string{"linear", "cosine"}

// DefaultConfig returns the stock run configuration: 3 workers on GPUs 0,1,2
// training at 256x256 on the prepared COCO dataset.
func DefaultConfig() *Config {
	return &Config{
		Model: Model{
			ClassCond:            true,
			ImageSize:            256,
			NumChannels:          128,
			NumResBlocks:         2,
			NumHeadChannels:      64,
			AttentionResolutions: "32,16,8",
			LearnSigma:           true,
			UseScaleShiftNorm:    true,
		},
		Diffusion: Diffusion{
			DiffusionSteps:       1000,
			NoiseSchedule:        "linear",
			RescaleLearnedSigmas: false,
			RescaleTimesteps:     false,
		},
		Training: Training{
			LR:               1e-4,
			BatchSize:        4,
			SaveInterval:     10000,
			ResumeCheckpoint: "",
			DataDir:          "datasets/coco_real",
		},
		Launcher: Launcher{
			Workers:    3,
			GPUs:       "0,1,2",
			LogDir:     GetDefaultLogDir(),
			PythonBin:  "python",
			ScriptPath: "scripts/image_train.py",
		},
		Database: Database{
			Enabled: false,
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
		},
	}
}

// GPUList splits the device-visibility string into individual indices.
func (l *Launcher) GPUList() []string {
	if strings.TrimSpace(l.GPUs) == "" {
		return nil
	}

	var gpus []string
	for _, g := range strings.Split(l.GPUs, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			gpus = append(gpus, g)
		}
	}
	return gpus
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

// LoadConfig reads the YAML config over the built-in defaults. A missing
// config file is not an error: every setting has a literal default, so the
// launcher runs without one.
func (m *Manager) LoadConfig() error {
	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	config := DefaultConfig()

	if m.configPath != "" {
		if DebugLog != nil {
			DebugLog("loading config from %s", m.configPath)
		}

		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if DebugLog != nil {
		DebugLog("no config file found, using built-in defaults")
	}

	if err := m.validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	if configPath := GetDefaultConfigPath(); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

func (m *Manager) validateConfig(config *Config) error {
	if config.Model.ImageSize <= 0 {
		return fmt.Errorf("image_size must be greater than 0")
	}

	if config.Diffusion.DiffusionSteps <= 0 {
		return fmt.Errorf("diffusion_steps must be greater than 0")
	}

	schedule := strings.ToLower(config.Diffusion.NoiseSchedule)
	validSchedule := false
	for _, s := range validNoiseSchedules {
		if schedule == s {
			validSchedule = true
			break
		}
	}
	if !validSchedule {
		return fmt.Errorf("unknown noise_schedule %q (valid: %s)",
			config.Diffusion.NoiseSchedule, strings.Join(validNoiseSchedules, ", "))
	}

	if config.Training.LR <= 0 {
		return fmt.Errorf("lr must be greater than 0")
	}

	if config.Training.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be greater than 0")
	}

	if config.Launcher.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	// The worker count and the device-visibility list must agree, otherwise
	// mpiexec starts more ranks than there are visible devices (or leaves
	// devices idle).
	if gpus := config.Launcher.GPUList(); len(gpus) != config.Launcher.Workers {
		return fmt.Errorf("workers (%d) does not match number of visible GPUs (%d: %q)",
			config.Launcher.Workers, len(gpus), config.Launcher.GPUs)
	}

	return nil
}
