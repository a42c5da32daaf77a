package launcher

import (
	"strconv"

	"github.com/tdnlab/tdnlaunch/pkg/config"
)

// pyBool renders a boolean the way image_train.py's argument parser expects
// it ("True"/"False", capitalized).
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func pyFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ModelArgs builds the architecture flag group in a fixed order.
func ModelArgs(m *config.Model) []string {
	return []string{
		"--class_cond", pyBool(m.ClassCond),
		"--image_size", strconv.Itoa(m.ImageSize),
		"--learn_sigma", pyBool(m.LearnSigma),
		"--num_channels", strconv.Itoa(m.NumChannels),
		"--num_head_channels", strconv.Itoa(m.NumHeadChannels),
		"--num_res_blocks", strconv.Itoa(m.NumResBlocks),
		"--attention_resolutions", m.AttentionResolutions,
		"--use_scale_shift_norm", pyBool(m.UseScaleShiftNorm),
	}
}

// DiffusionArgs builds the diffusion schedule flag group in a fixed order.
func DiffusionArgs(d *config.Diffusion) []string {
	return []string{
		"--diffusion_steps", strconv.Itoa(d.DiffusionSteps),
		"--noise_schedule", d.NoiseSchedule,
		"--rescale_learned_sigmas", pyBool(d.RescaleLearnedSigmas),
		"--rescale_timesteps", pyBool(d.RescaleTimesteps),
	}
}

// TrainArgs builds the training hyperparameter flag group in a fixed order.
// The resume checkpoint flag is only emitted when a checkpoint is configured;
// image_train.py treats an empty path as "train from scratch" either way, but
// omitting it keeps the command line readable.
func TrainArgs(t *config.Training) []string {
	args := []string{
		"--data_dir", t.DataDir,
		"--lr", pyFloat(t.LR),
		"--batch_size", strconv.Itoa(t.BatchSize),
		"--save_interval", strconv.Itoa(t.SaveInterval),
	}

	if t.ResumeCheckpoint != "" {
		args = append(args, "--resume_checkpoint", t.ResumeCheckpoint)
	}

	return args
}

// BuildArgs concatenates the three flag groups in the order the original
// launch command passes them: model, diffusion, training. The result is
// deterministic for a given config.
func BuildArgs(cfg *config.Config) []string {
	var args []string
	args = append(args, ModelArgs(&cfg.Model)...)
	args = append(args, DiffusionArgs(&cfg.Diffusion)...)
	args = append(args, TrainArgs(&cfg.Training)...)
	return args
}
