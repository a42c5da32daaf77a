package launcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tdnlab/tdnlaunch/pkg/config"
)

func TestBuildArgsDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()

	first := strings.Join(BuildArgs(cfg), " ")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, strings.Join(BuildArgs(cfg), " "))
	}
}

func TestBuildArgsGroupOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	args := BuildArgs(cfg)

	joined := strings.Join(args, " ")

	// model flags come first, then diffusion, then training
	modelIdx := strings.Index(joined, "--class_cond")
	diffusionIdx := strings.Index(joined, "--diffusion_steps")
	trainIdx := strings.Index(joined, "--data_dir")

	assert.GreaterOrEqual(t, modelIdx, 0)
	assert.Greater(t, diffusionIdx, modelIdx)
	assert.Greater(t, trainIdx, diffusionIdx)
}

func TestBuildArgsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	joined := strings.Join(BuildArgs(cfg), " ")

	assert.Contains(t, joined, "--class_cond True")
	assert.Contains(t, joined, "--image_size 256")
	assert.Contains(t, joined, "--num_channels 128")
	assert.Contains(t, joined, "--attention_resolutions 32,16,8")
	assert.Contains(t, joined, "--diffusion_steps 1000")
	assert.Contains(t, joined, "--noise_schedule linear")
	assert.Contains(t, joined, "--rescale_learned_sigmas False")
	assert.Contains(t, joined, "--lr 0.0001")
	assert.Contains(t, joined, "--batch_size 4")
	assert.Contains(t, joined, "--data_dir datasets/coco_real")
	assert.NotContains(t, joined, "--resume_checkpoint")
}

func TestTrainArgsResumeCheckpoint(t *testing.T) {
	training := config.DefaultConfig().Training
	training.ResumeCheckpoint = "results/coco_train/model100000.pt"

	joined := strings.Join(TrainArgs(&training), " ")
	assert.Contains(t, joined, "--resume_checkpoint results/coco_train/model100000.pt")
}

func TestPyBool(t *testing.T) {
	assert.Equal(t, "True", pyBool(true))
	assert.Equal(t, "False", pyBool(false))
}

func TestPyFloat(t *testing.T) {
	assert.Equal(t, "0.0001", pyFloat(1e-4))
	assert.Equal(t, "0.5", pyFloat(0.5))
}
