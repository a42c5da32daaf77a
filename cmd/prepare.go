package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdnlab/tdnlaunch/pkg/prepare"
)

var prepareOpts = prepare.DefaultOptions()

type prefixFormatter struct{}

func (f *prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
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
	return []byte(levelText + " " + entry.Message + "\n"), nil
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare COCO real images for training",
	Long: `Prepare COCO val2017 images as a training dataset: count object
instances per image from the instance annotations, filter by count range, and
write center-cropped, resized copies named <count>_<original>.jpg`,
	Run: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&prepareOpts.ImageDir, "coco-img-dir", prepareOpts.ImageDir, "path to COCO val2017 images")
	prepareCmd.Flags().StringVar(&prepareOpts.AnnotationFile, "coco-ann-file", prepareOpts.AnnotationFile, "path to COCO instance annotations JSON")
	prepareCmd.Flags().StringVarP(&prepareOpts.OutputDir, "output-dir", "o", prepareOpts.OutputDir, "output directory for the prepared dataset")
	prepareCmd.Flags().IntVar(&prepareOpts.MinCount, "min-count", prepareOpts.MinCount, "minimum object count to include")
	prepareCmd.Flags().IntVar(&prepareOpts.MaxCount, "max-count", prepareOpts.MaxCount, "maximum object count to include")
	prepareCmd.Flags().IntVar(&prepareOpts.ImageSize, "image-size", prepareOpts.ImageSize, "resize images to this size")
	prepareCmd.Flags().Float64Var(&prepareOpts.MinArea, "min-area", prepareOpts.MinArea, "minimum annotation area to count as an object")
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) {
	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	logger := logrus.New()
	logger.SetFormatter(&prefixFormatter{})

	stats, err := prepare.Run(prepareOpts, logger)
	if err != nil {
		color.Red("Prepare failed: %v", err)
		os.Exit(1)
	}

	color.Green("\nDataset ready: %d images in %s (%d skipped, %d failed)",
		stats.Copied, prepareOpts.OutputDir, stats.Skipped, stats.Failed)
}
