package prepare

import (
	"fmt"

	"github.com/disintegration/imaging"
)

const jpegQuality = 95

// ConvertImage center-crops the source image to a square, resizes it to
// size x size, and writes it as JPEG. This matches the crop the training
// program's dataset loader applies, so prepared images round-trip cleanly.
func ConvertImage(srcPath, dstPath string, size int) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	bounds := img.Bounds()
	minSide := bounds.Dx()
	if bounds.Dy() < minSide {
		minSide = bounds.Dy()
	}

	img = imaging.CropCenter(img, minSide, minSide)
	img = imaging.Resize(img, size, size, imaging.CatmullRom)

	if err := imaging.Save(img, dstPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}
