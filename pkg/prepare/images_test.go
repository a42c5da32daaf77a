package prepare

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertImage(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.jpg")
	dstPath := filepath.Join(dir, "dst.jpg")

	src := imaging.New(640, 480, color.NRGBA{R: 120, G: 60, B: 30, A: 255})
	require.NoError(t, imaging.Save(src, srcPath))

	require.NoError(t, ConvertImage(srcPath, dstPath, 256))

	dst, err := imaging.Open(dstPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 256, 256), dst.Bounds())
}

func TestConvertImageMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := ConvertImage(filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg"), 256)
	assert.Error(t, err)
}
