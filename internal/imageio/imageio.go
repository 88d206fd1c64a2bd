// Package imageio loads survey photos for annotation.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
)

// photoSuffixes are the file extensions treated as survey photos.
// Anything else in the photo directory is skipped.
var photoSuffixes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Recognized reports whether path has a supported photo extension.
func Recognized(path string) bool {
	return photoSuffixes[strings.ToLower(filepath.Ext(path))]
}

// Decode loads a photo from disk. OpenCV handles the common aerial-camera
// output formats and is tolerant of slightly malformed JPEGs; the standard
// decoders are the fallback.
func Decode(path string) (image.Image, error) {
	if !Recognized(path) {
		return nil, fmt.Errorf("unsupported photo format %q", filepath.Ext(path))
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		defer mat.Close()
		img, err := mat.ToImage()
		if err == nil {
			return img, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}
	return img, nil
}

// Blank returns a neutral gray placeholder shown when a listed photo is
// missing or unreadable, so its markers stay editable.
func Blank(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	gray := color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, gray)
		}
	}
	return img
}
