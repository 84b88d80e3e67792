package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg/vgimg"
)

func saveCanvas(img *vgimg.Canvas, path string) (err error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "png", "jpg", "jpeg", "tif", "tiff":
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	switch ext {
	case "png":
		_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(f)
	case "jpg", "jpeg":
		_, err = vgimg.JpegCanvas{Canvas: img}.WriteTo(f)
	default:
		_, err = vgimg.TiffCanvas{Canvas: img}.WriteTo(f)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
