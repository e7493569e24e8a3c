package preprocess

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// Pipeline turns a receipt photo into a binarized PNG ready for OCR:
// decode, denoise, rectify, deskew, binarize.
type Pipeline struct {
	debugDir string
}

// NewPipeline creates a Pipeline. When debugDir is not empty every
// intermediate stage is written there as a PNG.
func NewPipeline(debugDir string) (*Pipeline, error) {
	if debugDir != "" {
		if err := os.MkdirAll(debugDir, 0755); err != nil {
			return nil, fmt.Errorf("creating debug directory: %w", err)
		}
	}
	return &Pipeline{debugDir: debugDir}, nil
}

// Process runs the full preprocessing chain on an image file's bytes
func (p *Pipeline) Process(name string, data []byte) ([]byte, error) {
	img, err := Decode(data, name)
	if err != nil {
		return nil, err
	}

	gray, err := gocv.ImageGrayToMatGray(toGray(img))
	if err != nil {
		return nil, fmt.Errorf("loading image into opencv: %w", err)
	}
	defer gray.Close()

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BilateralFilter(gray, &smoothed, 9, 15, 15)

	rectified, ok := Rectify(smoothed)
	defer rectified.Close()
	if !ok {
		slog.Debug("No paper boundary found, using the whole photo", "file", name)
	}
	p.dump(name, "rectified", rectified)

	straight := Deskew(rectified)
	defer straight.Close()
	p.dump(name, "deskewed", straight)

	binary := BinarizeForOCR(straight)
	defer binary.Close()
	p.dump(name, "binary", binary)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, binary)
	if err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}

// dump writes an intermediate stage for debugging
func (p *Pipeline) dump(name, stage string, m gocv.Mat) {
	if p.debugDir == "" {
		return
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	path := filepath.Join(p.debugDir, fmt.Sprintf("%s_%s.png", base, stage))
	if !gocv.IMWrite(path, m) {
		slog.Warn("Failed to write debug image", "path", path)
	}
}
