package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

var (
	// ErrUnsupportedFormat is returned when the input bytes are not an image we can decode
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidImage is returned when an image decodes to nothing usable
	ErrInvalidImage = errors.New("invalid image")
)

// Decode turns the raw bytes of an uploaded receipt into an image.
// PDFs are rendered from their first page, HEIC/HEIF photos are decoded with a
// pure Go decoder, and everything else goes through imaging so EXIF orientation
// from phone cameras is applied.
func Decode(data []byte, name string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var (
		img image.Image
		err error
	)
	switch {
	case isPDFFormat(data) || ext == ".pdf":
		img, err = pdfToImage(data)
	case isHEICFormat(data) || ext == ".heic" || ext == ".heif":
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}
	if err != nil {
		return nil, err
	}

	if img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	return img, nil
}

// pdfToImage renders the first page of a PDF (most receipts are single page)
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isPDFFormat checks for the %PDF- magic header
func isPDFFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with one of the HEIF brands
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// toGray converts any decoded image to 8-bit grayscale
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
