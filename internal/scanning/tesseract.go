package scanning

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Scanner interface using a local Tesseract install
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract scanner for the given languages (e.g. "eng", "deu")
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}, nil
}

// ExtractText reads the receipt as a single uniform block of text
func (t *Tesseract) ExtractText(imageData []byte) (string, error) {
	// gosseract clients are not safe to share, so each call gets its own
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("loading image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}

// Close is a no-op, clients are released after every call
func (t *Tesseract) Close() error {
	return nil
}
