package scanning

// Scanner turns a preprocessed receipt image into raw text.
// Output is untrusted: callers must tolerate empty or garbled text.
type Scanner interface {
	// ExtractText runs text recognition over a PNG image
	ExtractText(imageData []byte) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
