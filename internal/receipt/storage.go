package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// processedDir is where scanned images are moved, inside the inbox
const processedDir = "processed"

// imageExtensions are the file types picked up from the inbox
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".heif": true,
	".pdf":  true,
}

// IsReceiptImage reports whether a file name has an extension the scanner accepts
func IsReceiptImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Storage defines the interface for the receipt inbox
type Storage interface {
	// Save saves a file and returns the stored name
	Save(filename string, data []byte) (string, error)

	// List returns the names of images waiting to be scanned, sorted
	List() ([]string, error)

	// Get retrieves a waiting file by name
	Get(name string) ([]byte, error)

	// MarkProcessed moves a file out of the inbox into the processed area
	MarkProcessed(name string) error
}

// LocalStorage implements the Storage interface using a local inbox directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create both directories if they don't exist
	if err := os.MkdirAll(filepath.Join(basePath, processedDir), 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Dir returns the inbox directory
func (l *LocalStorage) Dir() string {
	return l.basePath
}

// Save saves a file to the inbox
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filename)
	path := filepath.Join(l.basePath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// List returns receipt images in the inbox, ignoring directories and other files
func (l *LocalStorage) List() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsReceiptImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Get retrieves a file from the inbox
func (l *LocalStorage) Get(name string) ([]byte, error) {
	fullPath := filepath.Join(l.basePath, filepath.Base(name))
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// MarkProcessed moves a file into the processed directory
func (l *LocalStorage) MarkProcessed(name string) error {
	name = filepath.Base(name)
	src := filepath.Join(l.basePath, name)
	dst := filepath.Join(l.basePath, processedDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving file to processed: %w", err)
	}
	return nil
}
