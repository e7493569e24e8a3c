package receipt

import (
	"encoding/base64"
	"errors"
	"sort"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockLedger is an in-memory Ledger
type mockLedger struct {
	records   []Receipt
	appendErr error
	appends   int
}

func (m *mockLedger) Load() []Receipt {
	return append([]Receipt{}, m.records...)
}

func (m *mockLedger) AppendIfNew(records []Receipt) (int, error) {
	m.appends++
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	fresh := filterNew(knownFiles(m.records), records)
	m.records = append(m.records, fresh...)
	return len(fresh), nil
}

// mockStorage keeps inbox files in a map
type mockStorage struct {
	files     map[string][]byte
	processed []string
	saveErr   error
	listErr   error
	getErr    error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.files[filename] = data
	return filename, nil
}

func (m *mockStorage) List() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockStorage) Get(name string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.files[name]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *mockStorage) MarkProcessed(name string) error {
	delete(m.files, name)
	m.processed = append(m.processed, name)
	return nil
}

// mockPreprocessor passes images through unless told to fail on a name
type mockPreprocessor struct {
	failOn map[string]bool
}

func (m *mockPreprocessor) Process(name string, data []byte) ([]byte, error) {
	if m.failOn[name] {
		return nil, errors.New("no paper found")
	}
	return data, nil
}

// mockScanner returns the image bytes as OCR text
type mockScanner struct {
	err   error
	calls int
}

func (m *mockScanner) ExtractText(imageData []byte) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return string(imageData), nil
}

func (m *mockScanner) Close() error { return nil }

type mockIDGenerator struct {
	id string
}

func (m *mockIDGenerator) Generate() string {
	return m.id
}

type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time {
	return m.now
}

const reweReceipt = `REWE Markt GmbH
Bananen
Milch
EUR
1,29 A
0,99 A
`

var _ = Describe("Service", func() {
	var (
		ledger       *mockLedger
		storage      *mockStorage
		preprocessor *mockPreprocessor
		scanner      *mockScanner
		now          time.Time
		service      *Service
	)

	BeforeEach(func() {
		ledger = &mockLedger{}
		storage = newMockStorage()
		preprocessor = &mockPreprocessor{failOn: map[string]bool{}}
		scanner = &mockScanner{}
		now = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(ledger, storage, preprocessor, scanner,
			&mockIDGenerator{id: "42"}, &mockTimeSource{now: now})
	})

	Describe("Upload", func() {
		var (
			filename string
			data     []byte
			name     string
			err      error
		)

		BeforeEach(func() {
			filename = "my receipt (1).JPG"
			data = []byte("image")
		})

		JustBeforeEach(func() {
			name, err = service.Upload(filename, data)
		})

		It("should store the file under a prefixed, sanitized name", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("42_my_receipt_1.jpg"))
			Expect(storage.files).To(HaveKeyWithValue("42_my_receipt_1.jpg", []byte("image")))
		})

		When("the extension is not an image type", func() {
			BeforeEach(func() {
				filename = "notes.txt"
			})

			It("should fall back to .jpg", func() {
				Expect(name).To(Equal("42_notes.jpg"))
			})
		})

		When("the file is empty", func() {
			BeforeEach(func() {
				data = nil
			})

			It("should reject the upload", func() {
				Expect(errors.Is(err, ErrInvalidUpload)).To(BeTrue())
				Expect(storage.files).To(BeEmpty())
			})
		})

		When("storage fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("should return the error", func() {
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})
		})
	})

	Describe("UploadDataURI", func() {
		It("should decode a base64 image", func() {
			uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png bytes"))
			name, err := service.UploadDataURI("scan.png", uri)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("42_scan.png"))
			Expect(storage.files[name]).To(Equal([]byte("png bytes")))
		})

		It("should name nameless uploads", func() {
			uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))
			name, err := service.UploadDataURI("", uri)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("42_upload.jpg"))
		})

		It("should reject anything that is not an image data URI", func() {
			_, err := service.UploadDataURI("x.jpg", "data:text/plain;base64,aGk=")
			Expect(errors.Is(err, ErrInvalidUpload)).To(BeTrue())
		})

		It("should reject broken base64", func() {
			_, err := service.UploadDataURI("x.jpg", "data:image/png;base64,***")
			Expect(errors.Is(err, ErrInvalidUpload)).To(BeTrue())
		})
	})

	Describe("Scan", func() {
		var result *ScanResult

		BeforeEach(func() {
			storage.files["a.jpg"] = []byte(reweReceipt)
		})

		JustBeforeEach(func() {
			result = service.Scan()
		})

		It("should parse the image into a receipt", func() {
			Expect(result.Records).To(HaveLen(1))
			r := result.Records[0]
			Expect(r.File).To(Equal("a.jpg"))
			Expect(r.Store).To(Equal("REWE Markt GmbH"))
			Expect(r.Total.Decimal.StringFixed(2)).To(Equal("1.29"))
			Expect(itemsOf(r.Items)).To(Equal([]string{"Bananen=1.29x1", "Milch=0.99x1"}))
			Expect(r.RawText).To(Equal(reweReceipt))
			Expect(r.ScannedAt).To(Equal(now))
		})

		It("should append to the ledger and move the image", func() {
			Expect(result.Appended).To(Equal(1))
			Expect(ledger.records).To(HaveLen(1))
			Expect(storage.processed).To(ConsistOf("a.jpg"))
		})

		It("should append nothing when scanned again", func() {
			storage.files["a.jpg"] = []byte(reweReceipt)
			second := service.Scan()
			Expect(second.Appended).To(Equal(0))
			Expect(second.Skipped).To(Equal(1))
			Expect(ledger.records).To(HaveLen(1))
			Expect(scanner.calls).To(Equal(1))
		})

		When("one image fails", func() {
			BeforeEach(func() {
				storage.files["b.jpg"] = []byte("broken")
				preprocessor.failOn["b.jpg"] = true
			})

			It("should keep going with the others", func() {
				Expect(result.Failed).To(ConsistOf("b.jpg"))
				Expect(result.Records).To(HaveLen(1))
				Expect(result.Appended).To(Equal(1))
			})

			It("should leave the failed image in the inbox", func() {
				Expect(storage.files).To(HaveKey("b.jpg"))
			})
		})

		When("OCR fails", func() {
			BeforeEach(func() {
				scanner.err = errors.New("engine down")
			})

			It("should report the image as failed", func() {
				Expect(result.Failed).To(ConsistOf("a.jpg"))
				Expect(ledger.appends).To(Equal(0))
			})
		})

		When("an image cannot be read", func() {
			BeforeEach(func() {
				storage.getErr = errors.New("disk error")
			})

			It("should report the image as failed", func() {
				Expect(result.Failed).To(ConsistOf("a.jpg"))
				Expect(result.Records).To(BeEmpty())
			})

			It("should say which step failed", func() {
				_, err := service.scanImage("a.jpg")
				Expect(err).To(MatchError(ContainSubstring("reading image")))
				Expect(errors.Is(err, storage.getErr)).To(BeTrue())
			})
		})

		When("the ledger cannot be written", func() {
			BeforeEach(func() {
				ledger.appendErr = errors.New("read-only")
			})

			It("should still return the parsed receipts", func() {
				Expect(result.Records).To(HaveLen(1))
				Expect(result.PersistErr).To(MatchError("read-only"))
			})
		})

		When("the inbox cannot be listed", func() {
			BeforeEach(func() {
				storage.listErr = errors.New("gone")
			})

			It("should return an empty result", func() {
				Expect(result.Scanned).To(Equal(0))
				Expect(result.Records).To(BeEmpty())
			})
		})
	})

	Describe("GetReceipt", func() {
		BeforeEach(func() {
			ledger.records = []Receipt{{File: "a.jpg", Store: "REWE"}}
		})

		It("should find a receipt by file", func() {
			r, err := service.GetReceipt("a.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Store).To(Equal("REWE"))
		})

		It("should return ErrNotFound for unknown files", func() {
			_, err := service.GetReceipt("b.jpg")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListReceipts", func() {
		It("should return the ledger in order", func() {
			ledger.records = []Receipt{{File: "b.jpg"}, {File: "a.jpg"}}
			Expect(service.ListReceipts()).To(HaveLen(2))
			Expect(service.ListReceipts()[0].File).To(Equal("b.jpg"))
		})
	})
})
