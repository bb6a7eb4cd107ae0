package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
)

// CSVCodec reads and writes ledgers as comma-separated text with a header row.
type CSVCodec struct{}

// Decode parses a CSV ledger. An input with no header is an empty ledger.
func (CSVCodec) Decode(r io.Reader) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return []domain.Transaction{}, nil
	}
	return DecodeTable(records[0], records[1:])
}

// Encode writes txns with the canonical header.
func (CSVCodec) Encode(w io.Writer, txns []domain.Transaction) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(EncodeTable(txns)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func (CSVCodec) ContentType() string { return "text/csv" }

// CSVFile is a ledger stored in a single CSV file.
type CSVFile struct {
	path  string
	codec CSVCodec
}

// NewCSVFile returns a ledger backed by path. The file need not exist yet.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (f *CSVFile) Name() string { return "csv" }

// Load reads the whole file. A missing file is an empty ledger.
func (f *CSVFile) Load(_ context.Context) ([]domain.Transaction, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", f.path, err)
	}
	defer file.Close()

	txns, err := f.codec.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", f.path, err)
	}
	return txns, nil
}

// Save replaces the file atomically: the ledger is written to a sibling
// temp file which is then renamed over the original.
func (f *CSVFile) Save(_ context.Context, txns []domain.Transaction) error {
	return writeAtomic(f.path, func(w io.Writer) error {
		return f.codec.Encode(w, txns)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", path, err)
	}
	return nil
}
