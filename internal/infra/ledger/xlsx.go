package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/boddenberg/cashflowiq-go/internal/analytics"
	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Ledger"

// XLSXFile is a ledger stored in the first sheet of an Excel workbook.
type XLSXFile struct {
	path string
}

// NewXLSXFile returns a ledger backed by the workbook at path.
func NewXLSXFile(path string) *XLSXFile {
	return &XLSXFile{path: path}
}

func (f *XLSXFile) Name() string { return "xlsx" }

// Load reads the first sheet. Date cells stored as Excel serial numbers
// are converted to calendar days. A missing workbook is an empty ledger.
func (f *XLSXFile) Load(_ context.Context) ([]domain.Transaction, error) {
	xl, err := excelize.OpenFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", f.path, err)
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", f.path, err)
	}
	if len(rows) == 0 {
		return []domain.Transaction{}, nil
	}

	header, data := rows[0], rows[1:]
	if col, ok := analytics.ColumnIndex(header)["date"]; ok {
		for _, row := range data {
			if col < len(row) {
				row[col] = excelDate(row[col])
			}
		}
	}
	return DecodeTable(header, data)
}

// Save rewrites the workbook with a single ledger sheet.
func (f *XLSXFile) Save(_ context.Context, txns []domain.Transaction) error {
	xl := excelize.NewFile()
	defer xl.Close()

	if err := xl.SetSheetName(xl.GetSheetName(0), xlsxSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, row := range EncodeTable(txns) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if i > 0 {
			// amounts are numeric cells so spreadsheets can sum them
			cells[1] = txns[i-1].Amount.InexactFloat64()
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(xlsxSheet, addr, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := xl.SaveAs(f.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", f.path, err)
	}
	return nil
}

// excelDate turns an Excel serial day number into YYYY-MM-DD and leaves
// any other text untouched.
func excelDate(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return domain.DateOf(t).String()
}
