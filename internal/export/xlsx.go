package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// XLSX writes rows into a single-sheet workbook.
type XLSX struct {
	file *excelize.File
	row  int
}

// NewXLSX creates an empty workbook sink.
func NewXLSX() (*XLSX, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	return &XLSX{file: f}, nil
}

func (x *XLSX) AppendRow(cells []string) error {
	x.row++
	for i, cell := range cells {
		name, err := excelize.CoordinatesToCellName(i+1, x.row)
		if err != nil {
			return fmt.Errorf("cell %d of row %d: %w", i+1, x.row, err)
		}
		if err := x.file.SetCellValue(sheetName, name, cell); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func (x *XLSX) Finalize(path string) error {
	if err := x.file.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
