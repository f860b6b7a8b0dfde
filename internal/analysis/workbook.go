package analysis

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// WorkbookFile is the processed-table workbook written next to the charts.
const WorkbookFile = "processed_tables.xlsx"

// maxSheetName is the sheet name length limit imposed by Excel.
const maxSheetName = 31

// Sheet is one table exported to a workbook.
type Sheet struct {
	Name  string
	Table dataframe.DataFrame
}

// ExportWorkbook writes each non-empty table to its own sheet with a bold,
// frozen header row. Missing cells are left blank.
func ExportWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	written := 0
	for _, sh := range sheets {
		if tabular.IsEmpty(sh.Table) {
			continue
		}
		name := sheetName(sh.Name)
		if written == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, sh.Table, header); err != nil {
			return err
		}
		written++
	}
	if written == 0 {
		if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"no data"}); err != nil {
			return fmt.Errorf("write placeholder: %w", err)
		}
	}
	if err := utils.EnsureDirs(filepath.Dir(path)); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, df dataframe.DataFrame, headerStyle int) error {
	names := df.Names()
	head := make([]interface{}, len(names))
	for i, n := range names {
		head[i] = n
	}
	if err := f.SetSheetRow(name, "A1", &head); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(names), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header %s: %w", name, err)
	}
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]interface{}, len(cols))
		for c, s := range cols {
			row[c] = cellValue(s, r)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", r+1, name, err)
		}
	}
	return f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func cellValue(s series.Series, i int) interface{} {
	el := s.Elem(i)
	if el.IsNA() {
		return nil
	}
	switch s.Type() {
	case series.Float:
		v := el.Float()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case series.Int:
		if v, err := el.Int(); err == nil {
			return v
		}
	}
	return el.String()
}

func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		s = "data"
	}
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}

// ReadWorkbook loads one sheet of an .xlsx file. An empty sheet name selects
// the sheet at index (1-based), defaulting to the first.
func ReadWorkbook(path, sheet string, index int) (dataframe.DataFrame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return tabular.Empty(), fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	list := f.GetSheetList()
	target := ""
	if sheet != "" {
		for _, s := range list {
			if strings.EqualFold(s, sheet) {
				target = s
				break
			}
		}
		if target == "" {
			return tabular.Empty(), fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheet, filepath.Base(path), strings.Join(list, ", "))
		}
	} else {
		if index <= 0 {
			index = 1
		}
		if index > len(list) {
			return tabular.Empty(), fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", index, len(list))
		}
		target = list[index-1]
	}
	rows, err := f.GetRows(target)
	if err != nil {
		return tabular.Empty(), fmt.Errorf("read sheet %s: %w", target, err)
	}
	return tabular.FromRecords(rows)
}

// LoadTable reads a .csv, .tsv or .xlsx file into a table.
func LoadTable(path, sheet string, index int) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadWorkbook(path, sheet, index)
	case ".csv", ".tsv":
		return tabular.ReadCSVFile(path)
	}
	return tabular.Empty(), fmt.Errorf("unsupported table format %q (want .csv, .tsv or .xlsx)", filepath.Ext(path))
}
