package sheet

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

// DefaultSheet 输出工作表名
const DefaultSheet = "Sheet1"

const (
	minColWidth = 8
	maxColWidth = 50
)

// RenderXLSX 将表格渲染为 xlsx 工作簿；调用方负责 Close
func RenderXLSX(t *table.Table, sheet string) (*excelize.File, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			f.Close()
			return nil, err
		}
	}

	// 表头样式: 加粗
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	columns := t.Columns()
	widths := make([]int, len(columns))
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
		widths[i] = utf8.RuneCountInString(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	for r, rec := range t.Records(-1) {
		for i, v := range rec {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); v != nil && n > widths[i] {
				widths[i] = n
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &rec); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	// 列宽自适应
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, float64(clampWidth(w+2))); err != nil {
			f.Close()
			return nil, fmt.Errorf("set width of column %s: %w", col, err)
		}
	}
	return f, nil
}

// WriteXLSX 渲染并写出 xlsx
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	f, err := RenderXLSX(t, sheet)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func clampWidth(w int) int {
	if w < minColWidth {
		return minColWidth
	}
	if w > maxColWidth {
		return maxColWidth
	}
	return w
}
