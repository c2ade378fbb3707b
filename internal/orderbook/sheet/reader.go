// Package sheet converts uploaded spreadsheets to tables and back.
package sheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrEmpty             = errors.New("no header row")
)

// ReadError 上传文件无法解析
type ReadError struct {
	Input string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Input, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Options 读取选项
type Options struct {
	// Sheet is the xlsx sheet to read; empty means the first sheet.
	Sheet string
	// Encoding is the CSV charset (an IANA/WHATWG label); empty means UTF-8.
	Encoding string
}

// Read 根据扩展名选择 xlsx 或 csv 读取器
func Read(filename string, r io.Reader, opts Options) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, opts.Sheet)
	case ".csv":
		return ReadCSV(r, opts.Encoding)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ReadXLSX 读取工作表。首个非空行为表头。
func ReadXLSX(r io.Reader, sheet string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, sheet, strings.Join(f.GetSheetList(), ", "))
	}

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read raw rows: %w", err)
	}

	headerRow := -1
	for i, row := range formatted {
		if !blank(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, ErrEmpty
	}

	width := 0
	for _, row := range formatted[headerRow:] {
		if len(row) > width {
			width = len(row)
		}
	}
	t := table.New(headerNames(formatted[headerRow], width)...)
	dates := dateStyles{f: f}

	for i := headerRow + 1; i < len(formatted); i++ {
		row := formatted[i]
		if blank(row) {
			continue
		}
		vals := make([]table.Value, width)
		for c := 0; c < width; c++ {
			text := cellAt(row, c)
			rawText := text
			if i < len(raw) {
				rawText = cellAt(raw[i], c)
			}
			if text == "" && rawText == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, i+1)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", axis, err)
			}
			isDate := false
			if numericCellType(typ) {
				if isDate, err = dates.isDate(sheet, axis); err != nil {
					return nil, fmt.Errorf("cell %s: %w", axis, err)
				}
			}
			vals[c] = xlsxValue(typ, rawText, text, isDate)
		}
		if err := t.AppendRow(vals...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// xlsxValue types a cell from its excelize type. Numeric cells keep their
// raw value whatever the display format, except dates and times, which keep
// the formatted text.
func xlsxValue(typ excelize.CellType, raw, formatted string, isDate bool) table.Value {
	switch typ {
	case excelize.CellTypeBool:
		return table.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return table.String(formatted)
	case excelize.CellTypeError:
		return table.Null()
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula:
		if isDate {
			return table.String(formatted)
		}
		if v, ok := table.ParseNumber(raw); ok {
			return v
		}
		return table.String(formatted)
	default:
		return table.String(formatted)
	}
}

func numericCellType(typ excelize.CellType) bool {
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula:
		return true
	}
	return false
}

// 自定义数字格式 id 从 164 开始
const customNumFmtStart = 164

// dateStyles 缓存样式索引是否为日期/时间格式
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func (d *dateStyles) isDate(sheet, axis string) (bool, error) {
	idx, err := d.f.GetCellStyle(sheet, axis)
	if err != nil {
		return false, err
	}
	if idx == 0 {
		return false, nil
	}
	if v, ok := d.cache[idx]; ok {
		return v, nil
	}
	style, err := d.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	code := ""
	if style.CustomNumFmt != nil {
		code = *style.CustomNumFmt
	}
	v := isDateFormat(style.NumFmt, code)
	if d.cache == nil {
		d.cache = make(map[int]bool)
	}
	d.cache[idx] = v
	return v, nil
}

// isDateFormat reports whether a number format displays a date or time.
// Built-in ids 14-22 and 45-47 are dates, as are the CJK locale ids 27-36
// and 50-58. A custom code is a date when it has y/m/d/h/s tokens outside
// quoted literals, escapes and bracketed sections other than elapsed time.
// Ids below 164 are built-in and decided by id alone.
func isDateFormat(id int, code string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 45 && id <= 47,
		id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	case id > 0 && id < customNumFmtStart:
		return false
	}

	r := []rune(code)
	for i := 0; i < len(r); i++ {
		switch c := r[i]; c {
		case '"':
			for i++; i < len(r) && r[i] != '"'; i++ {
			}
		case '\\', '_', '*':
			i++
		case '[':
			end := i + 1
			for end < len(r) && r[end] != ']' {
				end++
			}
			if elapsed(string(r[i+1 : end])) {
				return true
			}
			i = end
		default:
			switch unicode.ToLower(c) {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

// elapsed matches [h], [mm], [ss] style duration sections.
func elapsed(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if c != 'h' && c != 'm' && c != 's' {
			return false
		}
	}
	return true
}

// ReadCSV 读取 CSV；可选字符集解码，跳过 UTF-8 BOM
func ReadCSV(r io.Reader, encoding string) (*table.Table, error) {
	if encoding != "" && !strings.EqualFold(encoding, "utf-8") && !strings.EqualFold(encoding, "utf8") {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := csv.NewReader(SkipBOM(r))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	width := len(header)
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		if len(rec) > width {
			width = len(rec)
		}
		records = append(records, rec)
	}

	numeric := make([]bool, width)
	for c := range numeric {
		numeric[c] = numericColumn(records, c)
	}

	t := table.New(headerNames(header, width)...)
	for _, rec := range records {
		vals := make([]table.Value, width)
		for c := range vals {
			text := cellAt(rec, c)
			switch {
			case strings.TrimSpace(text) == "":
				vals[c] = table.Null()
			case numeric[c]:
				vals[c], _ = table.ParseNumber(text)
			default:
				vals[c] = table.String(text)
			}
		}
		if err := t.AppendRow(vals...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// numericColumn reports whether every non-empty cell of column c is a number.
// A column with no values is not numeric.
func numericColumn(records [][]string, c int) bool {
	seen := false
	for _, rec := range records {
		text := cellAt(rec, c)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, ok := table.ParseNumber(text); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// SkipBOM 跳过 UTF-8 BOM
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if peeked, err := br.Peek(3); err == nil && peeked[0] == 0xEF && peeked[1] == 0xBB && peeked[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

// headerNames trims header cells, names blank ones "Unnamed: <i>" and
// suffixes repeats with ".1", ".2", ...
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := strings.TrimSpace(cellAt(header, i))
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for {
			if _, dup := seen[name]; !dup {
				break
			}
			seen[base]++
			name = base + "." + strconv.Itoa(seen[base])
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
