package sheet

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/srikanth-vn81/obid/internal/orderbook/pipeline"
	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

func workbook(t *testing.T, sheet string, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		f.SetSheetName("Sheet1", sheet)
	}
	for i, row := range rows {
		r := row
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestReadXLSXTypesAndHeaders(t *testing.T) {
	buf := workbook(t, "Sheet1", [][]interface{}{
		{},
		{"VPO No", "", "Qty", "Qty", " Season "},
		{"8001234567", nil, 5, 2.5, 2023},
		{},
		{"D1234567XXX", "x", -1, true, "SS23"},
	})

	tb, err := ReadXLSX(buf, "")
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	wantCols := []string{"VPO No", "Unnamed: 1", "Qty", "Qty.1", "Season"}
	if got := tb.Columns(); !reflect.DeepEqual(got, wantCols) {
		t.Fatalf("Expected %v, got %v", wantCols, got)
	}
	if tb.Len() != 2 {
		t.Fatalf("Expected 2 rows (blank rows skipped), got %d", tb.Len())
	}

	checks := []struct {
		row  int
		col  string
		want table.Value
	}{
		{0, "VPO No", table.String("8001234567")},
		{0, "Unnamed: 1", table.Null()},
		{0, "Qty", table.Int(5)},
		{0, "Season", table.Int(2023)},
		{1, "Qty", table.Int(-1)},
		{1, "Qty.1", table.Bool(true)},
		{1, "Season", table.String("SS23")},
	}
	for _, c := range checks {
		if got := tb.Value(c.row, c.col); !got.Equal(c.want) {
			t.Errorf("row %d %s: expected %v (%s), got %v (%s)", c.row, c.col, c.want, c.want.Kind(), got, got.Kind())
		}
	}
	if got := tb.Value(0, "Qty.1").Text(); got != "2.5" {
		t.Errorf("Expected 2.5, got %s", got)
	}
}

func TestReadXLSXDateCellKeepsFormattedText(t *testing.T) {
	buf := workbook(t, "Sheet1", [][]interface{}{
		{"Ship Date"},
		{time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)},
	})
	tb, err := ReadXLSX(buf, "")
	if err != nil {
		t.Fatal(err)
	}
	v := tb.Value(0, "Ship Date")
	if !v.IsString() {
		t.Errorf("Expected formatted date text, got %v (%s)", v, v.Kind())
	}
}

func TestReadXLSXNumberFormats(t *testing.T) {
	custom := func(code string) *excelize.Style { return &excelize.Style{CustomNumFmt: &code} }
	cases := []struct {
		name   string
		style  *excelize.Style
		number bool
	}{
		{"thousands", &excelize.Style{NumFmt: 3}, true},
		{"accounting", &excelize.Style{NumFmt: 44}, true},
		{"currency", &excelize.Style{NumFmt: 7}, true},
		{"custom unit", custom(`0 "pcs"`), true},
		{"custom dollar", custom(`"$"0`), true},
		{"custom quoted letters", custom(`0 "days"`), true},
		{"builtin date", &excelize.Style{NumFmt: 14}, false},
		{"custom date", custom("yyyy-mm-dd"), false},
		{"elapsed hours", custom("[h]:mm"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := excelize.NewFile()
			defer f.Close()
			row := []interface{}{"8001234567", "SS24", "BELUNIQLO", 5, "AB12345678"}
			f.SetSheetRow("Sheet1", "A1", &[]interface{}{"VPO No", "Season", "Group Tech Class", "CO Qty", "Cust Style No"})
			f.SetSheetRow("Sheet1", "A2", &row)
			id, err := f.NewStyle(c.style)
			if err != nil {
				t.Fatalf("NewStyle: %v", err)
			}
			if err := f.SetCellStyle("Sheet1", "D2", "D2", id); err != nil {
				t.Fatalf("SetCellStyle: %v", err)
			}
			var buf bytes.Buffer
			if err := f.Write(&buf); err != nil {
				t.Fatal(err)
			}

			tb, err := ReadXLSX(&buf, "")
			if err != nil {
				t.Fatalf("ReadXLSX: %v", err)
			}
			v := tb.Value(0, "CO Qty")
			if !c.number {
				if !v.IsString() {
					t.Errorf("Expected formatted text, got %v (%s)", v, v.Kind())
				}
				return
			}
			if !v.Equal(table.Int(5)) {
				t.Fatalf("Expected number 5, got %v (%s)", v, v.Kind())
			}

			styles := table.New("Style", "Master Item")
			plans := table.New("PO Order NO", "Production Plan ID")
			out, err := pipeline.Process(tb, plans, styles)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if out.Len() != 1 {
				t.Errorf("Expected the row to survive the quantity filter, got %d rows", out.Len())
			}
		})
	}
}

func TestIsDateFormat(t *testing.T) {
	cases := []struct {
		id   int
		code string
		want bool
	}{
		{0, "", false},
		{3, "", false},
		{14, "", true},
		{22, "", true},
		{44, "", false},
		{46, "", true},
		{164, `0 "pcs"`, false},
		{164, `#,##0 "units";[Red]-#,##0`, false},
		{164, `0\h`, false},
		{164, `[$-409]0.00`, false},
		{164, "General", false},
		{164, "d-mmm-yy", true},
		{164, "hh:mm AM/PM", true},
		{164, "[ss]", true},
	}
	for _, c := range cases {
		if got := isDateFormat(c.id, c.code); got != c.want {
			t.Errorf("isDateFormat(%d, %q): expected %v, got %v", c.id, c.code, c.want, got)
		}
	}
}

func TestReadXLSXSheetSelection(t *testing.T) {
	buf := workbook(t, "Orders", [][]interface{}{{"A"}, {"x"}})
	data := buf.Bytes()

	if _, err := ReadXLSX(bytes.NewReader(data), "Sheet1"); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("Expected ErrSheetNotFound, got %v", err)
	}
	tb, err := ReadXLSX(bytes.NewReader(data), "Orders")
	if err != nil {
		t.Fatal(err)
	}
	if tb.Value(0, "A").Text() != "x" {
		t.Errorf("unexpected value %v", tb.Value(0, "A"))
	}
}

func TestReadXLSXEmpty(t *testing.T) {
	buf := workbook(t, "Sheet1", nil)
	if _, err := ReadXLSX(buf, ""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
}

func TestReadCSVInference(t *testing.T) {
	in := "\xEF\xBB\xBFPO Order NO,Production Plan ID,Mixed,\n" +
		" 8001234567 ,1001,5,\n" +
		",,,\n" +
		"D12,,abc,\n" +
		"8000000001,1003.5,7,\n"

	tb, err := ReadCSV(strings.NewReader(in), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	wantCols := []string{"PO Order NO", "Production Plan ID", "Mixed", "Unnamed: 3"}
	if got := tb.Columns(); !reflect.DeepEqual(got, wantCols) {
		t.Fatalf("Expected %v, got %v", wantCols, got)
	}
	if tb.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", tb.Len())
	}
	// "D12" makes the key column textual, raw text kept
	if got := tb.Value(0, "PO Order NO"); !got.Equal(table.String(" 8001234567 ")) {
		t.Errorf("Expected raw string key, got %v (%s)", got, got.Kind())
	}
	if got := tb.Value(0, "Production Plan ID"); !got.Equal(table.Int(1001)) {
		t.Errorf("Expected numeric 1001, got %v (%s)", got, got.Kind())
	}
	if got := tb.Value(1, "Production Plan ID"); !got.IsNull() {
		t.Errorf("Expected null, got %v", got)
	}
	if got := tb.Value(0, "Mixed"); !got.IsString() {
		t.Errorf("mixed column should be textual, got %s", got.Kind())
	}
	if got := tb.Value(2, "Unnamed: 3"); !got.IsNull() {
		t.Errorf("Expected null, got %v", got)
	}
}

func TestReadCSVEncoding(t *testing.T) {
	enc, err := htmlindex.Get("shift_jis")
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := enc.NewEncoder().String("Style,Master Item\nAB,品番\n")
	if err != nil {
		t.Fatal(err)
	}

	tb, err := ReadCSV(strings.NewReader(encoded), "shift_jis")
	if err != nil {
		t.Fatal(err)
	}
	if got := tb.Value(0, "Master Item").Text(); got != "品番" {
		t.Errorf("Expected 品番, got %q", got)
	}

	if _, err := ReadCSV(strings.NewReader("a\n1\n"), "no-such-charset"); err == nil {
		t.Error("expected unknown encoding error")
	}
}

func TestReadDispatch(t *testing.T) {
	if _, err := Read("plan.txt", strings.NewReader("a"), Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	tb, err := Read("PLAN.CSV", strings.NewReader("a\n1\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !tb.Value(0, "a").Equal(table.Int(1)) {
		t.Errorf("unexpected value %v", tb.Value(0, "a"))
	}
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	src := table.New("PO", "Production Plan ID", "CO Qty", "Product", "Big")
	src.AppendRow(table.String("80012345"), table.String("80012345"), table.Int(5), table.Null(), table.Int(1234567890123456789))
	src.AppendRow(table.String("P1234567"), table.Null(), table.Int(0), table.String("WIDGET"), table.Int(1))

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, src, ""); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	got, err := ReadXLSX(&buf, DefaultSheet)
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if !reflect.DeepEqual(got.Columns(), src.Columns()) {
		t.Fatalf("Expected %v, got %v", src.Columns(), got.Columns())
	}
	if got.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", got.Len())
	}
	if v := got.Value(0, "PO"); !v.Equal(table.String("80012345")) {
		t.Errorf("PO should stay text, got %v (%s)", v, v.Kind())
	}
	if v := got.Value(0, "CO Qty"); !v.Equal(table.Int(5)) {
		t.Errorf("Expected 5, got %v", v)
	}
	if v := got.Value(0, "Product"); !v.IsNull() {
		t.Errorf("Expected null, got %v", v)
	}
	if v := got.Value(0, "Big").Text(); v != "1234567890123456789" {
		t.Errorf("long integer lost precision: %s", v)
	}
	if v := got.Value(1, "Production Plan ID"); !v.IsNull() {
		t.Errorf("Expected null, got %v", v)
	}
}
