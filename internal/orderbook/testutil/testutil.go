package testutil

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/srikanth-vn81/obid/internal/config"
	"github.com/srikanth-vn81/obid/internal/metrics"
	"github.com/srikanth-vn81/obid/internal/orderbook/repository"
	"github.com/srikanth-vn81/obid/internal/orderbook/service"
)

const JWTSecret = "obid-test-secret"

// File is one multipart upload.
type File struct {
	Name string
	Data []byte
}

// Config returns the configuration the tests run with.
func Config() *config.Config {
	return &config.Config{
		Ingest: config.IngestConfig{
			OrderSheet:     "Sheet1",
			CSVEncoding:    "utf-8",
			MaxUploadMB:    4,
			PreviewRows:    10,
			OutputFilename: "pid_final.xlsx",
			OutputSheet:    "Sheet1",
		},
		ResultStore: config.ResultStoreConfig{Driver: "memory", TTL: time.Minute},
	}
}

// NewService builds a RunService over an in-memory store.
func NewService(t *testing.T) (*service.RunService, *repository.MemoryResultStore) {
	t.Helper()
	store := repository.NewMemoryResultStore()
	return service.NewRunService(store, Config(), metrics.NewRegistry(), zap.NewNop()), store
}

// SetupRouter returns a gin engine in test mode.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// XLSX builds a single-sheet workbook.
func XLSX(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("SetSheetName: %v", err)
		}
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
	return buf.Bytes()
}

// CSV encodes records as CSV.
func CSV(t *testing.T, records [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return buf.Bytes()
}

// SampleUploads returns an order book, plan CSV and style mapping covering
// the main enrichment paths.
func SampleUploads(t *testing.T) map[string]File {
	t.Helper()
	orders := XLSX(t, "Sheet1", [][]interface{}{
		{"VPO No", "Season", "Group Tech Class", "CO Qty", "Cust Style No", ""},
		{"80012345XX", "2023", "BELUNIQLO", 5, "AB12345678CD", "junk"},
		{"D7654321XXX", "SS23", "BELUNIQLO", 3, "XY87654321", nil},
		{"D1111111XXX", "SS23", "BELUNIQLO", 2, "XY00000000", nil},
		{"8009999999", "2024", "OTHER", 9, "AB12345678", nil},
		{"8008888888", "2024", "BELUNIQLO", -1, "AB12345678", nil},
	})
	plans := CSV(t, [][]string{
		{"PO Order NO", "Production Plan ID", ""},
		{" P7654321 ", "PP-OLD", ""},
		{"P7654321", "PP-100", ""},
	})
	styles := XLSX(t, "Sheet1", [][]interface{}{
		{"Style", "Master Item"},
		{"12345678", "WIDGET"},
		{"87654321", "GADGET"},
	})
	return map[string]File{
		service.FieldOrders: {Name: "ob.xlsx", Data: orders},
		service.FieldPlans:  {Name: "spl.csv", Data: plans},
		service.FieldStyles: {Name: "style.xlsx", Data: styles},
	}
}

// Inputs wraps uploads as a RunInput.
func Inputs(files map[string]File) service.RunInput {
	up := func(field string) service.Upload {
		f := files[field]
		return service.Upload{Filename: f.Name, Size: int64(len(f.Data)), Reader: bytes.NewReader(f.Data)}
	}
	return service.RunInput{
		Orders: up(service.FieldOrders),
		Plans:  up(service.FieldPlans),
		Styles: up(service.FieldStyles),
	}
}

// DoMultipart sends files as a multipart form.
func DoMultipart(t *testing.T, router http.Handler, method, path string, files map[string]File, token string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(f.Data)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// DoRequest sends a request without a body.
func DoRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// GenerateToken signs an HS256 token for subject.
func GenerateToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"name": "Test User",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
