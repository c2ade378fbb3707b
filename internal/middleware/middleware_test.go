package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := newRouter()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(200, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if id := w.Header().Get("X-Request-ID"); id == "" || id != w.Body.String() {
		t.Errorf("generated id not propagated: header %q body %q", id, w.Body.String())
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("Expected caller id abc, got %q", w.Header().Get("X-Request-ID"))
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter()
	r.Use(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
		t.Error("Content-Disposition should be exposed")
	}
}

func TestMaxBodySize(t *testing.T) {
	r := newRouter()
	r.Use(MaxBodySize(4))
	r.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "s3cret"
	r := newRouter()
	r.Use(JWTAuth(secret, "obid"))
	r.GET("/", func(c *gin.Context) { c.String(200, c.GetString("user_id")) })

	now := time.Now()
	cases := []struct {
		name   string
		token  string
		query  bool
		status int
	}{
		{"missing", "", false, http.StatusUnauthorized},
		{"valid", sign(t, secret, jwt.MapClaims{"sub": "u1", "iss": "obid", "exp": now.Add(time.Hour).Unix()}), false, http.StatusOK},
		{"valid via query", sign(t, secret, jwt.MapClaims{"sub": "u1", "iss": "obid", "exp": now.Add(time.Hour).Unix()}), true, http.StatusOK},
		{"expired", sign(t, secret, jwt.MapClaims{"sub": "u1", "iss": "obid", "exp": now.Add(-time.Hour).Unix()}), false, http.StatusUnauthorized},
		{"wrong issuer", sign(t, secret, jwt.MapClaims{"sub": "u1", "iss": "other", "exp": now.Add(time.Hour).Unix()}), false, http.StatusUnauthorized},
		{"wrong secret", sign(t, "nope", jwt.MapClaims{"sub": "u1", "iss": "obid"}), false, http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := "/"
			if c.query {
				path += "?token=" + c.token
			}
			req := httptest.NewRequest("GET", path, nil)
			if c.token != "" && !c.query {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != c.status {
				t.Fatalf("Expected %d, got %d", c.status, w.Code)
			}
			if c.status == http.StatusOK && w.Body.String() != "u1" {
				t.Errorf("Expected user u1, got %q", w.Body.String())
			}
		})
	}
}

func TestLoggerLevelsByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(200) })
	r.GET("/bad", func(c *gin.Context) { c.Status(400) })
	r.GET("/boom", func(c *gin.Context) { c.Status(500) })

	for _, p := range []string{"/ok", "/bad", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 log entries, got %d", len(entries))
	}
	want := []string{"Request", "Client error", "Server error"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], e.Message)
		}
	}
}
