package recognizer

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/johbar/ocr-service/internal/cache"
)

func newTestRouter(r *Recognizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	r.RegisterRoutes(router)
	return router
}

func TestRecognizeBodyFromCache(t *testing.T) {
	c := cache.NewMemoryCache()
	r := newTestRecognizer(t, c)
	data := []byte("cached image")
	seedCache(t, r, c, data, Options{Format: FormatTSV}, Result{Text: "level\tpage_num", Format: FormatTSV, MeanConfidence: 77})
	router := newTestRouter(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/?format=tsv", bytes.NewReader(data))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body)
	}
	if w.Body.String() != "level\tpage_num" {
		t.Errorf("got %q", w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/tab-separated-values; charset=utf-8" {
		t.Errorf("got content type %q", ct)
	}
	if w.Header().Get("X-Ocr-Cached") != "true" || w.Header().Get("X-Ocr-Meanconfidence") != "77" {
		t.Errorf("got headers %v", w.Header())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/?format=tsv", bytes.NewReader(data))
	req.Header.Set("Accept", "application/json")
	router.ServeHTTP(w, req)
	var res Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Cached || res.MeanConfidence != 77 || res.Format != FormatTSV {
		t.Errorf("got %+v", res)
	}
}

func TestRecognizeBodyErrors(t *testing.T) {
	router := newTestRouter(newTestRecognizer(t, nil))
	tests := []struct {
		name   string
		target string
		body   []byte
		want   int
	}{
		{"bad format", "/?format=pdf", []byte("x"), http.StatusBadRequest},
		{"bad noCache", "/?noCache=maybe", []byte("x"), http.StatusBadRequest},
		{"unknown language", "/?langs=klingon", []byte("x"), http.StatusBadRequest},
		{"text", "/", []byte("plain text"), http.StatusUnsupportedMediaType},
		{"too large", "/", make([]byte, 2<<20), http.StatusRequestEntityTooLarge},
		{"too many pixels", "/", hugePNG(t, 50_000, 50_000), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("got %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestListLanguages(t *testing.T) {
	router := newTestRouter(newTestRecognizer(t, nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages", nil))
	var body struct {
		Default   string   `json:"default"`
		Available []string `json:"available"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Default != "eng" || len(body.Available) != 2 {
		t.Errorf("got %+v", body)
	}
}

func TestRecognizeBody(t *testing.T) {
	router := newTestRouter(newRealRecognizer(t, nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/?format=hocr", bytes.NewReader(renderPNG(t, "HELLO"))))
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("ocr_page")) {
		t.Errorf("got %s", w.Body)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("tesseract")) {
		t.Errorf("got %d: %s", w.Code, w.Body)
	}
}
