package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/parslice/internal/pipeline"
)

type object struct {
	Index int64   `parquet:"_hipscat_index"`
	RA    float64 `parquet:"RA"`
	DEC   float64 `parquet:"DEC"`
	MAG   float64 `parquet:"MAG"`
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Norder=0", "Dir=0")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	rows := make([]object, 100)
	for i := range rows {
		rows[i] = object{Index: int64(i), RA: float64(i), DEC: -float64(i), MAG: 15}
	}
	require.NoError(t, parquet.WriteFile(filepath.Join(dir, "Npix=0.parquet"), rows))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Options{
		Root:          root,
		MaxConcurrent: 4,
		Pipeline:      pipeline.New(pipeline.Options{Logger: log}),
		Logger:        log,
	})
	return s, root
}

func get(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func TestServer_Online(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)
	get(t, s, "/Norder=0/Dir=0/Npix=0.parquet")

	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parslice_http_requests_total")
	assert.Contains(t, rec.Body.String(), "parslice_rows_scanned_total")
}

func TestServer_Subset(t *testing.T) {
	s, _ := newTestServer(t)

	q := url.Values{}
	q.Set("filters", "RA>=30.0,DEC<=-10.0")
	q.Set("columns", "RA,DEC")
	rec := get(t, s, "/Norder=0/Dir=0/Npix=0.parquet?"+q.Encode())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ContentTypeParquet, rec.Header().Get("Content-Type"))
	assert.Equal(t, "100", rec.Header().Get(HeaderRowsScanned))
	assert.Equal(t, "70", rec.Header().Get(HeaderRowsWritten))
	assert.Equal(t, ETag(rec.Body.Bytes()), rec.Header().Get("ETag"))

	f, err := parquet.OpenFile(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	assert.EqualValues(t, 70, f.NumRows())

	var names []string
	for _, field := range f.Schema().Fields() {
		names = append(names, field.Name())
	}
	assert.Equal(t, []string{"RA", "DEC", "MAG"}, names)
}

func TestServer_NotModified(t *testing.T) {
	s, _ := newTestServer(t)
	target := "/Norder=0/Dir=0/Npix=0.parquet?columns=RA"

	first := get(t, s, target)
	require.Equal(t, http.StatusOK, first.Code)

	second := get(t, s, target, "If-None-Match", first.Header().Get("ETag"))
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.Bytes())
}

func TestServer_Errors(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Norder=0", "corrupt.parquet"), []byte("PAR1 truncated"), 0o644))

	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"missing file", "/Norder=9/Npix=1.parquet", http.StatusNotFound, pipeline.KindNotFound},
		{"directory", "/Norder=0", http.StatusInternalServerError, pipeline.KindIO},
		{"corrupt file", "/Norder=0/corrupt.parquet", http.StatusUnprocessableEntity, pipeline.KindSchema},
		{"malformed filter", "/Norder=0/Dir=0/Npix=0.parquet?filters=foo%40%40bar", http.StatusBadRequest, pipeline.KindParse},
		{"decimal literal on int", "/Norder=0/Dir=0/Npix=0.parquet?filters=_hipscat_index%3E1.5", http.StatusBadRequest, pipeline.KindLiteralType},
		{"traversal", "/Norder=0/../../etc/passwd", http.StatusBadRequest, KindBadPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target, HeaderRequestID, "req-123")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

			body := decodeError(t, rec)
			assert.Equal(t, tt.kind, body.Error)
			assert.Equal(t, "req-123", body.RequestID)
			assert.NotEmpty(t, body.Message)
			assert.NotContains(t, body.Message, "PAR1")
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/Norder=0/Dir=0/Npix=0.parquet", strings.NewReader("x"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, KindMethodNotAllowed, decodeError(t, rec).Error)
}

func TestServer_Canceled(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/Norder=0/Dir=0/Npix=0.parquet", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, pipeline.KindCanceled, decodeError(t, rec).Error)
}

func TestResolvePath(t *testing.T) {
	root := filepath.FromSlash("/storage2/splus")

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/Norder=3/Npix=1.parquet", filepath.Join(root, "Norder=3", "Npix=1.parquet"), true},
		{"/a//b.parquet", filepath.Join(root, "a", "b.parquet"), true},
		{"/", "", false},
		{"", "", false},
		{"/../etc/passwd", "", false},
		{"/a/../../b", "", false},
		{"/a/../b", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ResolvePath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams(t *testing.T) {
	values := url.Values{
		"columns": {"RA,DEC", "MAG"},
		"filters": {"RA>1"},
		"empty":   {},
	}
	assert.Equal(t, map[string]string{"columns": "RA,DEC", "filters": "RA>1"}, Params(values))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(pipeline.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(pipeline.KindIO))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(pipeline.KindSchema))
	assert.Equal(t, http.StatusBadRequest, StatusOf(pipeline.KindParse))
	assert.Equal(t, http.StatusBadRequest, StatusOf(pipeline.KindUnsupportedType))
	assert.Equal(t, http.StatusBadRequest, StatusOf(pipeline.KindLiteralType))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(pipeline.KindCanceled))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(pipeline.KindInternal))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(KindRateLimited))
}
