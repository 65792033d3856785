package server

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zeebo/xxh3"

	"github.com/vegasq/parslice/internal/metrics"
	"github.com/vegasq/parslice/internal/pipeline"
)

// ContentTypeParquet is the media type of subset results.
const ContentTypeParquet = "application/vnd.apache.parquet"

// Response headers carrying run statistics.
const (
	HeaderRowsScanned = "X-Rows-Scanned"
	HeaderRowsWritten = "X-Rows-Written"
)

// ResolvePath maps a request path to a file beneath root. It rejects empty
// paths and paths with a ".." segment.
func ResolvePath(root, requestPath string) (string, bool) {
	rel := strings.TrimPrefix(requestPath, "/")
	if rel == "" {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", false
		}
	}

	full := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, full)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// Params flattens a query string, keeping the first value of each key.
func Params(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			params[key] = vs[0]
		}
	}
	return params
}

// ETag returns the entity tag of a response body.
func ETag(body []byte) string {
	return fmt.Sprintf("%q", strconv.FormatUint(xxh3.Hash(body), 16))
}

func (s *Server) handleSubset(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		writeError(c, KindMethodNotAllowed, fmt.Sprintf("method %s not allowed", c.Request.Method))
		return
	}

	path, ok := ResolvePath(s.root, c.Request.URL.Path)
	if !ok {
		writeError(c, KindBadPath, fmt.Sprintf("invalid path %q", c.Request.URL.Path))
		return
	}

	ctx := c.Request.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		fail(c, fmt.Errorf("%w: %w", pipeline.ErrCanceled, err))
		return
	}
	defer s.sem.Release(1)

	metrics.InFlight.Inc()
	res, err := s.pipeline.Run(ctx, path, Params(c.Request.URL.Query()))
	metrics.InFlight.Dec()
	if err != nil {
		metrics.ObserveFailure(pipeline.Kind(err))
		fail(c, err)
		return
	}
	metrics.ObserveRun(res.Stats.Duration.Seconds(), res.Stats.RowsScanned, res.Stats.RowsWritten, len(res.Data))

	etag := ETag(res.Data)
	c.Header("ETag", etag)
	c.Header(HeaderRowsScanned, strconv.FormatInt(res.Stats.RowsScanned, 10))
	c.Header(HeaderRowsWritten, strconv.FormatInt(res.Stats.RowsWritten, 10))
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, ContentTypeParquet, res.Data)
}
