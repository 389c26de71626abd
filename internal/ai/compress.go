package ai

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
)

// gzipBytes compresses a request payload.
func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	return buf.Bytes(), nil
}

// compressRequest replaces req's body with its gzip encoding and sets
// Content-Encoding. Requests without a body, or already encoded, are left
// alone.
func compressRequest(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.Header.Get("Content-Encoding") != "" {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	zipped, err := gzipBytes(raw)
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(zipped))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(zipped)), nil
	}
	req.ContentLength = int64(len(zipped))
	req.Header.Set("Content-Encoding", "gzip")
	return nil
}

// gzipTransport compresses request bodies before handing them to base.
type gzipTransport struct {
	base http.RoundTripper
}

func (t *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	if err := compressRequest(clone); err != nil {
		return nil, err
	}
	return base.RoundTrip(clone)
}
