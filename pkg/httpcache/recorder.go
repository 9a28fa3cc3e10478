package httpcache

import (
	"bytes"
	"net/http"
)

// recorder is an http.ResponseWriter that buffers the downstream
// response instead of writing it through. The middleware flushes the
// buffered response to the client after the handler returns, which is
// what allows it to attach ETag and cache headers computed from the
// final body. It deliberately does not implement http.Flusher: the
// complete body is required before anything reaches the client.
type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *recorder {
	return &recorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(statusCode int) {
	r.status = statusCode
}

func (r *recorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

// statusWriter passes everything through to the underlying writer and
// only remembers the status code. Used on mutating requests, where the
// body is irrelevant and buffering would be wasted work.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards streaming flushes to the underlying writer when it
// supports them, so a streaming handler on the write path keeps working.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
