package pipeline

import "net/http"

// responseWriter wraps http.ResponseWriter to capture the status code and
// whether anything has been committed to the client yet. The error
// envelope may only be written while the response is uncommitted.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush passes through to the underlying writer when it supports it, so
// streamed upstream bodies are not held back by the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the committed status code, or 200 if none was set.
func (rw *responseWriter) Status() int {
	return rw.statusCode
}

// Committed reports whether headers have been sent.
func (rw *responseWriter) Committed() bool {
	return rw.written
}
