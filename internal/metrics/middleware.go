package metrics

import (
	"net/http"
	"regexp"
	"time"
)

// numericSegment matches numeric path segments such as connection or operator ids.
var numericSegment = regexp.MustCompile(`/(\d+)`)

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader captures the status code and writes it to the underlying ResponseWriter
func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called before writing body
func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request count and latency for the operational API.
// A panicking handler is recorded as a 500 and does not propagate.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		startTime := time.Now()

		defer func() {
			if err := recover(); err != nil {
				if !recorder.written {
					recorder.WriteHeader(http.StatusInternalServerError)
				}
				recorder.statusCode = http.StatusInternalServerError
			}

			statusStr := http.StatusText(recorder.statusCode)
			if statusStr == "" {
				statusStr = "UNKNOWN"
			}
			path := normalizePath(r.URL.Path)
			RecordRequest(r.Method, path, statusStr)
			RecordRequestDuration(r.Method, path, statusStr, time.Since(startTime).Seconds())
		}()

		next.ServeHTTP(recorder, r)
	})
}

// normalizePath replaces numeric segments with ":id" to bound label cardinality.
//
//	/api/operators/12/connections -> /api/operators/:id/connections
func normalizePath(path string) string {
	return numericSegment.ReplaceAllString(path, "/:id")
}
