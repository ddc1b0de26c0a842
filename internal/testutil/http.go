package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
)

// handlerTransport answers client requests by calling a handler directly.
type handlerTransport struct {
	handler http.Handler
}

func (rt *handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	rt.handler.ServeHTTP(rec, req)
	res := rec.Result()
	res.Request = req
	return res, nil
}

// NewInProcessClient returns a client whose requests never leave the process.
// Streaming endpoints need StreamRecorder instead, since the recorder buffers
// the whole response.
func NewInProcessClient(handler http.Handler) *http.Client {
	return &http.Client{Transport: &handlerTransport{handler: handler}}
}

// StreamRecorder is a ResponseWriter whose body can be read while the
// handler is still writing.
type StreamRecorder struct {
	HeaderMap http.Header
	Code      int
	Body      io.ReadCloser
	writer    io.WriteCloser
}

func NewStreamRecorder() *StreamRecorder {
	r, w := io.Pipe()
	return &StreamRecorder{
		HeaderMap: make(http.Header),
		Code:      http.StatusOK,
		Body:      r,
		writer:    w,
	}
}

func (sr *StreamRecorder) Header() http.Header { return sr.HeaderMap }

func (sr *StreamRecorder) WriteHeader(statusCode int) { sr.Code = statusCode }

func (sr *StreamRecorder) Write(p []byte) (int, error) { return sr.writer.Write(p) }

func (sr *StreamRecorder) Flush() {}

// Close ends the body stream; readers see io.EOF.
func (sr *StreamRecorder) Close() error { return sr.writer.Close() }

func NewRequest(method, path string, body []byte) *http.Request {
	return httptest.NewRequest(method, "http://in-process"+path, bytes.NewReader(body))
}
