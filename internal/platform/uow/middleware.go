package uow

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/semsearch/semsearch/internal/platform/httpx"
)

// bufferedWriter holds the response until the transaction outcome is known.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
	err         error
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// RecordError implements httpx.ErrorRecorder.
func (w *bufferedWriter) RecordError(err error) {
	if w.err == nil {
		w.err = err
	}
}

// outcome converts the handler result into the error handed to Do.
func (w *bufferedWriter) outcome() error {
	if w.err != nil {
		return w.err
	}
	if w.status >= http.StatusBadRequest {
		return ErrAborted
	}
	return nil
}

func (w *bufferedWriter) failed() bool {
	return w.err != nil || w.status >= http.StatusBadRequest
}

func (w *bufferedWriter) flushTo(dst http.ResponseWriter) {
	h := dst.Header()
	for k, v := range w.header {
		h[k] = v
	}
	dst.WriteHeader(w.status)
	_, _ = dst.Write(w.body.Bytes())
}

// Middleware runs the rest of the chain inside one Scope. attach lets the
// caller bind request-scoped values to the context. The response reaches
// the client only after the transaction committed, or after a rollback the
// handler itself asked for by responding with an error.
func (m *Manager) Middleware(attach func(ctx context.Context, s *Scope) context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := newBufferedWriter()
			err := m.Do(r.Context(), func(ctx context.Context, s *Scope) error {
				if attach != nil {
					ctx = attach(ctx, s)
				}
				next.ServeHTTP(buf, r.WithContext(ctx))
				return buf.outcome()
			})
			if err != nil && !buf.failed() {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				httpx.RespondError(w, err)
				return
			}
			buf.flushTo(w)
		})
	}
}
