package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds a single websocket frame write.
const writeTimeout = 5 * time.Second

// errObserverDropped ends a stream whose observer was disconnected by the bus.
var errObserverDropped = errors.New("observer fell behind")

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleStreamWS upgrades to a push-only websocket. Messages from the client
// are discarded.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := conn.CloseRead(r.Context())
	_, messages := s.Monitor.Subscribe(ctx)
	err = streamMessages(ctx, messages, conn)
	switch {
	case errors.Is(err, errObserverDropped):
		_ = conn.Close(websocket.StatusTryAgainLater, err.Error())
	case err != nil && ctx.Err() == nil:
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	default:
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}
}

func streamMessages(ctx context.Context, messages <-chan []byte, writer wsWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errObserverDropped
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := writer.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// handleStreamSSE is the server-sent events rendition of the live stream for
// clients that cannot open a websocket.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errNotFound("streaming support"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = w.Write([]byte(":ok\n\n"))
	flusher.Flush()

	ctx := r.Context()
	_, messages := s.Monitor.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-messages:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
