package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/session"
	"github.com/bryanwahyu/apr-reconciler/internal/logger"
)

const (
	progressWriteWait = 10 * time.Second
	progressPongWait  = 60 * time.Second
	progressPingEvery = (progressPongWait * 9) / 10
)

type progressEvent struct {
	Type      string                `json:"type"`
	SessionID string                `json:"sessionId"`
	State     review.State          `json:"state"`
	Progress  string                `json:"progress,omitempty"`
	Analyzing bool                  `json:"analyzing"`
	HasReport bool                  `json:"hasReport"`
	Error     *review.AnalysisError `json:"error,omitempty"`
}

func toProgressEvent(s session.Snapshot) progressEvent {
	return progressEvent{
		Type:      "progress",
		SessionID: s.ID,
		State:     s.State,
		Progress:  s.Progress,
		Analyzing: s.Analyzing,
		HasReport: s.HasReport,
		Error:     s.Error,
	}
}

func (r *Router) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			origin := req.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range r.opts.AllowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// GET /v1/sessions/{id}/progress
// Streams one progress event per session change until the client goes away.
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) {
	sess, err := r.session(req)
	if err != nil {
		r.wrap(func(http.ResponseWriter, *http.Request) error { return err })(w, req)
		return
	}
	log := logger.WithContext(req.Context()).With("session_id", sess.ID)

	conn, err := r.upgrader().Upgrade(w, req, nil)
	if err != nil {
		log.Warn("progress.upgrade.failed", "error", err)
		return
	}
	defer conn.Close()

	// the request context is not cancelled on a hijacked connection
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(progressPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		defer conn.Close()
		events := sess.Subscribe(ctx)
		ticker := time.NewTicker(progressPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-events:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(progressWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(toProgressEvent(snap)); err != nil {
					log.Debug("progress.write.failed", "error", err)
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(progressWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Inbound frames are ignored; reading drives pong handling and detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			return
		}
	}
}
