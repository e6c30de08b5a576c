package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// stream pushes committed case changes to a websocket client. The optional
// case_id query parameter narrows the feed to one case.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, errs.New(errs.KindStoreUnavailable, "case stream is not available"))
		return
	}
	only := strings.TrimSpace(r.URL.Query().Get("case_id"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context(), "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes := h.broker.Subscribe()
	defer h.broker.Unsubscribe(changes)

	logCtx := logging.WithAttrs(ctx, slog.String("component", "transport.stream"))
	logging.Debug(logCtx, "stream subscriber connected", slog.String("case_id", only))

	go h.writeChanges(ctx, cancel, conn, changes, only)

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug(logCtx, "stream subscriber dropped", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
	}
}

func (h *Handler) writeChanges(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, changes <-chan ports.CaseChanged, only string) {
	defer func() { _ = conn.Close() }()
	defer cancel()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case change := <-changes:
			if only != "" && change.CaseID != only {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
