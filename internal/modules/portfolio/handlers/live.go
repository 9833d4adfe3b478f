package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const liveWriteTimeout = 10 * time.Second

// HandleLive streams the portfolio valuation over a WebSocket, once on
// connect and then every liveInterval, until the client goes away.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// Client messages are ignored; CloseRead cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(h.liveInterval)
	defer ticker.Stop()

	for {
		if err := h.pushValuation(ctx, conn); err != nil {
			if ctx.Err() == nil {
				h.log.Debug().Err(err).Msg("Live valuation push failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushValuation(ctx context.Context, conn *websocket.Conn) error {
	v, err := h.service.Valuation(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(map[string]interface{}{
		"type": "valuation",
		"data": v,
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
