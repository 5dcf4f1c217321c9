package api

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// updates streams the customer's processing updates over a websocket until
// the client goes away.
func (h *Handler) updates(c *gin.Context) {
	customerID := c.Param("id")
	if _, err := h.svc.Customers.Get(c.Request.Context(), customerID); err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "customer_id", customerID, "error", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := h.svc.Hub.Subscribe(customerID)
	defer cancel()

	// incoming frames are ignored; CloseRead cancels ctx when the peer closes
	ctx := conn.CloseRead(c.Request.Context())
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, u)
			wcancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
