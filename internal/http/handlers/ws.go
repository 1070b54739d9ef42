package handlers

import (
	"log/slog"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/ws"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
)

type WSHandler struct {
	Hub                  *ws.Hub
	Out                  ws.Broadcaster
	Backend              ws.Backend
	Verifier             *auth.Verifier
	Store                *store.Store
	Session              ws.SessionConfig
	WSInsecureSkipVerify bool
	OriginPatterns       []string
	Logger               *slog.Logger
}

// Handle memverifikasi credential SEBELUM upgrade; gagal = 401 tanpa koneksi.
func (h *WSHandler) Handle(c *gin.Context) {
	// Browser native WebSocket sulit set header Authorization,
	// jadi query param token=... juga diterima.
	tokenStr, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		tokenStr = c.Query("token")
	}

	id, err := h.Verifier.Verify(tokenStr)
	if err != nil {
		respondError(c, err)
		return
	}
	u, err := h.Store.FindUser(c.Request.Context(), id.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			respondError(c, apperr.Unauthenticated("unknown user"))
			return
		}
		respondError(c, err)
		return
	}

	opts := &websocket.AcceptOptions{
		InsecureSkipVerify: h.WSInsecureSkipVerify, // HANYA untuk dev
		OriginPatterns:     h.OriginPatterns,
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		return // Accept sudah menulis response error
	}

	client := h.Hub.Register(conn, u.ID, u.Name)
	h.Logger.Debug("ws connected", slog.String("client_id", client.ID), slog.Uint64("user_id", uint64(u.ID)))

	// block sampai client disconnect
	ws.NewSession(h.Hub, h.Out, h.Backend, client, id, h.Session, h.Logger).Run(c.Request.Context())
}
