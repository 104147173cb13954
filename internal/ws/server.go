package ws

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Anomaliszt/HiddenDeal/internal/services/auction"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // auth lives upstream
}

// WsServer streams auction events (bids, settlement, pool distribution) to
// subscribed clients. The stream is broadcast-only: bids are placed over the
// REST API, never over the socket.
type WsServer struct {
	hub        *Hub
	auctionSvc auction.IAuctionService
}

func NewWsServer(h *Hub, auctionSvc auction.IAuctionService) *WsServer {
	return &WsServer{hub: h, auctionSvc: auctionSvc}
}

// Handle is the gin entry point: GET /ws?auction_id=<id>
func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID, err := strconv.ParseInt(ginCtx.Query("auction_id"), 10, 64)
	if err != nil {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "auction_id is required"})
		return
	}
	viewerID, _ := strconv.ParseInt(ginCtx.GetHeader("X-User-ID"), 10, 64)

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(auctionID, wsConn)

	// Initial snapshot so the client does not start from a blank state.
	if detail, err := s.auctionSvc.GetAuction(ginCtx.Request.Context(), auctionID, viewerID); err == nil {
		if err := wsConn.writeJSON(detail); err != nil {
			zap.L().Warn("ws.snapshot", zap.Error(err))
		}
	} else if !errors.Is(err, auction.ErrAuctionNotFound) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(auctionID, wsConn)
	go s.pinger(auctionID, wsConn)
}

// reader drains the connection so control frames are processed, and detaches
// the client on error or close.
func (s *WsServer) reader(auctionID int64, c *clientConn) {
	defer s.hub.Leave(auctionID, c)

	_ = c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.rawConn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WsServer) pinger(auctionID int64, c *clientConn) {
	tk := time.NewTicker(pingPeriod)
	defer tk.Stop()
	for range tk.C {
		if err := c.write(websocket.PingMessage, nil); err != nil {
			s.hub.Leave(auctionID, c)
			return
		}
	}
}
