package auctionhandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Anomaliszt/HiddenDeal/internal/database/db_client"
	"github.com/Anomaliszt/HiddenDeal/internal/ledger"
	"github.com/Anomaliszt/HiddenDeal/internal/services/auction"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.POST("/auctions", h.create)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/bids", h.bids)
	r.GET("/auctions/:id/pool", h.pool)
	r.POST("/bids", h.bid)
	r.GET("/winners/:id", h.winner)
}

// requesterID reads the authenticated user id injected by the upstream auth
// layer.
func requesterID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid user identity"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid auction id"})
		return 0, false
	}
	return id, true
}

// statusFor maps service errors onto HTTP status codes. Validation and
// lifecycle rejections are expected outcomes, transient failures invite a
// retry, everything else is a fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, auction.ErrNoUniqueBids):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, auction.ErrInvalidExpiry),
		errors.Is(err, auction.ErrInvalidItemValue),
		errors.Is(err, auction.ErrAuctionExpired),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionStillActive),
		errors.Is(err, auction.ErrNoPoolPrize),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, db_client.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// @Summary		Create an auction
// @Tags			Auctions
// @Param			body	body	CreateAuctionBody	true	"Auction payload"
// @Success		201
// @Failure		400	{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	id, err := h.svc.CreateAuction(c.Request.Context(), uid, auction.CreateAuctionInput{
		Title:         body.Title,
		Description:   body.Description,
		StartingPrice: body.StartingPrice,
		ItemValue:     body.ItemValue,
		ExpiresAt:     body.ExpiresAt,
	})
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Auction created"})
}

// @Summary		List auctions
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(active,expired)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		auction.AuctionDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListAuctions(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get auction details
// @Description	Returns the auction, the requester's bids and the current lowest unique bid.
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.AuctionDetail
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetAuction(c.Request.Context(), id, uid)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// @Summary		List an auction's bids
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{array}		auction.BidDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.svc.AuctionBids(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Pool prize standing
// @Description	Live top-3 bid-count ranking with potential shares, plus realized winners once distributed.
// @Tags			Pool
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.PoolStandingDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/pool [get]
func (h *Handler) pool(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	standing, err := h.svc.PoolStanding(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, standing)
}

// @Summary		Place a bid
// @Description	Lowest unique bid wins. Funds move bidder -> creator/pool atomically.
// @Tags			Bids
// @Param			body	body	PlaceBidBody	true	"Bid payload"
// @Success		201	{object}	auction.PlaceBidResult
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/bids [post]
func (h *Handler) bid(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.svc.PlaceBid(c.Request.Context(), uid, body.AuctionID, body.Amount)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

// @Summary		Resolve the auction winner
// @Description	Settles an expired auction: lowest unique bid wins, pool prize distributes once.
// @Tags			Winners
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.SettlementResult
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/winners/{id} [get]
func (h *Handler) winner(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, err := h.svc.ResolveWinner(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
