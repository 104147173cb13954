package wallethandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Anomaliszt/HiddenDeal/internal/database/db_client"
	"github.com/Anomaliszt/HiddenDeal/internal/ledger"
)

// adminUserID is the fixed administrator identity allowed to top up any
// wallet.
const adminUserID int64 = 1

type Handler struct {
	ldg *ledger.Ledger
}

func New(ldg *ledger.Ledger) *Handler { return &Handler{ldg: ldg} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/wallet", h.balance)
	r.POST("/wallet/add", h.addFunds)
	r.POST("/wallet/admin/add", h.adminAddFunds)
}

type AddFundsBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
} // @name AddFundsRequest

type AdminAddFundsBody struct {
	UserID int64           `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"  binding:"required"`
} // @name AdminAddFundsRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name WalletErrorResponse

func requesterID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid user identity"})
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, db_client.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// @Summary		Wallet balance
// @Description	Returns the requester's wallet, creating it on first reference.
// @Tags			Wallet
// @Success		200	{object}	ledger.Wallet
// @Router			/wallet [get]
func (h *Handler) balance(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	w, err := h.ldg.Balance(c.Request.Context(), uid)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":    w.Balance,
		"updated_at": w.UpdatedAt,
	})
}

// @Summary		Add funds
// @Tags			Wallet
// @Param			body	body	AddFundsBody	true	"Top-up payload"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/wallet/add [post]
func (h *Handler) addFunds(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	var body AddFundsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !body.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ledger.ErrInvalidAmount.Error()})
		return
	}

	balance, err := h.ldg.Credit(c.Request.Context(), uid, body.Amount)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_balance": balance})
}

// @Summary		Admin top-up for any user
// @Tags			Wallet
// @Param			body	body	AdminAddFundsBody	true	"Top-up payload"
// @Success		200
// @Failure		403	{object}	ErrorResponse
// @Router			/wallet/admin/add [post]
func (h *Handler) adminAddFunds(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}
	if uid != adminUserID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin access required"})
		return
	}
	var body AdminAddFundsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !body.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ledger.ErrInvalidAmount.Error()})
		return
	}

	balance, err := h.ldg.Credit(c.Request.Context(), body.UserID, body.Amount)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": body.UserID, "new_balance": balance})
}
