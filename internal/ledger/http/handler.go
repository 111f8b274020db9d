package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

type Handler struct {
	ledger *ledger.Ledger
}

func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{ledger: l}
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	view, err := h.ledger.GetFolio(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewFolioResponse(view))
}

func (h *Handler) Post(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body PostRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	tx, err := h.ledger.PostCharge(c.Request.Context(), uri.ID, ledger.Posting{
		Type:        ledger.Type(body.Type),
		Amount:      body.Amount,
		Description: body.Description,
		Reference:   body.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewTransactionResponse(tx))
}
