package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	ledgerHttp "github.com/nekogravitycat/hotel-pms-backend/internal/ledger/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
)

type Handler struct {
	service reservation.Service
	ledger  *ledger.Ledger
}

func NewHandler(service reservation.Service, l *ledger.Ledger) *Handler {
	return &Handler{service: service, ledger: l}
}

func (h *Handler) List(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	filter := reservation.Filter{
		Status:     req.Status,
		RoomTypeID: req.RoomTypeID,
		Source:     req.Source,
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortOrder:  req.SortOrder,
	}
	if req.Date != "" {
		d, err := bizdate.Parse(req.Date)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD", nil)
			return
		}
		filter.Date = &d
	}

	rs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ReservationResponse, len(rs))
	for i, r := range rs {
		items[i] = NewResponse(r)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.BadRequest(c, err.Error(), nil)
		return
	}

	r, err := h.service.Create(c.Request.Context(), body.toDomain())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewResponse(r))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) GetByCode(c *gin.Context) {
	var req ByCodeRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.GetByConfirmationCode(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) Folio(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	view, err := h.ledger.GetFolioByReservation(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgerHttp.NewFolioResponse(view))
}

func (h *Handler) AssignRoom(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body AssignRoomRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	r, err := h.service.AssignRoom(c.Request.Context(), uri.ID, body.RoomID, body.Override)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) CheckIn(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	view, err := h.service.CheckIn(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgerHttp.NewFolioResponse(view))
}

func (h *Handler) CheckOut(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	// The body is optional.
	var body CheckOutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid request body", err)
			return
		}
	}

	view, err := h.service.CheckOut(c.Request.Context(), uri.ID, reservation.CheckOutRequest{
		BalanceForward:    body.BalanceForward,
		CityLedgerAccount: body.CityLedgerAccount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgerHttp.NewFolioResponse(view))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.Cancel(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.MarkNoShow(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) RecordPayment(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body PaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	r, err := h.service.RecordPayment(c.Request.Context(), uri.ID, reservation.PaymentStatus(body.PaymentStatus))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) SweepNoShows(c *gin.Context) {
	n, err := h.service.SweepNoShows(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *Handler) NightAudit(c *gin.Context) {
	var body NightAuditRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	report, err := h.service.RunNightAudit(c.Request.Context(), body.Night)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NightAuditResponse{Night: report.Night, Posted: report.Posted, Skipped: report.Skipped})
}
