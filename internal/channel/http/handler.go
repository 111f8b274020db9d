package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

// SecretHeader carries a channel's webhook secret.
const SecretHeader = "X-Channel-Secret"

type Handler struct {
	sync *channel.Synchronizer
}

func NewHandler(s *channel.Synchronizer) *Handler {
	return &Handler{sync: s}
}

func (h *Handler) List(c *gin.Context) {
	chs, err := h.sync.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]ChannelResponse, len(chs))
	for i, ch := range chs {
		items[i] = NewChannelResponse(ch)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Register(c *gin.Context) {
	var body RegisterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	ch, err := h.sync.Register(c.Request.Context(), channel.RegisterRequest{
		Code:        body.Code,
		Name:        body.Name,
		Kind:        channel.Kind(body.Kind),
		Secret:      body.Secret,
		FeedURL:     body.FeedURL,
		CallbackURL: body.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewChannelResponse(ch))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	ch, err := h.sync.Get(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewChannelResponse(ch))
}

// SyncBooking is the channel webhook. It authenticates with the channel
// secret rather than an operator token.
func (h *Handler) SyncBooking(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.sync.Authenticate(ctx, uri.ID, c.GetHeader(SecretHeader)); err != nil {
		response.Error(c, err)
		return
	}

	var body channel.ExternalBooking
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	result, err := h.sync.SyncBooking(ctx, uri.ID, body)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Outcome {
	case channel.OutcomeCreated:
		c.JSON(http.StatusCreated, NewSyncResponse(result))
	case channel.OutcomeConflict:
		c.JSON(http.StatusConflict, gin.H{
			"error":    channel.ErrChannelConflict.Message,
			"kind":     string(apperror.KindChannelConflict),
			"conflict": NewConflictResponse(result.Conflict),
		})
	default:
		c.JSON(http.StatusOK, NewSyncResponse(result))
	}
}

func (h *Handler) Poll(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	report, err := h.sync.Poll(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPollResponse(report))
}

func (h *Handler) ListConflicts(c *gin.Context) {
	var req ListConflictsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	conflicts, total, err := h.sync.ListConflicts(c.Request.Context(), channel.ConflictFilter{
		ChannelID: req.ChannelID,
		Status:    req.Status,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ConflictResponse, len(conflicts))
	for i, cf := range conflicts {
		items[i] = NewConflictResponse(cf)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) GetConflict(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	cf, err := h.sync.GetConflict(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewConflictResponse(cf))
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body ResolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	cf, err := h.sync.ResolveConflict(c.Request.Context(), uri.ID, channel.Action(body.Action), body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewConflictResponse(cf))
}
