package http

import (
	"time"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	reservationHttp "github.com/nekogravitycat/hotel-pms-backend/internal/reservation/http"
)

type RegisterRequest struct {
	Code        string `json:"code" binding:"required,min=1,max=20"`
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Kind        string `json:"kind" binding:"required,oneof=ota gds direct corporate"`
	Secret      string `json:"secret" binding:"required"`
	FeedURL     string `json:"feed_url" binding:"omitempty,url"`
	CallbackURL string `json:"callback_url" binding:"omitempty,url"`
}

type ChannelResponse struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Kind         string     `json:"kind"`
	FeedURL      string     `json:"feed_url,omitempty"`
	CallbackURL  string     `json:"callback_url,omitempty"`
	Active       bool       `json:"active"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func NewChannelResponse(ch *channel.Channel) ChannelResponse {
	return ChannelResponse{
		ID:           ch.ID,
		Code:         ch.Code,
		Name:         ch.Name,
		Kind:         string(ch.Kind),
		FeedURL:      ch.FeedURL,
		CallbackURL:  ch.CallbackURL,
		Active:       ch.Active,
		LastPolledAt: ch.LastPolledAt,
		CreatedAt:    ch.CreatedAt,
	}
}

type ConflictResponse struct {
	ID            string                  `json:"id"`
	ChannelID     string                  `json:"channel_id"`
	ExternalRef   string                  `json:"external_ref"`
	Booking       channel.ExternalBooking `json:"booking"`
	Kind          string                  `json:"kind"`
	Reason        string                  `json:"reason"`
	Status        string                  `json:"status"`
	ReservationID string                  `json:"reservation_id,omitempty"`
	NotifyError   string                  `json:"notify_error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	ResolvedAt    *time.Time              `json:"resolved_at,omitempty"`
}

func NewConflictResponse(c *channel.Conflict) ConflictResponse {
	return ConflictResponse{
		ID:            c.ID,
		ChannelID:     c.ChannelID,
		ExternalRef:   c.ExternalRef,
		Booking:       c.Booking,
		Kind:          c.Kind,
		Reason:        c.Reason,
		Status:        string(c.Status),
		ReservationID: c.ReservationID,
		NotifyError:   c.NotifyError,
		CreatedAt:     c.CreatedAt,
		ResolvedAt:    c.ResolvedAt,
	}
}

type SyncResponse struct {
	Outcome     string                               `json:"outcome"`
	Reservation *reservationHttp.ReservationResponse `json:"reservation,omitempty"`
	Conflict    *ConflictResponse                    `json:"conflict,omitempty"`
}

func NewSyncResponse(r *channel.SyncResult) SyncResponse {
	resp := SyncResponse{Outcome: string(r.Outcome)}
	if r.Reservation != nil {
		rr := reservationHttp.NewResponse(r.Reservation)
		resp.Reservation = &rr
	}
	if r.Conflict != nil {
		cr := NewConflictResponse(r.Conflict)
		resp.Conflict = &cr
	}
	return resp
}

type ListConflictsRequest struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	PageSize  int    `form:"page_size,default=20" binding:"min=1,max=200"`
	ChannelID string `form:"channel_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=open accepted rejected withdrawn"`
}

type ResolveRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
	Note   string `json:"note" binding:"max=500"`
}

type PollResponse struct {
	ChannelID string `json:"channel_id"`
	Fetched   int    `json:"fetched"`
	Created   int    `json:"created"`
	Cancelled int    `json:"cancelled"`
	Duplicate int    `json:"duplicate"`
	Conflicts int    `json:"conflicts"`
	Failed    int    `json:"failed"`
}

func NewPollResponse(r *channel.PollReport) PollResponse {
	return PollResponse{
		ChannelID: r.ChannelID,
		Fetched:   r.Fetched,
		Created:   r.Created,
		Cancelled: r.Cancelled,
		Duplicate: r.Duplicate,
		Conflicts: r.Conflicts,
		Failed:    r.Failed,
	}
}
