package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/metrics"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

type RegisterRequest struct {
	Code        string
	Name        string
	Kind        Kind
	Secret      string
	FeedURL     string
	CallbackURL string
}

// Persister stores channels and conflicts.
type Persister interface {
	SaveChannel(ctx context.Context, ch Channel) error
	SaveConflict(ctx context.Context, c Conflict) error
}

// Deps are the collaborators of the Synchronizer.
type Deps struct {
	Locks        *keylock.Manager
	Reservations reservation.Service
	Catalog      roomtype.Service
	Persister    Persister
	Remote       Remote
	Hasher       auth.PasswordHasher
	Publisher    event.Publisher
	Clock        clock.Clock
	Logger       *zap.Logger
	// PollConcurrency bounds how many feeds PollAll fetches at once.
	PollConcurrency int
}

// Synchronizer reconciles external bookings against inventory through the
// same commit path as direct reservations.
type Synchronizer struct {
	mu        sync.RWMutex
	channels  map[string]*Channel
	conflicts map[string]*Conflict

	Deps
}

func NewSynchronizer(deps Deps) *Synchronizer {
	if deps.PollConcurrency <= 0 {
		deps.PollConcurrency = 4
	}
	return &Synchronizer{
		channels:  make(map[string]*Channel),
		conflicts: make(map[string]*Conflict),
		Deps:      deps,
	}
}

func bookingKey(channelID, ref string) string {
	return "chan:" + channelID + ":" + ref
}

func (s *Synchronizer) Register(ctx context.Context, req RegisterRequest) (*Channel, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, ErrCodeRequired
	}
	if !req.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if len(req.Secret) < 12 {
		return nil, ErrSecretTooShort
	}
	hash, err := s.Hasher.Hash(req.Secret)
	if err != nil {
		return nil, fmt.Errorf("hash channel secret failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.channels {
		if existing.Code == code {
			return nil, ErrCodeTaken
		}
	}

	ch := Channel{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        req.Name,
		Kind:        req.Kind,
		SecretHash:  hash,
		FeedURL:     req.FeedURL,
		CallbackURL: req.CallbackURL,
		Active:      true,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Persister.SaveChannel(ctx, ch); err != nil {
		return nil, fmt.Errorf("save channel failed: %w", err)
	}
	s.channels[ch.ID] = &ch

	s.Logger.Info("channel registered", zap.String("channel_id", ch.ID), zap.String("code", ch.Code))
	return &ch, nil
}

func (s *Synchronizer) Get(ctx context.Context, id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (s *Synchronizer) List(ctx context.Context) ([]*Channel, error) {
	s.mu.RLock()
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		cp := *ch
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Authenticate checks a webhook caller's secret against the stored hash.
func (s *Synchronizer) Authenticate(ctx context.Context, channelID, secret string) error {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return ErrInvalidSecret
	}
	if secret == "" || s.Hasher.Compare(ch.SecretHash, secret) != nil {
		return ErrInvalidSecret
	}
	return nil
}

// SyncBooking applies one externally reported booking. Repeating the same
// (channel, external reference) returns the earlier outcome.
func (s *Synchronizer) SyncBooking(ctx context.Context, channelID string, b ExternalBooking) (*SyncResult, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, ErrChannelInactive
	}
	if strings.TrimSpace(b.ExternalRef) == "" {
		return nil, ErrExternalRefMissing
	}

	unlock, err := s.Locks.Acquire(ctx, bookingKey(ch.ID, b.ExternalRef))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.Reservations.FindByExternalRef(ctx, ch.ID, b.ExternalRef)
	if err != nil && !errors.Is(err, reservation.ErrNotFound) {
		return nil, err
	}
	if b.Cancelled {
		return s.cancel(ctx, ch, b, existing)
	}
	if existing != nil {
		return &SyncResult{Outcome: OutcomeDuplicate, Reservation: existing}, nil
	}
	if open := s.openConflict(ch.ID, b.ExternalRef); open != nil {
		return &SyncResult{Outcome: OutcomeConflict, Conflict: open}, nil
	}

	res, err := s.create(ctx, ch, b, false)
	if err != nil {
		if !isInventoryRejection(err) {
			return nil, err
		}
		c, err2 := s.recordConflict(ctx, ch, b, err)
		if err2 != nil {
			return nil, err2
		}
		return &SyncResult{Outcome: OutcomeConflict, Conflict: c}, nil
	}

	s.Logger.Info("channel booking synced",
		zap.String("channel_id", ch.ID),
		zap.String("external_ref", b.ExternalRef),
		zap.String("reservation_id", res.ID))
	event.Emit(ctx, s.Publisher, s.Logger, event.New(event.ChannelBookingSynced, res.ID, s.Clock.Now(), map[string]any{
		"channel_id":   ch.ID,
		"external_ref": b.ExternalRef,
	}))
	return &SyncResult{Outcome: OutcomeCreated, Reservation: res}, nil
}

func isInventoryRejection(err error) bool {
	return errors.Is(err, inventory.ErrCapacityExhausted) || errors.Is(err, inventory.ErrRestrictionViolation)
}

func (s *Synchronizer) create(ctx context.Context, ch *Channel, b ExternalBooking, accepted bool) (*reservation.Reservation, error) {
	rt, err := s.Catalog.GetByCode(ctx, b.RoomTypeCode)
	if err != nil {
		return nil, err
	}
	payment := b.PaymentStatus
	if payment == "" {
		payment = reservation.PaymentAuthorized
	}
	req := reservation.CreateRequest{
		Guest:              reservation.Guest{Name: b.GuestName, Email: b.GuestEmail, Phone: b.GuestPhone},
		RoomTypeID:         rt.ID,
		CheckIn:            b.CheckIn,
		CheckOut:           b.CheckOut,
		Occupancy:          reservation.Occupancy{Adults: b.Adults, Children: b.Children},
		PaymentStatus:      payment,
		Source:             ch.ID,
		ExternalRef:        b.ExternalRef,
		AllowOverbooking:   accepted,
		IgnoreRestrictions: accepted,
	}
	if b.Rate.IsPositive() {
		rate := b.Rate
		req.Rate = &rate
	}
	return s.Reservations.Create(ctx, req)
}

// cancel handles a channel cancellation message.
func (s *Synchronizer) cancel(ctx context.Context, ch *Channel, b ExternalBooking, existing *reservation.Reservation) (*SyncResult, error) {
	if open := s.openConflict(ch.ID, b.ExternalRef); open != nil {
		c, err := s.close(ctx, *open, ConflictWithdrawn, "")
		if err != nil {
			return nil, err
		}
		return &SyncResult{Outcome: OutcomeCancelled, Conflict: c}, nil
	}
	if existing == nil {
		return nil, reservation.ErrNotFound
	}
	if existing.Status == reservation.StatusCancelled {
		return &SyncResult{Outcome: OutcomeCancelled, Reservation: existing}, nil
	}
	res, err := s.Reservations.Cancel(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	return &SyncResult{Outcome: OutcomeCancelled, Reservation: res}, nil
}

func (s *Synchronizer) openConflict(channelID, ref string) *Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conflicts {
		if c.ChannelID == channelID && c.ExternalRef == ref && c.Status == ConflictOpen {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (s *Synchronizer) recordConflict(ctx context.Context, ch *Channel, b ExternalBooking, cause error) (*Conflict, error) {
	c := Conflict{
		ID:          uuid.NewString(),
		ChannelID:   ch.ID,
		ExternalRef: b.ExternalRef,
		Booking:     b,
		Kind:        string(apperror.KindOf(cause)),
		Reason:      cause.Error(),
		Status:      ConflictOpen,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Persister.SaveConflict(ctx, c); err != nil {
		return nil, fmt.Errorf("save channel conflict failed: %w", err)
	}
	s.mu.Lock()
	s.conflicts[c.ID] = &c
	s.mu.Unlock()

	metrics.IncChannelConflict("recorded")
	s.Logger.Warn("channel conflict recorded",
		zap.String("channel_id", ch.ID),
		zap.String("external_ref", b.ExternalRef),
		zap.String("reason", c.Reason))
	event.Emit(ctx, s.Publisher, s.Logger, event.New(event.ChannelConflictRecorded, c.ID, c.CreatedAt, map[string]any{
		"channel_id":   ch.ID,
		"external_ref": b.ExternalRef,
		"kind":         c.Kind,
		"reason":       c.Reason,
	}))
	return &c, nil
}

func (s *Synchronizer) GetConflict(ctx context.Context, id string) (*Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[id]
	if !ok {
		return nil, ErrConflictNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Synchronizer) ListConflicts(ctx context.Context, filter ConflictFilter) ([]*Conflict, int, error) {
	s.mu.RLock()
	out := make([]*Conflict, 0)
	for _, c := range s.conflicts {
		if filter.ChannelID != "" && c.ChannelID != filter.ChannelID {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := len(out)
	return response.Paginate(out, filter.Page, filter.PageSize), total, nil
}

// ResolveConflict applies an operator decision. Accepting commits the booking
// against the overbooking allowance; if even that is exhausted the conflict
// stays open. Rejecting notifies the channel's callback URL.
func (s *Synchronizer) ResolveConflict(ctx context.Context, id string, action Action, note string) (*Conflict, error) {
	if action != ActionAccept && action != ActionReject {
		return nil, ErrInvalidResolution
	}
	c, err := s.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.Locks.Acquire(ctx, bookingKey(c.ChannelID, c.ExternalRef))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if c, err = s.GetConflict(ctx, id); err != nil {
		return nil, err
	}
	if c.Status != ConflictOpen {
		return nil, ErrConflictResolved
	}
	ch, err := s.Get(ctx, c.ChannelID)
	if err != nil {
		return nil, err
	}

	if action == ActionAccept {
		res, err := s.create(ctx, ch, c.Booking, true)
		if err != nil {
			return nil, err
		}
		return s.close(ctx, *c, ConflictAccepted, res.ID)
	}

	closed := *c
	if ch.CallbackURL != "" {
		notice := RejectionNotice{ExternalRef: c.ExternalRef, Status: "rejected", Reason: c.Reason, Note: note}
		if err := s.Remote.NotifyRejection(ctx, ch.CallbackURL, notice); err != nil {
			s.Logger.Warn("channel rejection notice failed",
				zap.String("channel_id", ch.ID),
				zap.String("external_ref", c.ExternalRef),
				zap.Error(err))
			closed.NotifyError = err.Error()
		}
	}
	return s.close(ctx, closed, ConflictRejected, "")
}

func (s *Synchronizer) close(ctx context.Context, c Conflict, status ConflictStatus, reservationID string) (*Conflict, error) {
	now := s.Clock.Now()
	c.Status = status
	c.ReservationID = reservationID
	c.ResolvedAt = &now
	if err := s.Persister.SaveConflict(ctx, c); err != nil {
		return nil, fmt.Errorf("save channel conflict failed: %w", err)
	}
	s.mu.Lock()
	s.conflicts[c.ID] = &c
	s.mu.Unlock()

	metrics.IncChannelConflict(string(status))
	s.Logger.Info("channel conflict resolved",
		zap.String("conflict_id", c.ID),
		zap.String("status", string(status)),
		zap.String("reservation_id", reservationID))
	event.Emit(ctx, s.Publisher, s.Logger, event.New(event.ChannelConflictResolved, c.ID, now, map[string]any{
		"channel_id":     c.ChannelID,
		"external_ref":   c.ExternalRef,
		"status":         status,
		"reservation_id": reservationID,
	}))
	return &c, nil
}

// Poll fetches a channel's feed and syncs every booking in it.
func (s *Synchronizer) Poll(ctx context.Context, channelID string) (*PollReport, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.FeedURL == "" {
		return nil, ErrNoFeed
	}
	feed, err := s.Remote.FetchFeed(ctx, ch.FeedURL)
	if err != nil {
		return nil, err
	}

	report := &PollReport{ChannelID: ch.ID, Fetched: len(feed.Bookings)}
	for _, b := range feed.Bookings {
		res, err := s.SyncBooking(ctx, ch.ID, b)
		if err != nil {
			report.Failed++
			s.Logger.Warn("channel feed booking failed",
				zap.String("channel_id", ch.ID),
				zap.String("external_ref", b.ExternalRef),
				zap.Error(err))
			continue
		}
		switch res.Outcome {
		case OutcomeCreated:
			report.Created++
		case OutcomeCancelled:
			report.Cancelled++
		case OutcomeDuplicate:
			report.Duplicate++
		case OutcomeConflict:
			report.Conflicts++
		}
	}

	now := s.Clock.Now()
	polled := *ch
	polled.LastPolledAt = &now
	if err := s.Persister.SaveChannel(ctx, polled); err != nil {
		s.Logger.Warn("save channel poll time failed", zap.String("channel_id", ch.ID), zap.Error(err))
	} else {
		s.mu.Lock()
		s.channels[ch.ID] = &polled
		s.mu.Unlock()
	}
	return report, nil
}

// PollAll polls every active channel that has a feed, a few at a time.
func (s *Synchronizer) PollAll(ctx context.Context) ([]*PollReport, error) {
	channels, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		reports []*PollReport
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.PollConcurrency)
	for _, ch := range channels {
		if !ch.Active || ch.FeedURL == "" {
			continue
		}
		g.Go(func() error {
			report, err := s.Poll(gctx, ch.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One unreachable feed must not stop the others.
				errs = append(errs, fmt.Errorf("channel %s: %w", ch.Code, err))
				return nil
			}
			reports = append(reports, report)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ChannelID < reports[j].ChannelID })
	return reports, errors.Join(errs...)
}

// Restore seeds channels and conflicts from persisted state.
func (s *Synchronizer) Restore(channels []Channel, conflicts []Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		cp := ch
		s.channels[cp.ID] = &cp
	}
	for _, c := range conflicts {
		cp := c
		s.conflicts[cp.ID] = &cp
	}
}

// Poller runs PollAll on a fixed interval.
type Poller struct {
	sync     *Synchronizer
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(s *Synchronizer, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{sync: s, interval: interval, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("channel poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("channel poller stopped")
			return
		case <-ticker.C:
			reports, err := p.sync.PollAll(ctx)
			if err != nil && ctx.Err() == nil {
				p.logger.Warn("channel poll incomplete", zap.Error(err))
			}
			for _, r := range reports {
				p.logger.Debug("channel polled",
					zap.String("channel_id", r.ChannelID),
					zap.Int("fetched", r.Fetched),
					zap.Int("created", r.Created),
					zap.Int("conflicts", r.Conflicts))
			}
		}
	}
}
