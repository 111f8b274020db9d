package roomtype

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

type CreateRequest struct {
	Code           string
	Name           string
	Description    string
	MaxOccupancy   int
	BaseRate       decimal.Decimal
	TotalInventory int
}

type UpdateRequest struct {
	Name           *string
	Description    *string
	MaxOccupancy   *int
	BaseRate       *decimal.Decimal
	TotalInventory *int
}

type CreateRatePlanRequest struct {
	Code         string
	Name         string
	RoomTypeID   string
	BaseRate     decimal.Decimal
	Restrictions Restrictions
	Cancellation CancellationPolicy
	ValidFrom    *bizdate.Date
	ValidTo      *bizdate.Date
}

// Persister stores catalogue changes.
type Persister interface {
	SaveRoomType(ctx context.Context, rt *RoomType) error
	SaveRatePlan(ctx context.Context, p *RatePlan) error
}

// InventorySink receives unit totals whenever a room type's inventory changes.
type InventorySink interface {
	SetTotal(roomTypeID string, total int) error
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*RoomType, error)
	GetByID(ctx context.Context, id string) (*RoomType, error)
	GetByCode(ctx context.Context, code string) (*RoomType, error)
	Exists(ctx context.Context, id string) bool
	List(ctx context.Context, filter Filter) ([]*RoomType, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*RoomType, error)

	CreateRatePlan(ctx context.Context, req CreateRatePlanRequest) (*RatePlan, error)
	GetRatePlan(ctx context.Context, code string) (*RatePlan, error)
	ListRatePlans(ctx context.Context, roomTypeID string) ([]*RatePlan, error)

	// Restore seeds the catalogue from persisted state without re-saving it.
	Restore(types []*RoomType, plans []*RatePlan)
}

type service struct {
	mu        sync.RWMutex
	types     map[string]*RoomType
	plans     map[string]*RatePlan // keyed by code
	persister Persister
	inventory InventorySink
	clock     clock.Clock
	logger    *zap.Logger
}

func NewService(persister Persister, inventory InventorySink, clk clock.Clock, logger *zap.Logger) Service {
	return &service{
		types:     make(map[string]*RoomType),
		plans:     make(map[string]*RatePlan),
		persister: persister,
		inventory: inventory,
		clock:     clk,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*RoomType, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrCodeRequired
	}
	if req.MaxOccupancy <= 0 {
		return nil, ErrInvalidOccupancy
	}
	if req.TotalInventory < 0 {
		return nil, ErrInvalidInventory
	}
	if req.BaseRate.IsNegative() {
		return nil, ErrInvalidRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.types {
		if strings.EqualFold(existing.Code, req.Code) {
			return nil, ErrCodeTaken
		}
	}

	now := s.clock.Now()
	rt := &RoomType{
		ID:             uuid.NewString(),
		Code:           strings.ToUpper(req.Code),
		Name:           req.Name,
		Description:    req.Description,
		MaxOccupancy:   req.MaxOccupancy,
		BaseRate:       req.BaseRate,
		TotalInventory: req.TotalInventory,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.persister.SaveRoomType(ctx, rt); err != nil {
		return nil, fmt.Errorf("save room type failed: %w", err)
	}
	if err := s.inventory.SetTotal(rt.ID, rt.TotalInventory); err != nil {
		return nil, err
	}
	s.types[rt.ID] = rt

	s.logger.Info("room type created", zap.String("room_type_id", rt.ID), zap.String("code", rt.Code))
	cp := *rt
	return &cp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.types[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rt := range s.types {
		if strings.EqualFold(rt.Code, code) {
			cp := *rt
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *service) Exists(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.types[id]
	return ok
}

func (s *service) List(ctx context.Context, filter Filter) ([]*RoomType, int, error) {
	s.mu.RLock()
	out := make([]*RoomType, 0, len(s.types))
	for _, rt := range s.types {
		cp := *rt
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	desc := strings.EqualFold(filter.SortOrder, "desc")
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "name":
			less = out[i].Name < out[j].Name
		case "created_at":
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		default:
			less = out[i].Code < out[j].Code
		}
		if desc {
			return !less
		}
		return less
	})

	total := len(out)
	return response.Paginate(out, filter.Page, filter.PageSize), total, nil
}

// Update applies an administrative change. Rate changes affect only
// reservations created afterwards; committed reservations keep their rate.
func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*RoomType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.types[id]
	if !ok {
		return nil, ErrNotFound
	}
	rt := *current

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrNameRequired
		}
		rt.Name = *req.Name
	}
	if req.Description != nil {
		rt.Description = *req.Description
	}
	if req.MaxOccupancy != nil {
		if *req.MaxOccupancy <= 0 {
			return nil, ErrInvalidOccupancy
		}
		rt.MaxOccupancy = *req.MaxOccupancy
	}
	if req.BaseRate != nil {
		if req.BaseRate.IsNegative() {
			return nil, ErrInvalidRate
		}
		rt.BaseRate = *req.BaseRate
	}
	if req.TotalInventory != nil {
		if *req.TotalInventory < 0 {
			return nil, ErrInvalidInventory
		}
		rt.TotalInventory = *req.TotalInventory
	}
	rt.UpdatedAt = s.clock.Now()

	if rt.TotalInventory != current.TotalInventory {
		if err := s.inventory.SetTotal(rt.ID, rt.TotalInventory); err != nil {
			return nil, err
		}
	}
	if err := s.persister.SaveRoomType(ctx, &rt); err != nil {
		if rt.TotalInventory != current.TotalInventory {
			if rbErr := s.inventory.SetTotal(rt.ID, current.TotalInventory); rbErr != nil {
				s.logger.Error("rollback room type inventory failed",
					zap.String("room_type_id", rt.ID), zap.Int("total", current.TotalInventory), zap.Error(rbErr))
			}
		}
		return nil, fmt.Errorf("save room type failed: %w", err)
	}
	s.types[id] = &rt

	cp := rt
	return &cp, nil
}

func (s *service) CreateRatePlan(ctx context.Context, req CreateRatePlanRequest) (*RatePlan, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrCodeRequired
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.BaseRate.IsNegative() {
		return nil, ErrInvalidRate
	}
	if !req.Restrictions.validate() {
		return nil, ErrInvalidRestrictions
	}
	if req.ValidFrom != nil && req.ValidTo != nil && *req.ValidTo < *req.ValidFrom {
		return nil, apperror.Detail(ErrInvalidRestrictions, "validity end precedes validity start")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[req.RoomTypeID]; !ok {
		return nil, ErrNotFound
	}
	code := strings.ToUpper(req.Code)
	if _, ok := s.plans[code]; ok {
		return nil, ErrCodeTaken
	}

	p := &RatePlan{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         req.Name,
		RoomTypeID:   req.RoomTypeID,
		BaseRate:     req.BaseRate,
		Restrictions: req.Restrictions,
		Cancellation: req.Cancellation,
		ValidFrom:    req.ValidFrom,
		ValidTo:      req.ValidTo,
		Active:       true,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.persister.SaveRatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("save rate plan failed: %w", err)
	}
	s.plans[code] = p

	cp := *p
	return &cp, nil
}

func (s *service) GetRatePlan(ctx context.Context, code string) (*RatePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[strings.ToUpper(code)]
	if !ok {
		return nil, ErrRatePlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *service) ListRatePlans(ctx context.Context, roomTypeID string) ([]*RatePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RatePlan, 0)
	for _, p := range s.plans {
		if roomTypeID != "" && p.RoomTypeID != roomTypeID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *service) Restore(types []*RoomType, plans []*RatePlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range types {
		cp := *rt
		s.types[cp.ID] = &cp
		if err := s.inventory.SetTotal(cp.ID, cp.TotalInventory); err != nil {
			s.logger.Warn("restore room type inventory failed", zap.String("room_type_id", cp.ID), zap.Error(err))
		}
	}
	for _, p := range plans {
		cp := *p
		s.plans[strings.ToUpper(cp.Code)] = &cp
	}
}
