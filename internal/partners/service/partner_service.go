package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	authdomain "github.com/studymate/study-mate-backend/internal/auth/domain"
	"github.com/studymate/study-mate-backend/internal/partners/domain"
)

// PartnerStore is implemented by *repository.PartnerRepository.
type PartnerStore interface {
	List(ctx context.Context) ([]domain.Partner, error)
	GetByID(ctx context.Context, id string) (*domain.Partner, error)
	Create(ctx context.Context, p *domain.Partner) error
	Update(ctx context.Context, p *domain.Partner) error
}

// Cache is implemented by *cache.PartnerCache.
type Cache interface {
	GetList(ctx context.Context) ([]domain.Partner, bool)
	SetList(ctx context.Context, partners []domain.Partner)
	Get(ctx context.Context, id string) (*domain.Partner, bool)
	Set(ctx context.Context, p *domain.Partner)
	Invalidate(ctx context.Context, ids ...string)
}

// UserLookup resolves the caller for ownership checks.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*authdomain.User, error)
}

type PartnerService struct {
	partners     PartnerStore
	cache        Cache
	users        UserLookup
	log          *zap.Logger
	storeTimeout time.Duration
}

func NewPartnerService(partners PartnerStore, cache Cache, users UserLookup, log *zap.Logger, storeTimeout time.Duration) *PartnerService {
	if log == nil {
		log = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &PartnerService{partners: partners, cache: cache, users: users, log: log, storeTimeout: storeTimeout}
}

// List returns the whole directory
func (s *PartnerService) List(ctx context.Context) ([]domain.Partner, error) {
	if cached, ok := s.cache.GetList(ctx); ok {
		return cached, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	partners, err := s.partners.List(sctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "Server error while fetching partners")
	}

	s.cache.SetList(ctx, partners)
	return partners, nil
}

// Get returns one partner
func (s *PartnerService) Get(ctx context.Context, id string) (*domain.Partner, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.InvalidArgument("Invalid partner ID format")
	}
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	p, err := s.partners.GetByID(sctx, id)
	if errors.Is(err, domain.ErrPartnerNotFound) {
		return nil, apperrors.NotFound("Partner not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "Server error while fetching partner")
	}

	s.cache.Set(ctx, p)
	return p, nil
}

// Create adds a directory entry. An existing email is a Conflict.
func (s *PartnerService) Create(ctx context.Context, req domain.CreatePartnerRequest) (*domain.Partner, error) {
	p := &domain.Partner{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Image:        strings.TrimSpace(req.Image),
		Name:         strings.TrimSpace(req.Name),
		Subject:      strings.TrimSpace(req.Subject),
		Level:        strings.TrimSpace(req.Level),
		ActiveStatus: strings.TrimSpace(req.ActiveStatus),
		Rating:       req.Rating,
		About:        req.About,
		Location:     strings.TrimSpace(req.Location),
		Availability: strings.TrimSpace(req.Availability),
	}
	if p.Email == "" || p.Name == "" || p.Subject == "" || p.Level == "" {
		return nil, apperrors.InvalidArgument("Please provide email, name, subject, and level")
	}
	if p.Rating < 0 {
		p.Rating = 0
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.partners.Create(sctx, p); err != nil {
		if errors.Is(err, domain.ErrPartnerExists) {
			return nil, apperrors.Conflict("A partner profile already exists for this email")
		}
		return nil, apperrors.FromStore(err, "Server error while creating partner")
	}

	s.cache.Invalidate(ctx)
	s.log.Info("partner created", zap.String("partner_id", p.ID))
	return p, nil
}

// Update applies a partial update on behalf of callerID, who must own the
// entry: the caller's email has to match the partner's.
func (s *PartnerService) Update(ctx context.Context, callerID, id string, req domain.UpdatePartnerRequest) (*domain.Partner, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.InvalidArgument("Invalid partner ID")
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	caller, err := s.users.GetByID(sctx, callerID)
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "Server error while updating partner")
	}

	p, err := s.partners.GetByID(sctx, id)
	if errors.Is(err, domain.ErrPartnerNotFound) {
		return nil, apperrors.NotFound("Partner profile not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "Server error while updating partner")
	}

	if !strings.EqualFold(p.Email, caller.Email) {
		return nil, apperrors.Forbidden("Authorization denied")
	}

	applyUpdate(p, req)

	if err := s.partners.Update(sctx, p); err != nil {
		if errors.Is(err, domain.ErrPartnerNotFound) {
			return nil, apperrors.NotFound("Partner profile not found")
		}
		return nil, apperrors.FromStore(err, "Server error while updating partner")
	}

	s.cache.Invalidate(ctx, p.ID)
	return p, nil
}

// applyUpdate ignores blank values for the fields a profile cannot go without
func applyUpdate(p *domain.Partner, req domain.UpdatePartnerRequest) {
	setTrimmed := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}

	setTrimmed(&p.Name, req.Name)
	setTrimmed(&p.Subject, req.Subject)
	setTrimmed(&p.Level, req.Level)
	setTrimmed(&p.ActiveStatus, req.ActiveStatus)
	setTrimmed(&p.Location, req.Location)
	setTrimmed(&p.Availability, req.Availability)

	if req.Image != nil {
		p.Image = *req.Image
	}
	if req.About != nil {
		p.About = *req.About
	}
}
