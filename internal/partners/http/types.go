package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/partners/domain"
)

// PartnerService is implemented by *service.PartnerService.
type PartnerService interface {
	List(ctx context.Context) ([]domain.Partner, error)
	Get(ctx context.Context, id string) (*domain.Partner, error)
	Create(ctx context.Context, req domain.CreatePartnerRequest) (*domain.Partner, error)
	Update(ctx context.Context, callerID, id string, req domain.UpdatePartnerRequest) (*domain.Partner, error)
}

type Handler struct {
	partnerService PartnerService
	log            *zap.Logger
}

func New(partnerService PartnerService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{partnerService: partnerService, log: log}
}

type createPartnerBody struct {
	Email        string   `json:"email"`
	Image        string   `json:"image"`
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	Level        string   `json:"level"`
	ActiveStatus string   `json:"activeStatus"`
	Rating       *float64 `json:"rating"`
	About        string   `json:"about"`
	Location     string   `json:"location"`
	Availability string   `json:"availability"`
}

type updatePartnerBody struct {
	Image        *string `json:"image"`
	Name         *string `json:"name"`
	Subject      *string `json:"subject"`
	Level        *string `json:"level"`
	ActiveStatus *string `json:"activeStatus"`
	About        *string `json:"about"`
	Location     *string `json:"location"`
	Availability *string `json:"availability"`
}

type listResponse struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Data    []domain.Partner `json:"data"`
}

type partnerResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg,omitempty"`
	Data    *domain.Partner `json:"data"`
}
