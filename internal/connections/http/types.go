package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/connections/domain"
)

// RequestEngine is implemented by *service.Engine.
type RequestEngine interface {
	SendRequest(ctx context.Context, senderID string, target domain.Target) (*domain.SendResult, error)
	CancelRequest(ctx context.Context, senderID string, target domain.Target) error
	RespondRequest(ctx context.Context, receiverID, requestID string, action domain.Action) (*domain.ConnectionRequest, error)
	ListRequests(ctx context.Context, userID, direction string) ([]domain.RequestView, error)
}

type Handler struct {
	engine RequestEngine
	log    *zap.Logger
}

func New(engine RequestEngine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

type respondBody struct {
	Action string `json:"action"`
}

type sendResponse struct {
	Success    bool   `json:"success"`
	Msg        string `json:"msg"`
	RequestID  string `json:"requestId"`
	ReceiverID string `json:"receiverId"`
}

type listResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Data    []domain.RequestView `json:"data"`
}
