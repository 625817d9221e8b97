package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/auth/domain"
)

// AuthService is implemented by *service.AuthService.
type AuthService interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	FirebaseLogin(ctx context.Context, idToken string) (*domain.AuthResult, error)
	GetProfile(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, req domain.UpdateProfileRequest) (*domain.User, error)
	DeleteProfile(ctx context.Context, id string) error
}

type Handler struct {
	authService AuthService
	log         *zap.Logger
}

func New(authService AuthService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{authService: authService, log: log}
}

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type firebaseBody struct {
	IDToken string `json:"idToken"`
}

type updateProfileBody struct {
	Name      *string  `json:"name,omitempty"`
	Bio       *string  `json:"bio,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	PhotoURL  *string  `json:"photoUrl,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}
