package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	"github.com/studymate/study-mate-backend/internal/auth"
	"github.com/studymate/study-mate-backend/internal/auth/domain"
)

// UserStore is the Credential Store.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	LinkFirebaseUID(ctx context.Context, id, uid string) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}

// IdentityVerifier validates a federated bearer credential.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.Identity, error)
}

// SessionIssuer mints session tokens bound to a user id.
type SessionIssuer interface {
	Issue(userID string) (string, error)
}

type Options struct {
	StoreTimeout      time.Duration
	MinPasswordLength int
}

type AuthService struct {
	users    UserStore
	verifier IdentityVerifier
	sessions SessionIssuer
	log      *zap.Logger
	opts     Options
}

// NewAuthService wires the auth flows. verifier may be nil, in which case
// federated login reports Unavailable.
func NewAuthService(users UserStore, verifier IdentityVerifier, sessions SessionIssuer, log *zap.Logger, opts Options) *AuthService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, verifier: verifier, sessions: sessions, log: log, opts: opts}
}

func (s *AuthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// Register creates a password account and logs it in
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || req.Password == "" {
		return nil, apperrors.InvalidArgument("Provide name, email and password")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.InvalidArgument("Invalid email address")
	}
	if len(req.Password) < s.opts.MinPasswordLength {
		return nil, apperrors.InvalidArgument("Password is too short")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to hash password")
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Role:         domain.RoleUser,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, apperrors.Conflict("Email already registered")
		}
		return nil, apperrors.FromStore(err, "failed to register user")
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks a password against the stored hash
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.InvalidArgument("Provide email and password")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}

	if !user.HasPassword() || !auth.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, apperrors.Unauthorized("Invalid credentials")
	}

	return s.issue(user)
}

// FirebaseLogin verifies an ID token and maps it to a local account:
// by firebase uid first, then by email (linking the uid), otherwise a new
// federated-only user is created.
func (s *AuthService) FirebaseLogin(ctx context.Context, idToken string) (*domain.AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperrors.InvalidArgument("idToken is required")
	}
	if s.verifier == nil {
		return nil, apperrors.Unavailable(nil, "federated login is not configured")
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.log.Warn("firebase token rejected", zap.Error(err))
		return nil, apperrors.Unauthorized("Invalid Firebase token")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.GetByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.FromStore(err, "failed to load user")
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		email = identity.UID + "@firebase.local"
	}

	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkFirebaseUID(ctx, user.ID, identity.UID); err != nil {
			return nil, apperrors.FromStore(err, "failed to link account")
		}
		uid := identity.UID
		user.FirebaseUID = &uid
		return s.issue(user)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, apperrors.FromStore(err, "failed to load user")
	}

	uid := identity.UID
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &domain.User{
		FirebaseUID: &uid,
		Email:       email,
		Name:        name,
		PhotoURL:    identity.Picture,
		Role:        domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, apperrors.Conflict("Email already registered")
		}
		return nil, apperrors.FromStore(err, "failed to create user")
	}

	s.log.Info("federated user created", zap.String("user_id", user.ID))
	return s.issue(user)
}

// errBadSubject rejects sessions whose subject is not a user id, such as
// tokens minted for legacy 24-hex account ids.
var errBadSubject = apperrors.Unauthorized("Token is not valid")

func validUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetProfile returns the user record for id
func (s *AuthService) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	if !validUserID(id) {
		return nil, errBadSubject
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of req
func (s *AuthService) UpdateProfile(ctx context.Context, id string, req domain.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.InvalidArgument("Name cannot be empty")
		}
		user.Name = name
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Location != nil {
		user.Location = strings.TrimSpace(*req.Location)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.PhotoURL != nil {
		user.PhotoURL = strings.TrimSpace(*req.PhotoURL)
	}
	if req.Interests != nil {
		user.Interests = cleanInterests(req.Interests)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.FromStore(err, "failed to update user")
	}
	return user, nil
}

// DeleteProfile removes the account
func (s *AuthService) DeleteProfile(ctx context.Context, id string) error {
	if !validUserID(id) {
		return errBadSubject
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.NotFound("User not found")
		}
		return apperrors.FromStore(err, "failed to delete user")
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *AuthService) issue(user *domain.User) (*domain.AuthResult, error) {
	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to issue session")
	}
	return &domain.AuthResult{Token: token, User: user}, nil
}

func cleanInterests(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(v)]; dup {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		out = append(out, v)
	}
	return out
}
