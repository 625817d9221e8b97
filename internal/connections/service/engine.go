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
	"github.com/studymate/study-mate-backend/internal/connections/domain"
	"github.com/studymate/study-mate-backend/internal/logger"
	"github.com/studymate/study-mate-backend/internal/metrics"
	partnerdomain "github.com/studymate/study-mate-backend/internal/partners/domain"
)

// RequestStore is implemented by *repository.RequestRepository.
type RequestStore interface {
	Send(ctx context.Context, in domain.SendInput) (*domain.SendResult, error)
	Cancel(ctx context.Context, senderID, receiverID, receiverEmail string) (*domain.CancelResult, error)
	Respond(ctx context.Context, receiverID, requestID string, status domain.Status) (*domain.ConnectionRequest, error)
	List(ctx context.Context, userID string, direction domain.Direction) ([]domain.RequestView, error)
}

// UserLookup is implemented by the auth user repository.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*authdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*authdomain.User, error)
}

// PartnerLookup is implemented by the partner repository.
type PartnerLookup interface {
	GetByID(ctx context.Context, id string) (*partnerdomain.Partner, error)
}

// CacheInvalidator drops stale directory entries after a counter moves.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

type nopCache struct{}

func (nopCache) Invalidate(context.Context, ...string) {}

const (
	opSend    = "send"
	opCancel  = "cancel"
	opRespond = "respond"
	opList    = "list"
)

type Engine struct {
	requests     RequestStore
	users        UserLookup
	partners     PartnerLookup
	cache        CacheInvalidator
	log          *zap.Logger
	storeTimeout time.Duration
}

func NewEngine(requests RequestStore, users UserLookup, partners PartnerLookup, cache CacheInvalidator, log *zap.Logger, storeTimeout time.Duration) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Engine{
		requests:     requests,
		users:        users,
		partners:     partners,
		cache:        cache,
		log:          log,
		storeTimeout: storeTimeout,
	}
}

// SendRequest records a pending request from senderID to the resolved
// target. Repeating it for the same pair is a no-op reported through
// AlreadySent.
func (e *Engine) SendRequest(ctx context.Context, senderID string, target domain.Target) (*domain.SendResult, error) {
	res, err := e.send(ctx, senderID, target)
	switch {
	case err != nil:
		metrics.ConnectionRequests.WithLabelValues(opSend, metrics.ResultError).Inc()
		e.logFailure(ctx, opSend, err, zap.String("sender_id", senderID), zap.String("target_id", target.ID))
	case res.AlreadySent:
		metrics.ConnectionRequests.WithLabelValues(opSend, metrics.ResultAlreadySent).Inc()
	default:
		metrics.ConnectionRequests.WithLabelValues(opSend, metrics.ResultOK).Inc()
	}
	return res, err
}

func (e *Engine) send(ctx context.Context, senderID string, target domain.Target) (*domain.SendResult, error) {
	sender, receiver, err := e.resolvePair(ctx, senderID, target)
	if err != nil {
		return nil, err
	}

	var res *domain.SendResult
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.requests.Send(ctx, domain.SendInput{
			SenderID:      sender.ID,
			SenderName:    sender.Name,
			ReceiverID:    receiver.ID,
			ReceiverName:  receiver.Name,
			ReceiverEmail: receiver.Email,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to send request")
	}

	if !res.AlreadySent {
		e.cache.Invalidate(ctx, res.PartnerID)
		logger.FromContext(ctx, e.log).Info("connection request sent",
			zap.String("request_id", res.RequestID),
			zap.String("sender_id", sender.ID),
			zap.String("receiver_id", receiver.ID),
		)
	}
	return res, nil
}

// CancelRequest withdraws the pending request from senderID to the resolved
// target.
func (e *Engine) CancelRequest(ctx context.Context, senderID string, target domain.Target) error {
	err := e.cancel(ctx, senderID, target)
	if err != nil {
		metrics.ConnectionRequests.WithLabelValues(opCancel, metrics.ResultError).Inc()
		e.logFailure(ctx, opCancel, err, zap.String("sender_id", senderID), zap.String("target_id", target.ID))
		return err
	}
	metrics.ConnectionRequests.WithLabelValues(opCancel, metrics.ResultOK).Inc()
	return nil
}

func (e *Engine) cancel(ctx context.Context, senderID string, target domain.Target) error {
	sender, receiver, err := e.resolvePair(ctx, senderID, target)
	if err != nil {
		return err
	}

	var res *domain.CancelResult
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.requests.Cancel(ctx, sender.ID, receiver.ID, receiver.Email)
		return err
	})
	if errors.Is(err, domain.ErrRequestNotFound) {
		return apperrors.NotFound("Request not found")
	}
	if err != nil {
		return apperrors.FromStore(err, "failed to cancel request")
	}

	e.cache.Invalidate(ctx, res.PartnerID)
	return nil
}

// RespondRequest lets the receiver accept or reject a pending request.
func (e *Engine) RespondRequest(ctx context.Context, receiverID, requestID string, action domain.Action) (*domain.ConnectionRequest, error) {
	req, err := e.respond(ctx, receiverID, requestID, action)
	if err != nil {
		metrics.ConnectionRequests.WithLabelValues(opRespond, metrics.ResultError).Inc()
		e.logFailure(ctx, opRespond, err, zap.String("receiver_id", receiverID), zap.String("request_id", requestID))
		return nil, err
	}
	metrics.ConnectionRequests.WithLabelValues(opRespond, metrics.ResultOK).Inc()
	return req, nil
}

func (e *Engine) respond(ctx context.Context, receiverID, requestID string, action domain.Action) (*domain.ConnectionRequest, error) {
	if !validID(receiverID) || !validID(requestID) {
		return nil, apperrors.InvalidArgument("Invalid ID format")
	}
	status, ok := action.Status()
	if !ok {
		return nil, apperrors.InvalidArgument("action must be accept or reject")
	}

	var req *domain.ConnectionRequest
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		req, err = e.requests.Respond(ctx, receiverID, requestID, status)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrRequestNotFound):
		return nil, apperrors.NotFound("Request not found")
	case errors.Is(err, domain.ErrNotPending):
		return nil, apperrors.Conflict("Request is no longer pending")
	case err != nil:
		return nil, apperrors.FromStore(err, "failed to respond to request")
	}
	return req, nil
}

// ListRequests returns userID's requests, newest first. It never reports
// NotFound; an unknown user simply has none.
func (e *Engine) ListRequests(ctx context.Context, userID, direction string) ([]domain.RequestView, error) {
	dir, ok := domain.ParseDirection(direction)
	if !ok {
		return nil, apperrors.InvalidArgument("type must be sent, received or all")
	}
	if !validID(userID) {
		return nil, apperrors.InvalidArgument("Invalid ID format")
	}

	var views []domain.RequestView
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		views, err = e.requests.List(ctx, userID, dir)
		return err
	})
	if err != nil {
		metrics.ConnectionRequests.WithLabelValues(opList, metrics.ResultError).Inc()
		e.logFailure(ctx, opList, err, zap.String("user_id", userID))
		return nil, apperrors.FromStore(err, "failed to list requests")
	}
	return views, nil
}

// resolvePair validates the ids and loads both parties.
func (e *Engine) resolvePair(ctx context.Context, senderID string, target domain.Target) (*authdomain.User, *authdomain.User, error) {
	if !validID(senderID) || !validID(target.ID) {
		return nil, nil, apperrors.InvalidArgument("Invalid ID format")
	}
	if strings.EqualFold(senderID, target.ID) {
		return nil, nil, apperrors.InvalidArgument("Cannot send request to yourself")
	}

	sender, err := e.userByID(ctx, senderID)
	if err != nil {
		return nil, nil, err
	}

	receiver, err := e.resolve(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	if receiver.ID == sender.ID {
		return nil, nil, apperrors.InvalidArgument("Cannot send request to yourself")
	}
	return sender, receiver, nil
}

// resolve maps a target to the receiving user.
func (e *Engine) resolve(ctx context.Context, target domain.Target) (*authdomain.User, error) {
	switch target.Kind {
	case domain.TargetUser:
		return e.userByID(ctx, target.ID)

	case domain.TargetPartner:
		partner, err := e.partnerByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if partner == nil || partner.Email == "" {
			return nil, apperrors.NotFound("Partner not found")
		}
		user, err := e.userByEmail(ctx, partner.Email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, apperrors.NotFound("No user account for this partner")
		}
		return user, nil

	case domain.TargetAuto, "":
		partner, err := e.partnerByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if partner != nil && partner.Email != "" {
			user, err := e.userByEmail(ctx, partner.Email)
			if err != nil {
				return nil, err
			}
			if user != nil {
				return user, nil
			}
		}
		return e.userByID(ctx, target.ID)
	}

	return nil, apperrors.InvalidArgument("kind must be partner, user or auto")
}

func (e *Engine) userByID(ctx context.Context, id string) (*authdomain.User, error) {
	var user *authdomain.User
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = e.users.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}
	return user, nil
}

// userByEmail returns nil, nil when no user has the email.
func (e *Engine) userByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	var user *authdomain.User
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = e.users.GetByEmail(ctx, email)
		return err
	})
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load user")
	}
	return user, nil
}

// partnerByID returns nil, nil when no partner has the id.
func (e *Engine) partnerByID(ctx context.Context, id string) (*partnerdomain.Partner, error) {
	var partner *partnerdomain.Partner
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		partner, err = e.partners.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, partnerdomain.ErrPartnerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load partner")
	}
	return partner, nil
}

// call runs one store operation under the store timeout.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) logFailure(ctx context.Context, op string, err error, fields ...zap.Field) {
	log := logger.FromContext(ctx, e.log)
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if apperrors.KindOf(err) == apperrors.KindInternal || apperrors.KindOf(err) == apperrors.KindUnavailable {
		log.Error("connection request failed", fields...)
		return
	}
	log.Debug("connection request rejected", fields...)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
