package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	authdomain "github.com/studymate/study-mate-backend/internal/auth/domain"
	"github.com/studymate/study-mate-backend/internal/connections/domain"
	partnerdomain "github.com/studymate/study-mate-backend/internal/partners/domain"
)

// world is an in-memory stand-in for the users, partners and
// connection_requests tables with the same transactional semantics as the
// Postgres repository: one active request per ordered pair, arrays and
// counters changed together with the canonical row.
type world struct {
	mu       sync.Mutex
	users    map[string]*authdomain.User
	partners map[string]*partnerdomain.Partner
	requests map[string]*domain.ConnectionRequest
	clock    time.Time
	failNext error
}

func newWorld() *world {
	return &world{
		users:    map[string]*authdomain.User{},
		partners: map[string]*partnerdomain.Partner{},
		requests: map[string]*domain.ConnectionRequest{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (w *world) addUser(name, email string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.users[id] = &authdomain.User{ID: id, Name: name, Email: email, SentRequests: []string{}, ReceivedRequests: []string{}}
	return id
}

func (w *world) addPartner(email string, count int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.partners[id] = &partnerdomain.Partner{ID: id, Email: email, RequestCount: count}
	return id
}

func (w *world) user(id string) authdomain.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.users[id]
}

func (w *world) partner(id string) partnerdomain.Partner {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.partners[id]
}

func (w *world) requestCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}

func (w *world) takeFailure() error {
	err := w.failNext
	w.failNext = nil
	return err
}

func (w *world) GetByID(ctx context.Context, id string) (*authdomain.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.takeFailure(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := w.users[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (w *world) GetByEmail(_ context.Context, email string) (*authdomain.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, authdomain.ErrUserNotFound
}

type partnerView struct{ w *world }

func (p partnerView) GetByID(_ context.Context, id string) (*partnerdomain.Partner, error) {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	partner, ok := p.w.partners[id]
	if !ok {
		return nil, partnerdomain.ErrPartnerNotFound
	}
	cp := *partner
	return &cp, nil
}

func (w *world) partnerByEmail(email string) *partnerdomain.Partner {
	for _, p := range w.partners {
		if strings.EqualFold(p.Email, email) {
			return p
		}
	}
	return nil
}

func (w *world) Send(_ context.Context, in domain.SendInput) (*domain.SendResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.takeFailure(); err != nil {
		return nil, err
	}

	for _, r := range w.requests {
		if r.SenderID == in.SenderID && r.ReceiverID == in.ReceiverID &&
			(r.Status == domain.StatusPending || r.Status == domain.StatusAccepted) {
			return &domain.SendResult{RequestID: r.ID, ReceiverID: in.ReceiverID, AlreadySent: true}, nil
		}
	}

	w.clock = w.clock.Add(time.Second)
	id := uuid.NewString()
	w.requests[id] = &domain.ConnectionRequest{
		ID:           id,
		SenderID:     in.SenderID,
		ReceiverID:   in.ReceiverID,
		SenderName:   in.SenderName,
		ReceiverName: in.ReceiverName,
		Status:       domain.StatusPending,
		CreatedAt:    w.clock,
		UpdatedAt:    w.clock,
	}

	sender, receiver := w.users[in.SenderID], w.users[in.ReceiverID]
	if !slices.Contains(sender.SentRequests, in.ReceiverID) {
		sender.SentRequests = append(sender.SentRequests, in.ReceiverID)
	}
	if !slices.Contains(receiver.ReceivedRequests, in.SenderID) {
		receiver.ReceivedRequests = append(receiver.ReceivedRequests, in.SenderID)
	}

	var partnerID string
	if in.ReceiverEmail != "" {
		p := w.partnerByEmail(in.ReceiverEmail)
		if p == nil {
			p = &partnerdomain.Partner{ID: uuid.NewString(), Email: strings.ToLower(in.ReceiverEmail), Name: in.ReceiverName}
			w.partners[p.ID] = p
		}
		p.RequestCount++
		partnerID = p.ID
	}

	return &domain.SendResult{RequestID: id, ReceiverID: in.ReceiverID, PartnerID: partnerID}, nil
}

func (w *world) Cancel(_ context.Context, senderID, receiverID, receiverEmail string) (*domain.CancelResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.takeFailure(); err != nil {
		return nil, err
	}

	var found string
	for id, r := range w.requests {
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == domain.StatusPending {
			found = id
		}
	}
	if found == "" {
		return nil, domain.ErrRequestNotFound
	}
	delete(w.requests, found)

	sender, receiver := w.users[senderID], w.users[receiverID]
	sender.SentRequests = slices.DeleteFunc(sender.SentRequests, func(id string) bool { return id == receiverID })
	receiver.ReceivedRequests = slices.DeleteFunc(receiver.ReceivedRequests, func(id string) bool { return id == senderID })

	var partnerID string
	if p := w.partnerByEmail(receiverEmail); receiverEmail != "" && p != nil {
		p.RequestCount--
		partnerID = p.ID
	}
	return &domain.CancelResult{ReceiverID: receiverID, PartnerID: partnerID}, nil
}

func (w *world) Respond(_ context.Context, receiverID, requestID string, status domain.Status) (*domain.ConnectionRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.requests[requestID]
	if !ok || r.ReceiverID != receiverID {
		return nil, domain.ErrRequestNotFound
	}
	if r.Status != domain.StatusPending {
		return nil, domain.ErrNotPending
	}
	r.Status = status

	sender, receiver := w.users[r.SenderID], w.users[r.ReceiverID]
	sender.SentRequests = slices.DeleteFunc(sender.SentRequests, func(id string) bool { return id == r.ReceiverID })
	receiver.ReceivedRequests = slices.DeleteFunc(receiver.ReceivedRequests, func(id string) bool { return id == r.SenderID })

	cp := *r
	return &cp, nil
}

func (w *world) List(_ context.Context, userID string, direction domain.Direction) ([]domain.RequestView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.takeFailure(); err != nil {
		return nil, err
	}

	party := func(id, snapshot string) domain.Party {
		if u, ok := w.users[id]; ok {
			return domain.Party{ID: id, Name: u.Name, Email: u.Email}
		}
		return domain.Party{ID: id, Name: snapshot}
	}

	views := []domain.RequestView{}
	for _, r := range w.requests {
		sent := r.SenderID == userID
		received := r.ReceiverID == userID
		if (direction == domain.DirectionSent && !sent) ||
			(direction == domain.DirectionReceived && !received) ||
			(!sent && !received) {
			continue
		}
		views = append(views, domain.RequestView{
			ID:        r.ID,
			Status:    r.Status,
			Sender:    party(r.SenderID, r.SenderName),
			Receiver:  party(r.ReceiverID, r.ReceiverName),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated [][]string
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ids)
}

// blockingUsers never answers until the caller's deadline fires.
type blockingUsers struct{}

func (blockingUsers) GetByID(ctx context.Context, _ string) (*authdomain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingUsers) GetByEmail(ctx context.Context, _ string) (*authdomain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
