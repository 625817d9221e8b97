package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	"github.com/studymate/study-mate-backend/internal/connections/domain"
	"github.com/studymate/study-mate-backend/internal/metrics"
)

func newEngine(w *world) (*Engine, *recordingCache) {
	cache := &recordingCache{}
	return NewEngine(w, w, partnerView{w}, cache, nil, time.Second), cache
}

func userTarget(id string) domain.Target    { return domain.Target{Kind: domain.TargetUser, ID: id} }
func partnerTarget(id string) domain.Target { return domain.Target{Kind: domain.TargetPartner, ID: id} }
func autoTarget(id string) domain.Target    { return domain.Target{Kind: domain.TargetAuto, ID: id} }

func partyIDs(views []domain.RequestView, pick func(domain.RequestView) domain.Party) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, pick(v).ID)
	}
	return ids
}

func senderOf(v domain.RequestView) domain.Party   { return v.Sender }
func receiverOf(v domain.RequestView) domain.Party { return v.Receiver }

func TestSendThenListShowsBothDirections(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	res, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)
	assert.False(t, res.AlreadySent)
	assert.Equal(t, b, res.ReceiverID)

	sent, err := engine.ListRequests(ctx, a, "sent")
	require.NoError(t, err)
	assert.Contains(t, partyIDs(sent, receiverOf), b)

	received, err := engine.ListRequests(ctx, b, "received")
	require.NoError(t, err)
	assert.Contains(t, partyIDs(received, senderOf), a)
	assert.Equal(t, "ada@example.com", received[0].Sender.Email)

	assert.Equal(t, []string{b}, w.user(a).SentRequests)
	assert.Equal(t, []string{a}, w.user(b).ReceivedRequests)
}

func TestSendIsIdempotent(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "e@x.com")
	p := w.addPartner("e@x.com", 4)
	engine, cache := newEngine(w)
	ctx := context.Background()

	first, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)
	second, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)

	assert.True(t, second.AlreadySent)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, 1, w.requestCount())
	assert.Equal(t, 5, w.partner(p).RequestCount)
	assert.Equal(t, []string{b}, w.user(a).SentRequests)
	assert.Len(t, cache.invalidated, 1)
}

func TestCancelAfterSend(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	_, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)

	require.NoError(t, engine.CancelRequest(ctx, a, userTarget(b)))
	assert.Empty(t, w.user(a).SentRequests)
	assert.Empty(t, w.user(b).ReceivedRequests)
	assert.Equal(t, 0, w.requestCount())

	err = engine.CancelRequest(ctx, a, userTarget(b))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSendToSelfIsInvalid(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	engine, _ := newEngine(w)

	for _, target := range []domain.Target{userTarget(a), autoTarget(a), partnerTarget(a)} {
		_, err := engine.SendRequest(context.Background(), a, target)
		assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err), "kind %s", target.Kind)
	}
}

func TestSendToOwnPartnerProfileIsInvalid(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	p := w.addPartner("ada@example.com", 0)
	engine, _ := newEngine(w)

	_, err := engine.SendRequest(context.Background(), a, autoTarget(p))
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
	assert.Equal(t, 0, w.requestCount())
}

func TestUnresolvableTargetIsNotFound(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	engine, _ := newEngine(w)
	unknown := uuid.NewString()

	for _, target := range []domain.Target{userTarget(unknown), autoTarget(unknown), partnerTarget(unknown)} {
		_, err := engine.SendRequest(context.Background(), a, target)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err), "kind %s", target.Kind)
	}
}

func TestPartnerToEmailToUserScenario(t *testing.T) {
	w := newWorld()
	a1 := w.addUser("Ada", "ada@example.com")
	b1 := w.addUser("Bob", "e@x.com")
	p1 := w.addPartner("e@x.com", 2)
	engine, cache := newEngine(w)

	for _, target := range []domain.Target{autoTarget(p1), partnerTarget(p1)} {
		t.Run(string(target.Kind), func(t *testing.T) {
			res, err := engine.SendRequest(context.Background(), a1, target)
			require.NoError(t, err)
			assert.Equal(t, b1, res.ReceiverID)

			views, err := engine.ListRequests(context.Background(), a1, "sent")
			require.NoError(t, err)
			require.Len(t, views, 1)
			assert.Equal(t, b1, views[0].Receiver.ID)
			assert.Equal(t, domain.StatusPending, views[0].Status)

			assert.Contains(t, w.user(a1).SentRequests, b1)
			assert.Contains(t, w.user(b1).ReceivedRequests, a1)
			assert.Equal(t, 3, w.partner(p1).RequestCount)
			assert.Contains(t, cache.invalidated[0], p1)
		})
	}
}

func TestPartnerWithoutUserFallsBackToUserID(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	p := w.addPartner("nobody@example.com", 0)
	engine, _ := newEngine(w)

	_, err := engine.SendRequest(context.Background(), a, partnerTarget(p))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	// auto falls back to treating the partner id as a user id, which also misses
	_, err = engine.SendRequest(context.Background(), a, autoTarget(p))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDirectUserFallback(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	t1 := w.addUser("Tess", "tess@example.com")
	engine, _ := newEngine(w)

	res, err := engine.SendRequest(context.Background(), a, autoTarget(t1))
	require.NoError(t, err)
	assert.Equal(t, t1, res.ReceiverID)

	// the receiver had no partner row, so one is upserted with count 1
	p := w.partnerByEmail("tess@example.com")
	require.NotNil(t, p)
	assert.Equal(t, 1, p.RequestCount)
}

func TestSendCancelRoundTripRestoresCount(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "e@x.com")
	p := w.addPartner("e@x.com", 7)
	engine, _ := newEngine(w)
	ctx := context.Background()

	_, err := engine.SendRequest(ctx, a, partnerTarget(p))
	require.NoError(t, err)
	require.NoError(t, engine.CancelRequest(ctx, a, partnerTarget(p)))

	assert.Equal(t, 7, w.partner(p).RequestCount)
	assert.Empty(t, w.user(a).SentRequests)
	assert.Empty(t, w.user(b).ReceivedRequests)
}

func TestMalformedIDsAreInvalid(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	_, err := engine.SendRequest(ctx, a, userTarget("not-a-uuid"))
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	_, err = engine.SendRequest(ctx, "nope", userTarget(a))
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	err = engine.CancelRequest(ctx, a, autoTarget("123"))
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	_, err = engine.RespondRequest(ctx, a, "x", domain.ActionAccept)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestRespondRequest(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "e@x.com")
	p := w.addPartner("e@x.com", 0)
	engine, _ := newEngine(w)
	ctx := context.Background()

	res, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)

	t.Run("only the receiver can respond", func(t *testing.T) {
		_, err := engine.RespondRequest(ctx, a, res.RequestID, domain.ActionAccept)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := engine.RespondRequest(ctx, b, res.RequestID, domain.Action("maybe"))
		assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
	})

	t.Run("accept clears the pending arrays and keeps the count", func(t *testing.T) {
		req, err := engine.RespondRequest(ctx, b, res.RequestID, domain.ActionAccept)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAccepted, req.Status)
		assert.Empty(t, w.user(a).SentRequests)
		assert.Empty(t, w.user(b).ReceivedRequests)
		assert.Equal(t, 1, w.partner(p).RequestCount)
	})

	t.Run("second response conflicts", func(t *testing.T) {
		_, err := engine.RespondRequest(ctx, b, res.RequestID, domain.ActionReject)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("accepted pair stays active", func(t *testing.T) {
		again, err := engine.SendRequest(ctx, a, userTarget(b))
		require.NoError(t, err)
		assert.True(t, again.AlreadySent)

		err = engine.CancelRequest(ctx, a, userTarget(b))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestRejectedPairCanBeResent(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	res, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)
	_, err = engine.RespondRequest(ctx, b, res.RequestID, domain.ActionReject)
	require.NoError(t, err)

	again, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)
	assert.False(t, again.AlreadySent)
	assert.NotEqual(t, res.RequestID, again.RequestID)

	views, err := engine.ListRequests(ctx, a, "")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, again.RequestID, views[0].ID, "newest first")
}

func TestListRequests(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	c := w.addUser("Cy", "cy@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	_, err := engine.SendRequest(ctx, a, userTarget(b))
	require.NoError(t, err)
	_, err = engine.SendRequest(ctx, c, userTarget(a))
	require.NoError(t, err)

	all, err := engine.ListRequests(ctx, a, "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sent, err := engine.ListRequests(ctx, a, "SENT")
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	_, err = engine.ListRequests(ctx, a, "outgoing")
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	none, err := engine.ListRequests(ctx, uuid.NewString(), "all")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreFailuresAreTranslated(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine, _ := newEngine(w)
	ctx := context.Background()

	w.failNext = context.DeadlineExceeded
	_, err := engine.SendRequest(ctx, a, userTarget(b))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindUnavailable, appErr.Kind)
	assert.True(t, appErr.Retryable())

	w.failNext = errors.New(`pq: relation "connection_requests" does not exist`)
	_, err = engine.ListRequests(ctx, a, "all")
	appErr, ok = apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindInternal, appErr.Kind)
	assert.NotContains(t, appErr.Message, "relation")
}

func TestStoreCallsAreBounded(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine := NewEngine(w, blockingUsers{}, partnerView{w}, nil, nil, 20*time.Millisecond)

	start := time.Now()
	_, err := engine.SendRequest(context.Background(), a, userTarget(b))
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendRecordsMetrics(t *testing.T) {
	w := newWorld()
	a := w.addUser("Ada", "ada@example.com")
	b := w.addUser("Bob", "bob@example.com")
	engine, _ := newEngine(w)

	ok := metrics.ConnectionRequests.WithLabelValues(opSend, metrics.ResultOK)
	dup := metrics.ConnectionRequests.WithLabelValues(opSend, metrics.ResultAlreadySent)
	okBefore, dupBefore := testutil.ToFloat64(ok), testutil.ToFloat64(dup)

	_, err := engine.SendRequest(context.Background(), a, userTarget(b))
	require.NoError(t, err)
	_, err = engine.SendRequest(context.Background(), a, userTarget(b))
	require.NoError(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, dupBefore+1, testutil.ToFloat64(dup))
}
