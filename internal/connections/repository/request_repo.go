package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/studymate/study-mate-backend/internal/connections/domain"
)

// RequestRepository owns connection_requests and is the only writer of the
// users request arrays and partners.request_count. Each mutation changes all
// three inside one transaction.
type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Every mutation locks both users rows in id order before touching
// anything else, so A->B and B->A never wait on each other in a cycle.
// NO KEY UPDATE leaves the foreign-key share locks taken by inserts free.
const (
	lockPairSQL = `
		SELECT 1 FROM users
		WHERE id IN ($1, $2)
		ORDER BY id
		FOR NO KEY UPDATE`

	lockRequestPartiesSQL = `
		SELECT 1 FROM users
		WHERE id IN (
			SELECT sender_id FROM connection_requests WHERE id = $1
			UNION
			SELECT receiver_id FROM connection_requests WHERE id = $1
		)
		ORDER BY id
		FOR NO KEY UPDATE`

	addSentSQL = `
		UPDATE users
		SET sent_requests = array_append(sent_requests, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(sent_requests))`

	addReceivedSQL = `
		UPDATE users
		SET received_requests = array_append(received_requests, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(received_requests))`

	removeSentSQL = `
		UPDATE users
		SET sent_requests = array_remove(sent_requests, $2), updated_at = NOW()
		WHERE id = $1`

	removeReceivedSQL = `
		UPDATE users
		SET received_requests = array_remove(received_requests, $2), updated_at = NOW()
		WHERE id = $1`

	upsertPartnerCountSQL = `
		INSERT INTO partners (id, email, name, request_count)
		VALUES ($1, lower($2), $3, 1)
		ON CONFLICT (email)
		DO UPDATE SET request_count = partners.request_count + 1, updated_at = NOW()
		RETURNING id::text`

	decrementPartnerCountSQL = `
		UPDATE partners
		SET request_count = request_count - 1, updated_at = NOW()
		WHERE email = lower($1)
		RETURNING id::text`

	activeRequestIDSQL = `
		SELECT id::text FROM connection_requests
		WHERE sender_id = $1 AND receiver_id = $2 AND status IN ('pending', 'accepted')`
)

// Send records a pending request. A unique violation on the active-pair
// index means the request already exists; the existing id is returned with
// AlreadySent set and nothing else is touched.
func (r *RequestRepository) Send(ctx context.Context, in domain.SendInput) (_ *domain.SendResult, err error) {
	requestID := uuid.New().String()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin send: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockPairSQL, in.SenderID, in.ReceiverID); err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO connection_requests (id, sender_id, receiver_id, sender_name, receiver_name, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`, requestID, in.SenderID, in.ReceiverID, in.SenderName, in.ReceiverName)
	if isUniqueViolation(err) {
		// the transaction is aborted; read the winner outside it
		_ = tx.Rollback()
		var existing string
		if qerr := r.db.QueryRowContext(ctx, activeRequestIDSQL, in.SenderID, in.ReceiverID).Scan(&existing); qerr != nil {
			return nil, fmt.Errorf("failed to load existing request: %w", qerr)
		}
		return &domain.SendResult{RequestID: existing, ReceiverID: in.ReceiverID, AlreadySent: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}

	if _, err = tx.ExecContext(ctx, addSentSQL, in.SenderID, in.ReceiverID); err != nil {
		return nil, fmt.Errorf("failed to update sender: %w", err)
	}
	if _, err = tx.ExecContext(ctx, addReceivedSQL, in.ReceiverID, in.SenderID); err != nil {
		return nil, fmt.Errorf("failed to update receiver: %w", err)
	}

	var partnerID string
	if in.ReceiverEmail != "" {
		err = tx.QueryRowContext(ctx, upsertPartnerCountSQL, uuid.New().String(), in.ReceiverEmail, in.ReceiverName).Scan(&partnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to bump partner count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit send: %w", err)
	}

	return &domain.SendResult{RequestID: requestID, ReceiverID: in.ReceiverID, PartnerID: partnerID}, nil
}

// Cancel deletes the pending request for the pair and undoes its side
// effects. The partner counter may go negative.
func (r *RequestRepository) Cancel(ctx context.Context, senderID, receiverID, receiverEmail string) (_ *domain.CancelResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin cancel: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockPairSQL, senderID, receiverID); err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM connection_requests
		WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'
	`, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete request: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		err = domain.ErrRequestNotFound
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, removeSentSQL, senderID, receiverID); err != nil {
		return nil, fmt.Errorf("failed to update sender: %w", err)
	}
	if _, err = tx.ExecContext(ctx, removeReceivedSQL, receiverID, senderID); err != nil {
		return nil, fmt.Errorf("failed to update receiver: %w", err)
	}

	var partnerID string
	if receiverEmail != "" {
		err = tx.QueryRowContext(ctx, decrementPartnerCountSQL, receiverEmail).Scan(&partnerID)
		if err == sql.ErrNoRows {
			err = nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to drop partner count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancel: %w", err)
	}

	return &domain.CancelResult{ReceiverID: receiverID, PartnerID: partnerID}, nil
}

// Respond moves a pending request addressed to receiverID to status and
// drops the pair from both pending arrays.
func (r *RequestRepository) Respond(ctx context.Context, receiverID, requestID string, status domain.Status) (_ *domain.ConnectionRequest, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin respond: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// users first, then the request row, the same order Send and Cancel use
	if _, err = tx.ExecContext(ctx, lockRequestPartiesSQL, requestID); err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}

	var req domain.ConnectionRequest
	err = tx.QueryRowContext(ctx, `
		SELECT id::text, sender_id::text, receiver_id::text, sender_name, receiver_name, status, created_at, updated_at
		FROM connection_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID).Scan(
		&req.ID,
		&req.SenderID,
		&req.ReceiverID,
		&req.SenderName,
		&req.ReceiverName,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		err = domain.ErrRequestNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	// other users' requests are indistinguishable from missing ones
	if req.ReceiverID != receiverID {
		err = domain.ErrRequestNotFound
		return nil, err
	}
	if req.Status != domain.StatusPending {
		err = domain.ErrNotPending
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE connection_requests SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, requestID, string(status)).Scan(&req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}
	req.Status = status

	if _, err = tx.ExecContext(ctx, removeSentSQL, req.SenderID, req.ReceiverID); err != nil {
		return nil, fmt.Errorf("failed to update sender: %w", err)
	}
	if _, err = tx.ExecContext(ctx, removeReceivedSQL, req.ReceiverID, req.SenderID); err != nil {
		return nil, fmt.Errorf("failed to update receiver: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit respond: %w", err)
	}

	return &req, nil
}

// List returns the user's requests in the given direction, newest first,
// with live party names that fall back to the snapshots.
func (r *RequestRepository) List(ctx context.Context, userID string, direction domain.Direction) ([]domain.RequestView, error) {
	var where string
	switch direction {
	case domain.DirectionSent:
		where = `cr.sender_id = $1`
	case domain.DirectionReceived:
		where = `cr.receiver_id = $1`
	default:
		where = `(cr.sender_id = $1 OR cr.receiver_id = $1)`
	}

	query := `
		SELECT cr.id::text, cr.status, cr.created_at, cr.updated_at,
		       cr.sender_id::text, COALESCE(s.name, cr.sender_name), COALESCE(s.email, ''),
		       cr.receiver_id::text, COALESCE(rc.name, cr.receiver_name), COALESCE(rc.email, '')
		FROM connection_requests cr
		LEFT JOIN users s ON s.id = cr.sender_id
		LEFT JOIN users rc ON rc.id = cr.receiver_id
		WHERE ` + where + `
		ORDER BY cr.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	views := []domain.RequestView{}
	for rows.Next() {
		var v domain.RequestView
		if err := rows.Scan(
			&v.ID,
			&v.Status,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.Sender.ID,
			&v.Sender.Name,
			&v.Sender.Email,
			&v.Receiver.ID,
			&v.Receiver.Name,
			&v.Receiver.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return views, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
