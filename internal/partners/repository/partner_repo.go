package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/studymate/study-mate-backend/internal/partners/domain"
)

const partnerColumns = `
	id::text, email, image, name, subject, level, active_status, rating, about,
	location, availability, request_count, created_at, updated_at`

type PartnerRepository struct {
	db *sql.DB
}

func NewPartnerRepository(db *sql.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(row rowScanner) (*domain.Partner, error) {
	var p domain.Partner
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Image,
		&p.Name,
		&p.Subject,
		&p.Level,
		&p.ActiveStatus,
		&p.Rating,
		&p.About,
		&p.Location,
		&p.Availability,
		&p.RequestCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ApplyDefaults()
	return &p, nil
}

// List returns every partner, newest first
func (r *PartnerRepository) List(ctx context.Context) ([]domain.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	partners := []domain.Partner{}
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partners: %w", err)
	}

	return partners, nil
}

// GetByID retrieves a partner by primary key
func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*domain.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	return scanPartner(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a partner by lower-cased email
func (r *PartnerRepository) GetByEmail(ctx context.Context, email string) (*domain.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE email = lower($1)`
	return scanPartner(r.db.QueryRowContext(ctx, query, email))
}

// Create inserts a partner. A duplicate email maps to ErrPartnerExists.
func (r *PartnerRepository) Create(ctx context.Context, p *domain.Partner) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.ApplyDefaults()

	query := `
		INSERT INTO partners (id, email, image, name, subject, level, active_status, rating, about, location, availability)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING email, request_count, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		p.ID,
		strings.TrimSpace(p.Email),
		p.Image,
		p.Name,
		p.Subject,
		p.Level,
		p.ActiveStatus,
		p.Rating,
		p.About,
		p.Location,
		p.Availability,
	).Scan(&p.Email, &p.RequestCount, &p.CreatedAt, &p.UpdatedAt)

	if isUniqueViolation(err) {
		return domain.ErrPartnerExists
	}
	if err != nil {
		return fmt.Errorf("failed to create partner: %w", err)
	}

	return nil
}

// Update writes the editable fields. request_count is never touched here.
func (r *PartnerRepository) Update(ctx context.Context, p *domain.Partner) error {
	query := `
		UPDATE partners
		SET image = $2, name = $3, subject = $4, level = $5, active_status = $6,
		    about = $7, location = $8, availability = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING request_count, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		p.ID,
		p.Image,
		p.Name,
		p.Subject,
		p.Level,
		p.ActiveStatus,
		p.About,
		p.Location,
		p.Availability,
	).Scan(&p.RequestCount, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return domain.ErrPartnerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update partner: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
