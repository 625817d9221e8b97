package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrPartnerNotFound = errors.New("partner not found")
	ErrPartnerExists   = errors.New("partner already exists for email")
)

const DefaultActiveStatus = "Offline"

// Partner is a discoverable directory entry keyed by email. RequestCount is
// maintained by the connections repository and has no floor.
type Partner struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	Image        string    `json:"image"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	Level        string    `json:"level"`
	ActiveStatus string    `json:"activeStatus"`
	Rating       float64   `json:"rating"`
	About        string    `json:"about"`
	Location     string    `json:"location"`
	Availability string    `json:"availability"`
	RequestCount int       `json:"requestCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ApplyDefaults fills the presentation defaults for rows that were upserted
// with only an email.
func (p *Partner) ApplyDefaults() {
	if strings.TrimSpace(p.ActiveStatus) == "" {
		p.ActiveStatus = DefaultActiveStatus
	}
}

// CreatePartnerRequest is the input for an explicit directory entry.
type CreatePartnerRequest struct {
	Email        string
	Image        string
	Name         string
	Subject      string
	Level        string
	ActiveStatus string
	Rating       float64
	About        string
	Location     string
	Availability string
}

// UpdatePartnerRequest carries a partial update; nil fields are left alone.
type UpdatePartnerRequest struct {
	Image        *string
	Name         *string
	Subject      *string
	Level        *string
	ActiveStatus *string
	About        *string
	Location     *string
	Availability *string
}
