package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrRequestNotFound = errors.New("connection request not found")
	ErrNotPending      = errors.New("connection request is not pending")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// TargetKind says which identifier space Target.ID belongs to.
type TargetKind string

const (
	// TargetAuto tries a partner id first, then falls back to a user id.
	TargetAuto    TargetKind = "auto"
	TargetPartner TargetKind = "partner"
	TargetUser    TargetKind = "user"
)

func ParseTargetKind(s string) (TargetKind, bool) {
	switch TargetKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", TargetAuto:
		return TargetAuto, true
	case TargetPartner:
		return TargetPartner, true
	case TargetUser:
		return TargetUser, true
	}
	return "", false
}

// Target names the receiver of a request.
type Target struct {
	Kind TargetKind
	ID   string
}

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionAll      Direction = "all"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", DirectionAll:
		return DirectionAll, true
	case DirectionSent:
		return DirectionSent, true
	case DirectionReceived:
		return DirectionReceived, true
	}
	return "", false
}

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// Status returns the status a pending request moves to.
func (a Action) Status() (Status, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

// ConnectionRequest is the canonical record. The names are snapshots taken
// when the request was sent.
type ConnectionRequest struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RequestView is a request enriched with the live sender and receiver.
type RequestView struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Sender    Party     `json:"sender"`
	Receiver  Party     `json:"receiver"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SendInput is what the store needs to record a request. ReceiverEmail keys
// the partner counter; empty skips it.
type SendInput struct {
	SenderID      string
	SenderName    string
	ReceiverID    string
	ReceiverName  string
	ReceiverEmail string
}

// SendResult reports the request id. AlreadySent means an active request for
// the pair existed and nothing was changed.
type SendResult struct {
	RequestID   string `json:"requestId"`
	ReceiverID  string `json:"receiverId"`
	PartnerID   string `json:"-"`
	AlreadySent bool   `json:"alreadySent"`
}

// CancelResult identifies the partner entry whose counter moved, if any.
type CancelResult struct {
	ReceiverID string
	PartnerID  string
}
