package model

import "time"

// RequestStatus is the lifecycle state of an upgrade request.
type RequestStatus string

// Request status constants. Approved may still transition to fulfilled;
// the rest are terminal.
const (
	RequestDraft     RequestStatus = "draft"
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestCancelled RequestStatus = "cancelled"
	RequestExpired   RequestStatus = "expired"
	RequestFulfilled RequestStatus = "fulfilled"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestDenied, RequestCancelled, RequestExpired, RequestFulfilled:
		return true
	}
	return false
}

// EventKind tags an approval event.
type EventKind string

// Approval event kinds, one per transition.
const (
	EventCreated   EventKind = "created"
	EventSubmitted EventKind = "submitted"
	EventApproved  EventKind = "approved"
	EventDenied    EventKind = "denied"
	EventCancelled EventKind = "cancelled"
	EventExpired   EventKind = "expired"
	EventFulfilled EventKind = "fulfilled"
)

// ApprovalEvent is one immutable row in a request's event log.
type ApprovalEvent struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Kind      EventKind `json:"kind"`
	ActorID   string    `json:"actorId"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpgradeRequest is a spend-gated service request routed through approval.
type UpgradeRequest struct {
	ID               string        `json:"id"`
	RequesterID      string        `json:"requesterId"`
	ApproverID       string        `json:"approverId,omitempty"`
	AccountID        string        `json:"accountId"`
	Type             string        `json:"type"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Context          string        `json:"context,omitempty"`
	EstimatedCredits int64         `json:"estimatedCredits"`
	Status           RequestStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	ExpiresAt        *time.Time    `json:"expiresAt,omitempty"`
	ApprovalNote     string        `json:"approvalNote,omitempty"`
	DenialReason     string        `json:"denialReason,omitempty"`
	Escalated        bool          `json:"escalated,omitempty"`
}
