package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/model"
)

// RequestInput is the caller-supplied part of a new upgrade request.
type RequestInput struct {
	AccountID        string `json:"accountId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Context          string `json:"context,omitempty"`
	EstimatedCredits int64  `json:"estimatedCredits"`
}

// RequestWithEvents pairs a request with its immutable event log.
type RequestWithEvents struct {
	Request model.UpgradeRequest  `json:"request"`
	Events  []model.ApprovalEvent `json:"events"`
}

// CreateDraft records a new request in draft and its created event.
func (s *Service) CreateDraft(ctx context.Context, in RequestInput, requesterID string) (*model.UpgradeRequest, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, eris.Wrap(ErrConflict, "request title is required")
	}
	if in.EstimatedCredits <= 0 {
		return nil, eris.Wrap(ErrConflict, "estimated credits must be positive")
	}

	req := model.UpgradeRequest{
		ID:               uuid.NewString(),
		RequesterID:      requesterID,
		AccountID:        in.AccountID,
		Type:             in.Type,
		Title:            in.Title,
		Description:      in.Description,
		Context:          in.Context,
		EstimatedCredits: in.EstimatedCredits,
		Status:           model.RequestDraft,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventCreated, requesterID, ""); err != nil {
		return nil, err
	}
	return &req, nil
}

// Submit moves a draft forward: small estimates are auto-approved, the rest
// go pending with a hold on the estimate and a decision deadline.
func (s *Service) Submit(ctx context.Context, requestID, actorID string) (*model.UpgradeRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestDraft {
		return nil, eris.Wrapf(ErrInvalidTransition, "submit from %s", req.Status)
	}
	if req.RequesterID != actorID {
		return nil, eris.Wrap(ErrForbidden, "only the requester may submit")
	}

	if err := s.Reserve(ctx, req.AccountID, req.EstimatedCredits, req.ID, actorID); err != nil {
		return nil, err
	}

	if req.EstimatedCredits <= s.cfg.AutoApproveThreshold {
		req.Status = model.RequestApproved
		req.ApprovalNote = "auto-approved under threshold"
		if err := s.store.UpdateRequest(ctx, *req); err != nil {
			return nil, err
		}
		if err := s.event(ctx, req.ID, model.EventSubmitted, actorID, ""); err != nil {
			return nil, err
		}
		if err := s.event(ctx, req.ID, model.EventApproved, "system", req.ApprovalNote); err != nil {
			return nil, err
		}
		return req, nil
	}

	expiresAt := s.now().UTC().Add(s.cfg.RequestTTL)
	req.Status = model.RequestPending
	req.ExpiresAt = &expiresAt
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventSubmitted, actorID, ""); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve records an approver's decision. The hold stays until fulfillment.
func (s *Service) Approve(ctx context.Context, requestID string, approver model.User, note string) (*model.UpgradeRequest, error) {
	if approver.Role != model.RoleApprover && approver.Role != model.RoleAdmin {
		return nil, eris.Wrap(ErrForbidden, "approver role required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, eris.Wrapf(ErrInvalidTransition, "approve from %s", req.Status)
	}

	req.Status = model.RequestApproved
	req.ApproverID = approver.ID
	req.ApprovalNote = note
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventApproved, approver.ID, note); err != nil {
		return nil, err
	}
	return req, nil
}

// Deny rejects a pending request with a mandatory reason and releases the
// hold.
func (s *Service) Deny(ctx context.Context, requestID string, approver model.User, reason string) (*model.UpgradeRequest, error) {
	if approver.Role != model.RoleApprover && approver.Role != model.RoleAdmin {
		return nil, eris.Wrap(ErrForbidden, "approver role required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, eris.Wrap(ErrConflict, "denial reason is required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, eris.Wrapf(ErrInvalidTransition, "deny from %s", req.Status)
	}

	if err := s.Release(ctx, req.AccountID, req.ID); err != nil {
		return nil, err
	}
	req.Status = model.RequestDenied
	req.ApproverID = approver.ID
	req.DenialReason = reason
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventDenied, approver.ID, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel withdraws a request before approval. Only the requester may cancel.
func (s *Service) Cancel(ctx context.Context, requestID, actorID string) (*model.UpgradeRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actorID {
		return nil, eris.Wrap(ErrForbidden, "only the requester may cancel")
	}
	if req.Status != model.RequestDraft && req.Status != model.RequestPending {
		return nil, eris.Wrapf(ErrInvalidTransition, "cancel from %s", req.Status)
	}

	if req.Status == model.RequestPending {
		if err := s.Release(ctx, req.AccountID, req.ID); err != nil {
			return nil, err
		}
	}
	req.Status = model.RequestCancelled
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventCancelled, actorID, ""); err != nil {
		return nil, err
	}
	return req, nil
}

// Fulfill settles an approved request at its actual cost, converting the
// hold and refunding any unused estimate.
func (s *Service) Fulfill(ctx context.Context, requestID string, actualCost int64) (*model.UpgradeRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestApproved {
		return nil, eris.Wrapf(ErrInvalidTransition, "fulfill from %s", req.Status)
	}

	if err := s.ConvertHold(ctx, req.AccountID, req.ID, actualCost, "system"); err != nil {
		return nil, err
	}
	req.Status = model.RequestFulfilled
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, err
	}
	if err := s.event(ctx, req.ID, model.EventFulfilled, "system", ""); err != nil {
		return nil, err
	}
	return req, nil
}

// SweepExpired expires pending requests past their deadline, releasing each
// hold, and flags requests entering the escalation window. Returns how many
// requests expired.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.store.ListPendingBefore(ctx, now.Add(s.cfg.EscalationWindow))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range due {
		if req.ExpiresAt == nil {
			continue
		}
		if !req.ExpiresAt.After(now) {
			if err := s.Release(ctx, req.AccountID, req.ID); err != nil && !eris.Is(err, ErrNotFound) {
				return expired, err
			}
			req.Status = model.RequestExpired
			if err := s.store.UpdateRequest(ctx, req); err != nil {
				return expired, err
			}
			if err := s.event(ctx, req.ID, model.EventExpired, "system", ""); err != nil {
				return expired, err
			}
			expired++
			continue
		}
		if !req.Escalated {
			req.Escalated = true
			if err := s.store.UpdateRequest(ctx, req); err != nil {
				return expired, err
			}
			zap.L().Info("ledger: request escalated near expiry",
				zap.String("request_id", req.ID),
				zap.Time("expires_at", *req.ExpiresAt))
		}
	}
	return expired, nil
}

// GetRequest loads one request with its event log.
func (s *Service) GetRequest(ctx context.Context, requestID string) (*RequestWithEvents, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &RequestWithEvents{Request: *req, Events: events}, nil
}

// ListRequests returns an account's requests, newest first.
func (s *Service) ListRequests(ctx context.Context, accountID string) ([]model.UpgradeRequest, error) {
	return s.store.ListRequests(ctx, accountID)
}

func (s *Service) event(ctx context.Context, requestID string, kind model.EventKind, actorID, note string) error {
	return s.store.AppendEvent(ctx, model.ApprovalEvent{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Kind:      kind,
		ActorID:   actorID,
		Note:      note,
		CreatedAt: s.now().UTC(),
	})
}
