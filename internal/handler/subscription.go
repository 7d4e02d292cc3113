package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/service"
)

// SubscriptionHandler handles HTTP requests for subscription endpoints.
type SubscriptionHandler struct {
	subSvc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subSvc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc}
}

// createSubscriptionRequest is the JSON request body for POST /subscriptions.
type createSubscriptionRequest struct {
	UserID          string `json:"user_id"`
	PlanName        string `json:"plan_name"`
	Frequency       string `json:"frequency"`
	TrialDays       int    `json:"trial_days"`
	ContractEndDate string `json:"contract_end_date"`
}

// subscriptionResponse is the JSON representation of a subscription.
type subscriptionResponse struct {
	SubscriptionID    string  `json:"subscription_id"`
	UserID            string  `json:"user_id"`
	PlanName          string  `json:"plan_name"`
	Frequency         string  `json:"frequency"`
	Status            string  `json:"status"`
	NextBillingDate   string  `json:"next_billing_date"`
	ContractStartDate string  `json:"contract_start_date"`
	ContractEndDate   *string `json:"contract_end_date"`
	TrialEndDate      *string `json:"trial_end_date"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// Create handles POST /subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var contractEnd *time.Time
	if req.ContractEndDate != "" {
		t, err := parseDate(req.ContractEndDate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "contract_end_date must be a valid date (YYYY-MM-DD)")
			return
		}
		contractEnd = &t
	}

	sub, err := h.subSvc.Create(service.CreateSubscriptionRequest{
		UserID:          req.UserID,
		PlanName:        req.PlanName,
		Frequency:       req.Frequency,
		TrialDays:       req.TrialDays,
		ContractEndDate: contractEnd,
	})
	if err != nil {
		mapSubscriptionError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildSubscriptionResponse(sub))
}

// Get handles GET /subscriptions/{subscription_id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subSvc.Get(chi.URLParam(r, "subscription_id"))
	if err != nil {
		mapSubscriptionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildSubscriptionResponse(sub))
}

// Renew handles POST /subscriptions/{subscription_id}/renew.
func (h *SubscriptionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.subSvc.Renew)
}

// PaymentFailure handles POST /subscriptions/{subscription_id}/payment-failure.
func (h *SubscriptionHandler) PaymentFailure(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.subSvc.RecordPaymentFailure)
}

// Pause handles POST /subscriptions/{subscription_id}/pause.
func (h *SubscriptionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.subSvc.Pause)
}

// Resume handles POST /subscriptions/{subscription_id}/resume.
func (h *SubscriptionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.subSvc.Resume)
}

// Cancel handles DELETE /subscriptions/{subscription_id}.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.subSvc.Cancel)
}

func (h *SubscriptionHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(id string) (*domain.Subscription, error),
) {
	sub, err := op(chi.URLParam(r, "subscription_id"))
	if err != nil {
		mapSubscriptionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildSubscriptionResponse(sub))
}

func buildSubscriptionResponse(sub *domain.Subscription) subscriptionResponse {
	var contractEnd, trialEnd *string
	if sub.ContractEndDate != nil {
		s := sub.ContractEndDate.Format("2006-01-02")
		contractEnd = &s
	}
	if sub.TrialEndDate != nil {
		s := sub.TrialEndDate.Format("2006-01-02")
		trialEnd = &s
	}

	return subscriptionResponse{
		SubscriptionID:    sub.SubscriptionID,
		UserID:            sub.UserID,
		PlanName:          sub.PlanName,
		Frequency:         string(sub.Frequency),
		Status:            string(sub.Status),
		NextBillingDate:   sub.NextBillingDate.Format("2006-01-02"),
		ContractStartDate: sub.ContractStartDate.Format("2006-01-02"),
		ContractEndDate:   contractEnd,
		TrialEndDate:      trialEnd,
		CreatedAt:         formatTime(sub.CreatedAt),
		UpdatedAt:         formatTime(sub.UpdatedAt),
	}
}

// mapSubscriptionError maps domain errors to HTTP responses for
// subscription endpoints.
func mapSubscriptionError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	var transitionErr *domain.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		WriteError(w, http.StatusConflict, "invalid_state_transition", transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		WriteError(w, http.StatusNotFound, "subscription_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
