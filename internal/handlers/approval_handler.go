package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jobhub/backend/internal/database"
	mW "github.com/jobhub/backend/internal/middleware"
	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/services"
)

// ApprovalWorkflow drives the time entry approval state machine.
type ApprovalWorkflow interface {
	SubmitForApproval(ctx context.Context, actorID, orderID string, entryIDs []string, note string) (*models.ApprovalRequest, error)
	ResolveApproval(ctx context.Context, actorID, orderID, requestID string, decision models.ApprovalStatus, approvedIDs []string, note string) (*models.ApprovalRequest, error)
	CustomerInitiatedApproval(ctx context.Context, actorID, orderID, note string) (*models.ApprovalRequest, error)
	GetTimeTracking(ctx context.Context, actorID, orderID string) (*services.TimeTrackingView, error)
}

// HoursBiller charges a customer for approved additional hours.
type HoursBiller interface {
	BillApprovedHours(ctx context.Context, actorID, orderID string) (*services.BillingHandle, error)
}

type ApprovalHandler struct {
	approvals ApprovalWorkflow
	billing   HoursBiller
	validator *services.ValidationHelper
}

func NewApprovalHandler(approvals ApprovalWorkflow, billing HoursBiller) *ApprovalHandler {
	return &ApprovalHandler{
		approvals: approvals,
		billing:   billing,
		validator: services.NewValidationHelper(),
	}
}

// Routes mounts the order time tracking endpoints.
func (h *ApprovalHandler) Routes(r chi.Router) {
	r.Route("/orders/{orderId}", func(r chi.Router) {
		r.Get("/time-tracking", h.GetTimeTracking)
		r.Post("/approval-requests", h.Submit)
		r.Post("/approval-requests/customer-initiated", h.CustomerInitiated)
		r.Post("/approval-requests/{requestId}/resolve", h.Resolve)
		r.Post("/billing", h.Bill)
	})
}

type submitApprovalRequest struct {
	TimeEntryIDs []string `json:"timeEntryIds" validate:"required,min=1,dive,required"`
	Note         string   `json:"note" validate:"max=2000"`
}

type resolveApprovalRequest struct {
	Decision         string   `json:"decision" validate:"required,oneof=approved rejected partially_approved"`
	ApprovedEntryIDs []string `json:"approvedEntryIds" validate:"omitempty,dive,required"`
	Note             string   `json:"note" validate:"max=2000"`
}

type customerApprovalRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// decodeBody reads exactly one JSON object into dst and validates it. It
// writes the error response itself and reports whether the caller may go on.
func (h *ApprovalHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID, ok
}

// Submit groups logged additional hours into an approval request
// @Summary Submit additional hours for approval
// @Description Provider submits logged additional time entries to the customer
// @Tags Time Tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body submitApprovalRequest true "Entries to submit"
// @Success 201 {object} models.ApprovalRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/approval-requests [post]
func (h *ApprovalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req submitApprovalRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	request, err := h.approvals.SubmitForApproval(r.Context(), userID, chi.URLParam(r, "orderId"), req.TimeEntryIDs, req.Note)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	services.SendJSONResponse(w, http.StatusCreated, request)
}

// Resolve records the customer's decision on an approval request
// @Summary Resolve an approval request
// @Description Customer approves, partially approves or rejects submitted hours
// @Tags Time Tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param requestId path string true "Approval request ID"
// @Param request body resolveApprovalRequest true "Decision"
// @Success 200 {object} models.ApprovalRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/approval-requests/{requestId}/resolve [post]
func (h *ApprovalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req resolveApprovalRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	request, err := h.approvals.ResolveApproval(r.Context(), userID,
		chi.URLParam(r, "orderId"), chi.URLParam(r, "requestId"),
		models.ApprovalStatus(req.Decision), req.ApprovedEntryIDs, req.Note)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, request)
}

// CustomerInitiated approves every logged additional entry without a provider request
// @Summary Approve all logged additional hours
// @Tags Time Tracking
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body customerApprovalRequest false "Optional note"
// @Success 201 {object} models.ApprovalRequest
// @Failure 403 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /orders/{orderId}/approval-requests/customer-initiated [post]
func (h *ApprovalHandler) CustomerInitiated(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req customerApprovalRequest
	if r.ContentLength != 0 && !h.decodeBody(w, r, &req) {
		return
	}

	request, err := h.approvals.CustomerInitiatedApproval(r.Context(), userID, chi.URLParam(r, "orderId"), req.Note)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	services.SendJSONResponse(w, http.StatusCreated, request)
}

// Bill creates the charge authorization for approved additional hours
// @Summary Bill approved additional hours
// @Description Customer starts payment for every approved, unbilled additional entry
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} services.BillingHandle
// @Failure 403 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /orders/{orderId}/billing [post]
func (h *ApprovalHandler) Bill(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	handle, err := h.billing.BillApprovedHours(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, handle)
}

// GetTimeTracking returns the time entries and billing summary of an order
// @Summary Get order time tracking
// @Tags Time Tracking
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} services.TimeTrackingView
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{orderId}/time-tracking [get]
func (h *ApprovalHandler) GetTimeTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	view, err := h.approvals.GetTimeTracking(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, view)
}

// sendServiceError maps service errors onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	var (
		notFound *services.NotFoundError
		external *services.ExternalCallError
		conflict *database.TransactionConflictError
	)

	switch {
	case errors.Is(err, services.ErrForbidden):
		services.SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case errors.As(err, &notFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrAlreadyResolved):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, services.ErrNothingToBill), errors.Is(err, services.ErrNothingToApprove):
		services.SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	case errors.Is(err, services.ErrInvalidDecision):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.As(err, &conflict):
		services.SendErrorResponse(w, "Order is being updated concurrently, retry", http.StatusConflict, nil)
	case errors.As(err, &external):
		services.SendErrorResponse(w, "Payment provider unavailable", http.StatusBadGateway, nil)
	case errors.Is(err, services.ErrStoreUnavailable):
		services.SendErrorResponse(w, "Service temporarily unavailable", http.StatusServiceUnavailable, nil)
	default:
		log.Printf("[API] Unhandled service error: %v", err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
