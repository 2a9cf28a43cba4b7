package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobhub/backend/internal/database"
	mW "github.com/jobhub/backend/internal/middleware"
	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/services"
)

type approvalFixture struct {
	approvals *MockApprovals
	billing   *MockBiller
	router    chi.Router
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{approvals: new(MockApprovals), billing: new(MockBiller)}
	h := NewApprovalHandler(f.approvals, f.billing)
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	f.router = r
	return f
}

func (f *approvalFixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(mW.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestApprovalHandler_Submit(t *testing.T) {
	path := "/api/v1/orders/o1/approval-requests"

	t.Run("creates the request", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("SubmitForApproval", mock.Anything, "prov1", "o1", []string{"te1", "te2"}, "2h extra").
			Return(&models.ApprovalRequest{ID: "ar-1", OrderID: "o1", Status: models.ApprovalPending, TotalAmount: 13500}, nil).Once()

		rec := f.do(http.MethodPost, path, "prov1", `{"timeEntryIds":["te1","te2"],"note":"2h extra"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var got models.ApprovalRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ar-1", got.ID)
		assert.Equal(t, int64(13500), got.TotalAmount)
		f.approvals.AssertExpectations(t)
	})

	t.Run("requires authentication", func(t *testing.T) {
		f := newApprovalFixture()
		rec := f.do(http.MethodPost, path, "", `{"timeEntryIds":["te1"]}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty entry list fails validation", func(t *testing.T) {
		f := newApprovalFixture()
		rec := f.do(http.MethodPost, path, "prov1", `{"timeEntryIds":[]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp services.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "timeEntryIds")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		f := newApprovalFixture()
		rec := f.do(http.MethodPost, path, "prov1", `{"timeEntryIds":["te1"],"amount":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trailing json is rejected", func(t *testing.T) {
		f := newApprovalFixture()
		rec := f.do(http.MethodPost, path, "prov1", `{"timeEntryIds":["te1"]}{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestApprovalHandler_Resolve(t *testing.T) {
	path := "/api/v1/orders/o1/approval-requests/ar-1/resolve"

	t.Run("partial approval", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("ResolveApproval", mock.Anything, "cust1", "o1", "ar-1",
			models.ApprovalPartiallyApproved, []string{"te1"}, "").
			Return(&models.ApprovalRequest{ID: "ar-1", Status: models.ApprovalPartiallyApproved}, nil).Once()

		rec := f.do(http.MethodPost, path, "cust1", `{"decision":"partially_approved","approvedEntryIds":["te1"]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"partially_approved"`)
		f.approvals.AssertExpectations(t)
	})

	t.Run("unknown decision", func(t *testing.T) {
		f := newApprovalFixture()
		rec := f.do(http.MethodPost, path, "cust1", `{"decision":"maybe"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.approvals.AssertNotCalled(t, "ResolveApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already resolved", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("ResolveApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrAlreadyResolved)

		rec := f.do(http.MethodPost, path, "cust1", `{"decision":"approved"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestApprovalHandler_CustomerInitiated(t *testing.T) {
	path := "/api/v1/orders/o1/approval-requests/customer-initiated"

	t.Run("without body", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("CustomerInitiatedApproval", mock.Anything, "cust1", "o1", "").
			Return(&models.ApprovalRequest{ID: "ar-1", Status: models.ApprovalApproved, CustomerInitiated: true}, nil).Once()

		rec := f.do(http.MethodPost, path, "cust1", "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"customerInitiated":true`)
	})

	t.Run("with note", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("CustomerInitiatedApproval", mock.Anything, "cust1", "o1", "all fine").
			Return(&models.ApprovalRequest{ID: "ar-1"}, nil).Once()

		rec := f.do(http.MethodPost, path, "cust1", `{"note":"all fine"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		f.approvals.AssertExpectations(t)
	})

	t.Run("nothing to approve", func(t *testing.T) {
		f := newApprovalFixture()
		f.approvals.On("CustomerInitiatedApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrNothingToApprove)

		rec := f.do(http.MethodPost, path, "cust1", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestApprovalHandler_Bill(t *testing.T) {
	path := "/api/v1/orders/o1/billing"

	t.Run("returns the payment handle", func(t *testing.T) {
		f := newApprovalFixture()
		f.billing.On("BillApprovedHours", mock.Anything, "cust1", "o1").
			Return(&services.BillingHandle{OrderID: "o1", PaymentIntentID: "pi_extra", ClientSecret: "secret", GrossAmount: 13500}, nil).Once()

		rec := f.do(http.MethodPost, path, "cust1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got services.BillingHandle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "pi_extra", got.PaymentIntentID)
		assert.Equal(t, int64(13500), got.GrossAmount)
	})

	t.Run("error statuses", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"forbidden", services.ErrForbidden, http.StatusForbidden},
			{"not found", &services.NotFoundError{Kind: "order", ID: "o1"}, http.StatusNotFound},
			{"nothing to bill", services.ErrNothingToBill, http.StatusUnprocessableEntity},
			{"gateway", &services.ExternalCallError{Op: "create charge authorization", Err: errors.New("timeout")}, http.StatusBadGateway},
			{"conflict", &database.TransactionConflictError{Attempts: 3, Err: errors.New("40001")}, http.StatusConflict},
			{"store", fmt.Errorf("begin: %w", services.ErrStoreUnavailable), http.StatusServiceUnavailable},
			{"unexpected", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newApprovalFixture()
				f.billing.On("BillApprovedHours", mock.Anything, "cust1", "o1").Return(nil, tt.err)

				rec := f.do(http.MethodPost, path, "cust1", "")
				assert.Equal(t, tt.want, rec.Code)
			})
		}
	})
}

func TestApprovalHandler_GetTimeTracking(t *testing.T) {
	f := newApprovalFixture()
	f.approvals.On("GetTimeTracking", mock.Anything, "cust1", "o1").Return(&services.TimeTrackingView{
		OrderID:     "o1",
		Summary:     models.TimeTrackingSummary{ApprovedAmount: 13500},
		TimeEntries: []models.TimeEntry{{ID: "te1", Status: models.TimeEntryBillingPending}},
	}, nil).Once()

	rec := f.do(http.MethodGet, "/api/v1/orders/o1/time-tracking", "cust1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got services.TimeTrackingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(13500), got.Summary.ApprovedAmount)
	require.Len(t, got.TimeEntries, 1)
	assert.Equal(t, models.TimeEntryBillingPending, got.TimeEntries[0].Status)
}
