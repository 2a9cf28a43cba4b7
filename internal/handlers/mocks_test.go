package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/services"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, payload []byte, header string) (*models.PaymentEvent, error) {
	args := m.Called(ctx, payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentEvent), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Route(ctx context.Context, ev *models.PaymentEvent) (*services.RouteResult, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RouteResult), args.Error(1)
}

type MockApprovals struct {
	mock.Mock
}

func (m *MockApprovals) request(args mock.Arguments) (*models.ApprovalRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApprovalRequest), args.Error(1)
}

func (m *MockApprovals) SubmitForApproval(ctx context.Context, actorID, orderID string, entryIDs []string, note string) (*models.ApprovalRequest, error) {
	return m.request(m.Called(ctx, actorID, orderID, entryIDs, note))
}

func (m *MockApprovals) ResolveApproval(ctx context.Context, actorID, orderID, requestID string, decision models.ApprovalStatus, approvedIDs []string, note string) (*models.ApprovalRequest, error) {
	return m.request(m.Called(ctx, actorID, orderID, requestID, decision, approvedIDs, note))
}

func (m *MockApprovals) CustomerInitiatedApproval(ctx context.Context, actorID, orderID, note string) (*models.ApprovalRequest, error) {
	return m.request(m.Called(ctx, actorID, orderID, note))
}

func (m *MockApprovals) GetTimeTracking(ctx context.Context, actorID, orderID string) (*services.TimeTrackingView, error) {
	args := m.Called(ctx, actorID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TimeTrackingView), args.Error(1)
}

type MockBiller struct {
	mock.Mock
}

func (m *MockBiller) BillApprovedHours(ctx context.Context, actorID, orderID string) (*services.BillingHandle, error) {
	args := m.Called(ctx, actorID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BillingHandle), args.Error(1)
}
