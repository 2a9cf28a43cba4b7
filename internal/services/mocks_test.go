package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jobhub/backend/internal/gateway"
	"github.com/jobhub/backend/internal/models"
	"github.com/jobhub/backend/internal/notify"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateChargeAuthorization(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeAuthorization, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeAuthorization), args.Error(1)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Transfer), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyNewOrder(ctx context.Context, orderID, customerID, providerID string, details notify.NewOrderDetails) error {
	args := m.Called(ctx, orderID, customerID, providerID, details)
	return args.Error(0)
}

func (m *MockNotifier) Close() {}

type MockOrderConverter struct {
	mock.Mock
}

func (m *MockOrderConverter) result(args mock.Arguments) (*MaterializeResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MaterializeResult), args.Error(1)
}

func (m *MockOrderConverter) MaterializeDraft(ctx context.Context, v StandardBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.result(m.Called(ctx, v, ev))
}

func (m *MockOrderConverter) MaterializeB2B(ctx context.Context, v B2BBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.result(m.Called(ctx, v, ev))
}

func (m *MockOrderConverter) MaterializeQuote(ctx context.Context, v QuoteBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.result(m.Called(ctx, v, ev))
}

func (m *MockOrderConverter) MaterializeMobile(ctx context.Context, v MobileBooking, ev *models.PaymentEvent) (*MaterializeResult, error) {
	return m.result(m.Called(ctx, v, ev))
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) SettleAdditionalHoursPayment(ctx context.Context, v AdditionalHoursPayment, ev *models.PaymentEvent) (*SettlementResult, error) {
	args := m.Called(ctx, v, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SettlementResult), args.Error(1)
}

type MockSubscriptionUpdater struct {
	mock.Mock
}

func (m *MockSubscriptionUpdater) ApplySubscription(ctx context.Context, v StorageSubscription) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}
