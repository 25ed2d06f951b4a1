package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

var _ gateway.Client = (*MockGatewayClient)(nil)

// MockGatewayClient is a scriptable gateway.Client. Tests preload payment
// intents and inject failures per operation; every call is recorded.
type MockGatewayClient struct {
	mu sync.Mutex

	Provider types.PaymentGatewayType

	// Errs maps an operation name (e.g. "CancelSubscription") to the
	// error that operation should return
	Errs map[string]error

	// Intents maps intent ID to its scripted snapshot
	Intents map[string]*gateway.PaymentIntentSnapshot

	// NextWebhookEvent is returned by VerifyWebhookSignature when set
	NextWebhookEvent *gateway.WebhookEvent

	// Calls records operation names in invocation order
	Calls []string

	subscriptionSeq int
}

func NewMockGatewayClient(provider types.PaymentGatewayType) *MockGatewayClient {
	return &MockGatewayClient{
		Provider: provider,
		Errs:     make(map[string]error),
		Intents:  make(map[string]*gateway.PaymentIntentSnapshot),
	}
}

// FailWith scripts op to return err
func (m *MockGatewayClient) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errs[op] = err
}

// AddIntent preloads a payment intent snapshot
func (m *MockGatewayClient) AddIntent(id string, status gateway.PaymentIntentStatus, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Intents[id] = &gateway.PaymentIntentSnapshot{
		ID:     id,
		Status: status,
		Amount: amount,
	}
}

// CallCount returns how many times op was invoked
func (m *MockGatewayClient) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.Calls {
		if call == op {
			count++
		}
	}
	return count
}

func (m *MockGatewayClient) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
	return m.Errs[op]
}

func (m *MockGatewayClient) ProviderType() types.PaymentGatewayType {
	return m.Provider
}

func (m *MockGatewayClient) CreateCustomer(ctx context.Context, sub *subscriber.Subscriber) (string, error) {
	if err := m.record("CreateCustomer"); err != nil {
		return "", err
	}
	return "cus_" + sub.ID, nil
}

func (m *MockGatewayClient) CreateSubscription(ctx context.Context, customerID string, tier types.SubscriptionTier, quantity int) (*gateway.SubscriptionSnapshot, error) {
	if err := m.record("CreateSubscription"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.subscriptionSeq++
	id := "gwsub_" + types.GenerateUUID()
	m.mu.Unlock()

	now := time.Now().UTC()
	return &gateway.SubscriptionSnapshot{
		ID:                 id,
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   types.NextBillingPeriod(now),
		Quantity:           quantity,
	}, nil
}

func (m *MockGatewayClient) UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int) (*gateway.SubscriptionSnapshot, error) {
	if err := m.record("UpdateSubscriptionQuantity"); err != nil {
		return nil, err
	}
	return &gateway.SubscriptionSnapshot{
		ID:       subscriptionID,
		Status:   "active",
		Quantity: quantity,
	}, nil
}

func (m *MockGatewayClient) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*gateway.SubscriptionSnapshot, error) {
	if err := m.record("CancelSubscription"); err != nil {
		return nil, err
	}
	status := "canceled"
	if atPeriodEnd {
		status = "active"
	}
	return &gateway.SubscriptionSnapshot{
		ID:                subscriptionID,
		Status:            status,
		CancelAtPeriodEnd: atPeriodEnd,
	}, nil
}

func (m *MockGatewayClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionSnapshot, error) {
	if err := m.record("RetrieveSubscription"); err != nil {
		return nil, err
	}
	return &gateway.SubscriptionSnapshot{ID: subscriptionID, Status: "active"}, nil
}

func (m *MockGatewayClient) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata types.Metadata) (*gateway.PaymentIntentSnapshot, error) {
	if err := m.record("CreatePaymentIntent"); err != nil {
		return nil, err
	}
	intent := &gateway.PaymentIntentSnapshot{
		ID:       "pi_" + types.GenerateUUID(),
		Status:   gateway.PaymentIntentStatusRequiresAction,
		Amount:   amount,
		Currency: currency,
	}
	m.mu.Lock()
	m.Intents[intent.ID] = intent
	m.mu.Unlock()
	return intent, nil
}

func (m *MockGatewayClient) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntentSnapshot, error) {
	if err := m.record("RetrievePaymentIntent"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	intent, ok := m.Intents[id]
	m.mu.Unlock()
	if !ok {
		return nil, ierr.NewError("payment intent not found").
			WithHintf("No payment intent %s", id).
			Mark(ierr.ErrNotFound)
	}
	return intent, nil
}

func (m *MockGatewayClient) ProcessRefund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal) (string, error) {
	if err := m.record("ProcessRefund"); err != nil {
		return "", err
	}
	return "re_" + types.GenerateUUID(), nil
}

func (m *MockGatewayClient) VerifyWebhookSignature(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	if err := m.record("VerifyWebhookSignature"); err != nil {
		return nil, err
	}
	if m.NextWebhookEvent != nil {
		return m.NextWebhookEvent, nil
	}
	return &gateway.WebhookEvent{ID: "evt_" + types.GenerateUUID(), Type: gateway.EventTypeIgnored}, nil
}
