package testutil

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/config"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriberRepo   subscriber.Repository
	SubscriptionRepo subscription.Repository
	FailureEventRepo subscription.FailureEventRepository
	InvoiceRepo      invoice.Repository
	PaymentRepo      payment.Repository
}

// BaseServiceTestSuite provides common setup for service tests: in-memory
// stores behind a transactional mock client, scripted gateways and a
// capturing notification publisher.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	logger *logger.Logger
	config *config.Configuration
	db     *MockPostgresClient

	subscriberStore   *InMemorySubscriberStore
	subscriptionStore *InMemorySubscriptionStore
	failureEventStore *InMemoryFailureEventStore
	invoiceStore      *InMemoryInvoiceStore
	paymentStore      *InMemoryPaymentStore

	stripeGateway *MockGatewayClient
	paypalGateway *MockGatewayClient
	publisher     *InMemoryPublisher
}

// SetupTest initializes fresh state before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.logger = &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	s.config = config.GetDefaultConfig()

	s.subscriberStore = NewInMemorySubscriberStore()
	s.subscriptionStore = NewInMemorySubscriptionStore()
	s.failureEventStore = NewInMemoryFailureEventStore()
	s.invoiceStore = NewInMemoryInvoiceStore()
	s.paymentStore = NewInMemoryPaymentStore()

	s.db = NewMockPostgresClient(s.logger,
		s.subscriberStore,
		s.subscriptionStore,
		s.failureEventStore,
		s.invoiceStore,
		s.paymentStore,
	)

	s.stripeGateway = NewMockGatewayClient(types.PaymentGatewayTypeStripe)
	s.paypalGateway = NewMockGatewayClient(types.PaymentGatewayTypePayPal)
	s.publisher = NewInMemoryPublisher()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return Stores{
		SubscriberRepo:   s.subscriberStore,
		SubscriptionRepo: s.subscriptionStore,
		FailureEventRepo: s.failureEventStore,
		InvoiceRepo:      s.invoiceStore,
		PaymentRepo:      s.paymentStore,
	}
}

func (s *BaseServiceTestSuite) GetPaymentStore() *InMemoryPaymentStore {
	return s.paymentStore
}

func (s *BaseServiceTestSuite) GetStripeGateway() *MockGatewayClient {
	return s.stripeGateway
}

func (s *BaseServiceTestSuite) GetPayPalGateway() *MockGatewayClient {
	return s.paypalGateway
}

func (s *BaseServiceTestSuite) GetGatewayFactory() gateway.Factory {
	return gateway.NewFactory(s.stripeGateway, s.paypalGateway)
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisher {
	return s.publisher
}
