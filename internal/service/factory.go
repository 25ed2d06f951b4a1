package service

import (
	"github.com/developer-chetaru/tribe365-billing/internal/config"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/notification"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubscriberRepo   subscriber.Repository
	SubRepo          subscription.Repository
	FailureEventRepo subscription.FailureEventRepository
	InvoiceRepo      invoice.Repository
	PaymentRepo      payment.Repository

	// External integrations
	GatewayFactory gateway.Factory
	Publisher      notification.Publisher
}

func NewServiceParams(
	logger *logger.Logger,
	cfg *config.Configuration,
	db postgres.IClient,
	subscriberRepo subscriber.Repository,
	subRepo subscription.Repository,
	failureEventRepo subscription.FailureEventRepository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	gatewayFactory gateway.Factory,
	publisher notification.Publisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           cfg,
		DB:               db,
		SubscriberRepo:   subscriberRepo,
		SubRepo:          subRepo,
		FailureEventRepo: failureEventRepo,
		InvoiceRepo:      invoiceRepo,
		PaymentRepo:      paymentRepo,
		GatewayFactory:   gatewayFactory,
		Publisher:        publisher,
	}
}
