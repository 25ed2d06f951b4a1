package repository

import (
	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	postgresRepo "github.com/developer-chetaru/tribe365-billing/internal/repository/postgres"
)

func NewSubscriberRepository(client postgres.IClient, logger *logger.Logger) subscriber.Repository {
	return postgresRepo.NewSubscriberRepository(client, logger)
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(client, logger)
}

func NewFailureEventRepository(client postgres.IClient, logger *logger.Logger) subscription.FailureEventRepository {
	return postgresRepo.NewFailureEventRepository(client, logger)
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(client, logger)
}

func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(client, logger)
}
