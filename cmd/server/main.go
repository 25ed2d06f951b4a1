package main

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/api"
	v1 "github.com/developer-chetaru/tribe365-billing/internal/api/v1"
	"github.com/developer-chetaru/tribe365-billing/internal/config"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway/paypal"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway/stripe"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/notification"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/pubsub/memory"
	"github.com/developer-chetaru/tribe365-billing/internal/repository"
	"github.com/developer-chetaru/tribe365-billing/internal/service"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// local development convenience, ignored when the file is absent
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
		),
		postgres.Module(),
		fx.Provide(
			// Repositories
			repository.NewSubscriberRepository,
			repository.NewSubscriptionRepository,
			repository.NewFailureEventRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,

			// PubSub and notifications
			memory.NewPubSub,
			notification.NewPublisher,

			// Payment gateways
			provideGatewayFactory,

			// Services
			service.NewServiceParams,
			service.NewSubscriberService,
			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewPaymentService,
			service.NewWebhookService,
			service.NewDunningService,

			// API
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			startServer,
			startDunningCron,
		),
	)
	app.Run()
}

func provideGatewayFactory(cfg *config.Configuration, log *logger.Logger) gateway.Factory {
	return gateway.NewFactory(
		stripe.NewClient(cfg.Stripe, log),
		paypal.NewClient(cfg.PayPal, log),
	)
}

func provideHandlers(
	log *logger.Logger,
	subscriberService service.SubscriberService,
	subscriptionService service.SubscriptionService,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	webhookService service.WebhookService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(),
		Subscriber:   v1.NewSubscriberHandler(subscriberService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, log),
		Invoice:      v1.NewInvoiceHandler(invoiceService, log),
		Payment:      v1.NewPaymentHandler(paymentService, log),
		Webhook:      v1.NewWebhookHandler(webhookService, log),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			return nil
		},
	})
}

// startDunningCron runs the daily billing sweep: overdue flagging, renewal
// invoice generation, the reminder cadence, suspensions and finalization of
// ended cancellations.
func startDunningCron(
	lc fx.Lifecycle,
	dunningService service.DunningService,
	log *logger.Logger,
) {
	c := cron.New()
	_, err := c.AddFunc("0 2 * * *", func() {
		ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
		ctx = types.SetUserID(ctx, types.DefaultUserID)

		result, err := dunningService.EvaluateSubscriptions(ctx, time.Now().UTC())
		if err != nil {
			log.Errorw("dunning sweep failed", "error", err)
			return
		}
		log.Infow("dunning sweep finished",
			"reminders_sent", result.RemindersSent,
			"suspended", result.Suspended,
			"finalized", result.Finalized,
			"invoices_overdue", result.InvoicesOverdue,
			"invoices_generated", result.InvoicesGenerated,
		)
	})
	if err != nil {
		log.Fatalf("failed to schedule dunning sweep: %v", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			return nil
		},
	})
}
