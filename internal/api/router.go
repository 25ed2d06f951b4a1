package api

import (
	v1 "github.com/developer-chetaru/tribe365-billing/internal/api/v1"
	"github.com/developer-chetaru/tribe365-billing/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscriber   *v1.SubscriberHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Payment      *v1.PaymentHandler
	Webhook      *v1.WebhookHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// webhooks authenticate by signature; the tenant middleware only
	// supplies the default tenant scope for the resulting writes
	router.POST("/webhooks/:provider", middleware.TenantMiddleware, handlers.Webhook.HandleWebhook)

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.TenantMiddleware)
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	subscribers := router.Group("/subscribers")
	{
		subscribers.POST("", handlers.Subscriber.CreateSubscriber)
		subscribers.GET("/lookup", handlers.Subscriber.LookupSubscriber)
		subscribers.GET("/:id", handlers.Subscriber.GetSubscriber)
		subscribers.PUT("/:id/seats", handlers.Subscriber.UpdateSeatCount)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.GET("/:id/renewal-quote", handlers.Subscription.GetRenewalQuote)
		subscriptions.PUT("/:id/quantity", handlers.Subscription.UpdateQuantity)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/confirm-payment", handlers.Payment.ConfirmPayment)
		invoices.POST("/:id/manual-payment", handlers.Payment.RecordManualPayment)
	}

	payments := router.Group("/payments")
	{
		payments.GET("", handlers.Payment.ListPayments)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.POST("/:id/confirm", handlers.Payment.ConfirmManualPayment)
		payments.POST("/:id/refund", handlers.Payment.RefundPayment)
	}
}
