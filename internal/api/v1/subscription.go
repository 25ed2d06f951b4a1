package v1

import (
	"net/http"

	"github.com/developer-chetaru/tribe365-billing/internal/api/dto"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/service"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, log: log}
}

// @Summary Activate a subscription
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.CreateSubscriptionRequest true "Subscription"
// @Success 201 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /subscriptions [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	sub, err := h.service.ActivateSubscription(c.Request.Context(), req.SubscriberID, req.Tier, req.UserCount)
	if err != nil {
		h.log.Errorw("failed to activate subscription", "error", err, "subscriber_id", req.SubscriberID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.SubscriptionResponse{Subscription: sub})
}

// @Summary Get a subscription by ID
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.service.GetSubscription(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}

// @Summary List subscriptions
// @Tags Subscriptions
// @Produce json
// @Param subscriber_id query string false "Filter by subscriber"
// @Success 200 {object} dto.ListSubscriptionsResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filter types.SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	subs, err := h.service.ListSubscriptions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return &dto.SubscriptionResponse{Subscription: sub}
	})
	c.JSON(http.StatusOK, &dto.ListSubscriptionsResponse{Items: items, Total: len(items)})
}

// @Summary Preview the next renewal charge
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} service.RenewalQuote
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/renewal-quote [get]
func (h *SubscriptionHandler) GetRenewalQuote(c *gin.Context) {
	id := c.Param("id")
	quote, err := h.service.RenewalQuote(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// @Summary Change the seat count mid-cycle
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param quantity body dto.UpdateQuantityRequest true "New seat count"
// @Success 200 {object} service.QuantityChangeResult
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/quantity [put]
func (h *SubscriptionHandler) UpdateQuantity(c *gin.Context) {
	id := c.Param("id")
	var req dto.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.service.UpdateQuantity(c.Request.Context(), id, req.UserCount)
	if err != nil {
		h.log.Errorw("failed to update quantity", "error", err, "subscription_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Cancel a subscription
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param cancel body dto.CancelSubscriptionRequest false "Cancellation options"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")
	var req dto.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	sub, err := h.service.Cancel(c.Request.Context(), id, req.AtPeriodEnd)
	if err != nil {
		h.log.Errorw("failed to cancel subscription", "error", err, "subscription_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}
