package v1

import (
	"net/http"

	"github.com/developer-chetaru/tribe365-billing/internal/api/dto"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/service"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/gin-gonic/gin"
)

type SubscriberHandler struct {
	service service.SubscriberService
	log     *logger.Logger
}

func NewSubscriberHandler(service service.SubscriberService, log *logger.Logger) *SubscriberHandler {
	return &SubscriberHandler{service: service, log: log}
}

// @Summary Register a billing identity
// @Tags Subscribers
// @Accept json
// @Produce json
// @Param subscriber body dto.CreateSubscriberRequest true "Subscriber"
// @Success 201 {object} dto.SubscriberResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscribers [post]
func (h *SubscriberHandler) CreateSubscriber(c *gin.Context) {
	var req dto.CreateSubscriberRequest
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

	sub, err := h.service.CreateSubscriber(c.Request.Context(), req.ToSubscriber())
	if err != nil {
		h.log.Errorw("failed to create subscriber", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.SubscriberResponse{Subscriber: sub})
}

// @Summary Get a subscriber by ID
// @Tags Subscribers
// @Produce json
// @Param id path string true "Subscriber ID"
// @Success 200 {object} dto.SubscriberResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscribers/{id} [get]
func (h *SubscriberHandler) GetSubscriber(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Subscriber ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.service.GetSubscriber(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriberResponse{Subscriber: sub})
}

// @Summary Look up the subscriber for an owner
// @Tags Subscribers
// @Produce json
// @Param owner_type query string true "Owner type (user or organisation)"
// @Param owner_id query string true "Owner ID"
// @Success 200 {object} dto.SubscriberResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscribers/lookup [get]
func (h *SubscriberHandler) LookupSubscriber(c *gin.Context) {
	ownerType := types.SubscriberOwnerType(c.Query("owner_type"))
	ownerID := c.Query("owner_id")
	if err := ownerType.Validate(); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Owner type must be user or organisation").
			Mark(ierr.ErrValidation))
		return
	}
	if ownerID == "" {
		c.Error(ierr.NewError("owner_id is required").
			WithHint("Owner ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.service.GetByOwner(c.Request.Context(), ownerType, ownerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriberResponse{Subscriber: sub})
}

// @Summary Update the billable seat count
// @Tags Subscribers
// @Accept json
// @Produce json
// @Param id path string true "Subscriber ID"
// @Param seats body dto.UpdateSeatCountRequest true "Seat count"
// @Success 200 {object} dto.SubscriberResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscribers/{id}/seats [put]
func (h *SubscriberHandler) UpdateSeatCount(c *gin.Context) {
	id := c.Param("id")
	var req dto.UpdateSeatCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.service.UpdateSeatCount(c.Request.Context(), id, req.ActiveUserCount)
	if err != nil {
		h.log.Errorw("failed to update seat count", "error", err, "subscriber_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriberResponse{Subscriber: sub})
}
