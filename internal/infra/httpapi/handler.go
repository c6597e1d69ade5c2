package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pnr_tracker/internal/app"
	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, userID string, input app.SubscribeInput) (*subscription.Subscription, error)
	List(ctx context.Context, userID string) ([]*subscription.Subscription, error)
	Get(ctx context.Context, userID, id string) (*subscription.Subscription, error)
	Update(ctx context.Context, userID, id string, patch subscription.Patch) (*subscription.Subscription, error)
	Delete(ctx context.Context, userID, id string) error
	Notifications(ctx context.Context, userID, id string) ([]*notification.Record, error)
}

type StatusService interface {
	RefreshSubscription(ctx context.Context, userID, id string) (*app.RefreshResult, error)
	StatusByPNR(ctx context.Context, userID, number string) (*app.RefreshResult, error)
}

type Handler struct {
	subs   SubscriptionService
	status StatusService
	logger *logrus.Entry
}

func NewHandler(subs SubscriptionService, status StatusService, logger *logrus.Entry) *Handler {
	return &Handler{subs: subs, status: status, logger: logger}
}

type subscribeRequest struct {
	PNRNumber      string                       `json:"pnrNumber" binding:"required"`
	PassengerName  string                       `json:"passengerName"`
	JourneyDetails *subscription.JourneyDetails `json:"journeyDetails"`
}

type updateRequest struct {
	PassengerName  *string                      `json:"passengerName"`
	JourneyDetails *subscription.JourneyDetails `json:"journeyDetails"`
	IsActive       *bool                        `json:"isActive"`
}

type statusResponse struct {
	PNRNumber    string                     `json:"pnrNumber"`
	Status       pnr.StatusSnapshot         `json:"status"`
	Changed      bool                       `json:"changed"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
}

func (h *Handler) Subscribe(c *gin.Context) {
	var in subscribeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := app.SubscribeInput{PNRNumber: in.PNRNumber, PassengerName: in.PassengerName}
	if in.JourneyDetails != nil {
		input.Journey = *in.JourneyDetails
	}

	sub, err := h.subs.Subscribe(c.Request.Context(), currentUser(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Successfully subscribed to PNR updates", "subscription": sub})
}

func (h *Handler) List(c *gin.Context) {
	subs, err := h.subs.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) Get(c *gin.Context) {
	sub, err := h.subs.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) Update(c *gin.Context) {
	var in updateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.subs.Update(c.Request.Context(), currentUser(c), c.Param("id"), subscription.Patch{
		PassengerName: in.PassengerName,
		Journey:       in.JourneyDetails,
		IsActive:      in.IsActive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.subs.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription deleted successfully"})
}

func (h *Handler) Notifications(c *gin.Context) {
	records, err := h.subs.Notifications(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Refresh(c *gin.Context) {
	res, err := h.status.RefreshSubscription(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		PNRNumber:    res.Subscription.PNRNumber,
		Status:       res.Snapshot,
		Changed:      res.Changed,
		Subscription: res.Subscription,
	})
}

func (h *Handler) StatusByPNR(c *gin.Context) {
	number := c.Param("pnr")
	res, err := h.status.StatusByPNR(c.Request.Context(), currentUser(c), number)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		PNRNumber:    number,
		Status:       res.Snapshot,
		Changed:      res.Changed,
		Subscription: res.Subscription,
	})
}

// fail maps domain errors onto HTTP status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	var fetchErr *pnr.FetchError
	switch {
	case errors.Is(err, pnr.ErrInvalidNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, subscription.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "PNR subscription not found"})
	case errors.Is(err, subscription.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "You are already subscribed to this PNR"})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch PNR status", "details": fetchErr.Cause})
	case errors.Is(err, pnr.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch PNR status"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
