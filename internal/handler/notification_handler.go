package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-service/internal/domain"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"github.com/kursadbilgin/notification-service/internal/service"
	"github.com/kursadbilgin/notification-service/internal/transport"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	acceptedMessage = "Notification request accepted and enqueued."
)

type NotificationService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
}

type NotificationHandler struct {
	service  NotificationService
	validate *validator.Validate
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return &NotificationHandler{service: service, validate: validate}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	api := router.Group("/api")
	api.Post("/notifications", h.CreateNotification)
	api.Get("/notifications/:id", h.GetNotification)
	api.Get("/notifications", h.ListNotifications)

	return nil
}

type createNotificationRequest struct {
	Recipient string `json:"recipient" validate:"required,email,max=255"`
	Subject   string `json:"subject" validate:"required,max=255"`
	Message   string `json:"message" validate:"required,max=10000"`
}

type acceptedResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

type notificationResponse struct {
	ID               string    `json:"id"`
	Recipient        string    `json:"recipient"`
	Subject          string    `json:"subject"`
	Message          string    `json:"message"`
	Status           string    `json:"status"`
	RetriesAttempted int       `json:"retriesAttempted"`
	LastErrorMessage *string   `json:"lastErrorMessage"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Subject = strings.TrimSpace(req.Subject)
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	correlationID := requestCorrelationID(c)
	ctx := observability.WithCorrelationID(c.UserContext(), correlationID)

	created, err := h.service.Submit(ctx, service.SubmitRequest{
		Recipient:     req.Recipient,
		Subject:       req.Subject,
		Message:       req.Message,
		CorrelationID: correlationID,
	})
	if err != nil {
		if created != nil && errors.Is(err, domain.ErrQueue) {
			return &transport.RecordError{ID: created.ID, Status: created.Status, Err: err}
		}
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(acceptedResponse{
		ID:        created.ID,
		Status:    created.Status.String(),
		Message:   acceptedMessage,
		Recipient: created.Recipient,
		Subject:   created.Subject,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	notification, err := h.service.GetByID(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}

	notifications, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return err
	}

	data := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, toNotificationResponse(&notifications[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(observability.CorrelationIDHeader)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	return notificationResponse{
		ID:               n.ID,
		Recipient:        n.Recipient,
		Subject:          n.Subject,
		Message:          n.Message,
		Status:           n.Status.String(),
		RetriesAttempted: n.RetriesAttempted,
		LastErrorMessage: n.LastErrorMessage,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}
