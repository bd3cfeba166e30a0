package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"teamorders/internal/amqp"
	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
)

var (
	ErrNotAllowed   = errors.New("identity may not place orders")
	ErrInvalidOrder = errors.New("invalid order line")
)

// Publisher announces committed submissions.
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, msg *amqp.OrderSubmittedMessage) error
}

// Receipt describes a persisted submission.
type Receipt struct {
	SubmissionID string
	Orders       []core.Order
	Total        core.Money
}

// OrderService persists carts to the ledger and announces them.
type OrderService struct {
	ledger    ledger.Writer
	publisher Publisher
	validate  *validator.Validate
	logger    *applog.Logger
	events    *applog.StructuredLogger
	newID     func() string
}

// NewOrderService wires the ledger writer and an optional publisher (nil
// disables publishing).
func NewOrderService(w ledger.Writer, publisher Publisher, logger *applog.Logger) *OrderService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &OrderService{
		ledger:    w,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.WithComponent(applog.ComponentOrder),
		events:    applog.NewStructuredLogger(logger),
		newID:     uuid.NewString,
	}
}

// Submit writes one ledger row per line with a positive quantity, all stamped
// with at and a fresh submission id. Prices are taken as submitted.
func (s *OrderService) Submit(ctx context.Context, id core.Identity, lines []core.OrderLine, at time.Time) (Receipt, error) {
	if !id.Valid() || !id.CanOrder() {
		return Receipt{}, ErrNotAllowed
	}

	rcpt := Receipt{SubmissionID: s.newID()}
	orders := make([]core.Order, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		l.Item = strings.TrimSpace(l.Item)
		l.Option = strings.TrimSpace(l.Option)
		if err := s.validate.Struct(l); err != nil {
			return Receipt{}, fmt.Errorf("%w: %s: %v", ErrInvalidOrder, core.ItemLabel(l.Item, l.Option), err)
		}
		if l.Price.Cents < 0 {
			return Receipt{}, fmt.Errorf("%w: negative price for %s", ErrInvalidOrder, core.ItemLabel(l.Item, l.Option))
		}
		orders = append(orders, core.Order{
			SubmissionID: rcpt.SubmissionID,
			Team:         id.Team,
			Member:       id.Member,
			PlacedAt:     at,
			Item:         l.Item,
			Option:       l.Option,
			Quantity:     l.Quantity,
			Price:        l.Price,
		})
		rcpt.Total = rcpt.Total.Add(l.Subtotal())
	}
	if len(orders) == 0 {
		return Receipt{}, core.ErrEmptyOrder
	}

	stored, err := s.ledger.AppendOrders(ctx, orders)
	if err != nil {
		return Receipt{}, fmt.Errorf("save order: %w", err)
	}
	rcpt.Orders = stored

	s.events.LogOrderSubmitted(ctx, id.Team, id.Member, rcpt.SubmissionID, len(stored), rcpt.Total.Cents)

	s.publish(ctx, stored)
	return rcpt, nil
}

// publish never fails the submission; the mirror sweep picks up lost messages.
func (s *OrderService) publish(ctx context.Context, stored []core.Order) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP not configured, skipping order message")
		return
	}
	msg := amqp.NewOrderSubmittedMessage(stored)
	if err := s.publisher.PublishOrderSubmitted(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish order message",
			applog.FieldSubmission, msg.SubmissionID,
			"error", err)
	}
}
