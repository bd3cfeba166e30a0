package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"teamorders/internal/core"
)

// OrderSubmittedType is the routing type of OrderSubmittedMessage.
const OrderSubmittedType = "order.submitted"

// OrderLine is one persisted ledger row of a submission.
type OrderLine struct {
	OrderID    int64  `json:"order_id"`
	Item       string `json:"item"`
	Option     string `json:"option,omitempty"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderSubmittedMessage announces a committed submission. It carries the
// full lines so the mirror worker can append them without a ledger read.
type OrderSubmittedMessage struct {
	Type         string      `json:"type"`
	SubmissionID string      `json:"submission_id"`
	Team         string      `json:"team"`
	Member       string      `json:"member"`
	PlacedAt     time.Time   `json:"placed_at"`
	Lines        []OrderLine `json:"lines"`
	Timestamp    time.Time   `json:"timestamp"`
}

// NewOrderSubmittedMessage builds the message for rows that share a submission.
func NewOrderSubmittedMessage(orders []core.Order) *OrderSubmittedMessage {
	msg := &OrderSubmittedMessage{
		Type:      OrderSubmittedType,
		Timestamp: time.Now(),
		Lines:     make([]OrderLine, 0, len(orders)),
	}
	if len(orders) > 0 {
		msg.SubmissionID = orders[0].SubmissionID
		msg.Team = orders[0].Team
		msg.Member = orders[0].Member
		msg.PlacedAt = orders[0].PlacedAt
	}
	for _, o := range orders {
		msg.Lines = append(msg.Lines, OrderLine{
			OrderID:    o.ID,
			Item:       o.Item,
			Option:     o.Option,
			Quantity:   o.Quantity,
			PriceCents: o.Price.Cents,
		})
	}
	return msg
}

// Orders expands the message back into ledger rows.
func (m *OrderSubmittedMessage) Orders() []core.Order {
	out := make([]core.Order, 0, len(m.Lines))
	for _, l := range m.Lines {
		out = append(out, core.Order{
			ID:           l.OrderID,
			SubmissionID: m.SubmissionID,
			Team:         m.Team,
			Member:       m.Member,
			PlacedAt:     m.PlacedAt,
			Item:         l.Item,
			Option:       l.Option,
			Quantity:     l.Quantity,
			Price:        core.Money{Cents: l.PriceCents},
		})
	}
	return out
}

// OrderIDs returns the ledger ids of the lines.
func (m *OrderSubmittedMessage) OrderIDs() []int64 {
	ids := make([]int64, 0, len(m.Lines))
	for _, l := range m.Lines {
		ids = append(ids, l.OrderID)
	}
	return ids
}

// ToJSON converts the message to JSON bytes
func (m *OrderSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OrderSubmittedMessageFromJSON decodes and sanity-checks a message body.
func OrderSubmittedMessageFromJSON(data []byte) (*OrderSubmittedMessage, error) {
	var msg OrderSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != OrderSubmittedType {
		return nil, errors.New("unexpected message type " + msg.Type)
	}
	if msg.SubmissionID == "" {
		return nil, errors.New("message has no submission id")
	}
	return &msg, nil
}
