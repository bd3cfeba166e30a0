// Package worker copies submitted orders to the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"time"

	"teamorders/internal/amqp"
	"teamorders/internal/core"
	"teamorders/internal/ledger"
	applog "teamorders/internal/log"
	"teamorders/internal/sheets"
)

// MirrorWorker appends submissions to the mirror and stamps the ledger rows.
type MirrorWorker struct {
	tracker   ledger.MirrorTracker
	mirror    sheets.OrderMirror
	batchSize int
	// grace leaves fresh rows to the message consumer before the sweep takes them.
	grace  time.Duration
	logger *applog.Logger
	events *applog.StructuredLogger
}

func NewMirrorWorker(tracker ledger.MirrorTracker, mirror sheets.OrderMirror, batchSize int, logger *applog.Logger) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &MirrorWorker{
		tracker:   tracker,
		mirror:    mirror,
		batchSize: batchSize,
		grace:     time.Minute,
		logger:    logger.WithComponent(applog.ComponentWorker),
		events:    applog.NewStructuredLogger(logger),
	}
}

// HandleOrderSubmitted mirrors one order.submitted message.
func (w *MirrorWorker) HandleOrderSubmitted(ctx context.Context, msg *amqp.OrderSubmittedMessage) error {
	w.logger.InfoContext(ctx, "Processing order message",
		applog.FieldSubmission, msg.SubmissionID,
		applog.FieldTeam, msg.Team,
		applog.FieldLines, len(msg.Lines))

	if err := w.mirrorOrders(ctx, msg.Orders()); err != nil {
		return fmt.Errorf("mirror submission %s: %w", msg.SubmissionID, err)
	}
	return nil
}

// ProcessPending mirrors up to one batch of rows whose message was lost.
// It returns the number of rows handled.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep once when the worker starts.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if n == 0 {
		w.logger.InfoContext(ctx, "No pending orders found on startup")
	} else {
		w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldRows, n)
	}
	return nil
}

func (w *MirrorWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.tracker.PendingMirror(ctx, limit, w.grace)
	if err != nil {
		return 0, fmt.Errorf("get pending orders: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending orders", applog.FieldRows, len(pending))

	handled := 0
	for _, group := range bySubmission(pending) {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		if err := w.mirrorOrders(ctx, group); err != nil {
			w.events.LogError(ctx, "Failed to mirror pending submission", err,
				applog.ComponentWorker, applog.OpMirror,
				applog.LogFields{applog.FieldSubmission: group[0].SubmissionID})
			continue
		}
		handled += len(group)
	}
	return handled, nil
}

func (w *MirrorWorker) mirrorOrders(ctx context.Context, orders []core.Order) error {
	if len(orders) == 0 {
		return nil
	}
	written, err := w.mirror.AppendOrders(ctx, orders)
	if err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		if o.ID != 0 {
			ids = append(ids, o.ID)
		}
	}
	if err := w.tracker.MarkMirrored(ctx, ids); err != nil {
		// The mirror skips known order ids, so the next sweep is harmless.
		w.events.LogError(ctx, "Failed to mark orders mirrored", err,
			applog.ComponentWorker, applog.OpMirror,
			applog.LogFields{applog.FieldSubmission: orders[0].SubmissionID})
	}

	w.logger.InfoContext(ctx, "Mirrored submission",
		applog.FieldSubmission, orders[0].SubmissionID,
		applog.FieldRows, written)
	return nil
}

// bySubmission groups rows by submission id in first-seen order. Rows
// without a submission id are grouped per row.
func bySubmission(orders []core.Order) [][]core.Order {
	idx := map[string]int{}
	var out [][]core.Order
	for _, o := range orders {
		if o.SubmissionID == "" {
			out = append(out, []core.Order{o})
			continue
		}
		i, ok := idx[o.SubmissionID]
		if !ok {
			i = len(out)
			idx[o.SubmissionID] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], o)
	}
	return out
}
