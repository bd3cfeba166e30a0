package ctl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"teamorders/internal/core"
	"teamorders/internal/ledger/xlsx"
	applog "teamorders/internal/log"
)

func newImportCommand(e *env) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import-xlsx",
		Short: "Copy legacy per-member workbooks into the configured ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runImport(cmd.Context(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "user_orders", "Directory holding orders_<member>.xlsx workbooks")
	return cmd
}

// ImportResult counts what an import did.
type ImportResult struct {
	Imported    int
	Submissions int
	Skipped     int
}

func (e *env) runImport(ctx context.Context, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := xlsx.New(dir, e.loader, time.Local, e.log())
	if err != nil {
		return err
	}
	res, err := importWorkbooks(ctx, src, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Imported %d rows in %d submissions, skipped %d malformed rows\n", res.Imported, res.Submissions, res.Skipped)
	return nil
}

func importWorkbooks(ctx context.Context, src *xlsx.Store, e *env) (ImportResult, error) {
	orders, skipped, err := src.ReadAll(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read workbooks: %w", err)
	}
	res := ImportResult{Skipped: skipped}
	for _, batch := range submissions(orders) {
		id := uuid.NewString()
		for i := range batch {
			batch[i].SubmissionID = id
		}
		if _, err := e.ledger.AppendOrders(ctx, batch); err != nil {
			return res, fmt.Errorf("append submission of %s at %s: %w", batch[0].Member, batch[0].PlacedAt.Format(time.DateTime), err)
		}
		res.Imported += len(batch)
		res.Submissions++
	}
	e.log().InfoContext(ctx, "Workbooks imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldRows, res.Imported,
		"skipped", res.Skipped)
	return res, nil
}

// submissions groups rows that one member placed at the same instant; the
// workbooks never recorded a submission id.
func submissions(orders []core.Order) [][]core.Order {
	type key struct {
		member string
		at     int64
	}
	index := make(map[key]int)
	var out [][]core.Order
	for _, o := range orders {
		k := key{o.Member, o.PlacedAt.Unix()}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], o)
	}
	return out
}
