package admin

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/notify"
	"github.com/xenking/kitchen-rush/internal/storage/postgres"
)

// entrySource streams ledger entries to fn.
type entrySource func(ctx context.Context, fn func(ledger.Entry) error) error

// NewExportLedgerCommand creates the export-ledger command.
func NewExportLedgerCommand(opts *Options) *cobra.Command {
	var (
		out   string
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export-ledger",
		Short: "Export ledger entries as gzip-compressed JSON lines",
		Long: `Export ledger entries as gzip-compressed JSON lines, oldest first.

Each line is one entry: {"id","playerId","kind","amount","description","orderId","createdAt"}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			store := postgres.NewLedgerStore(pool)
			source := func(ctx context.Context, fn func(ledger.Entry) error) error {
				return store.Export(ctx, from, fn)
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "create output")
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			n, err := exportLedger(ctx, w, source)
			if err != nil {
				return err
			}
			opts.Logger().Info("Ledger exported", zap.Int("entries", n), zap.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "ledger.jsonl.gz", `output file, "-" for stdout`)
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this (0 exports everything)")
	return cmd
}

// exportLedger writes every entry of source to w as gzip JSON lines. Reading
// and encoding run concurrently.
func exportLedger(ctx context.Context, w io.Writer, source entrySource) (int, error) {
	entries := make(chan ledger.Entry, 256)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		return source(ctx, func(e ledger.Entry) error {
			select {
			case entries <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	n := 0
	g.Go(func() error {
		gz := pgzip.NewWriter(w)
		e := &jx.Encoder{}
		for en := range entries {
			e.Reset()
			encodeEntryLine(e, en)
			if _, err := gz.Write(append(e.Bytes(), '\n')); err != nil {
				return errors.Wrap(err, "write entry")
			}
			n++
		}
		return errors.Wrap(gz.Close(), "close gzip")
	})

	if err := g.Wait(); err != nil {
		return n, err
	}
	return n, nil
}

func encodeEntryLine(e *jx.Encoder, en ledger.Entry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(en.ID) })
		e.Field("playerId", func(e *jx.Encoder) { e.Str(en.PlayerID) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(en.Kind)) })
		e.Field("amount", func(e *jx.Encoder) { notify.EncodeDecimal(e, en.Amount) })
		e.Field("description", func(e *jx.Encoder) { e.Str(en.Description) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(en.OrderID) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(notify.FormatTime(en.CreatedAt)) })
	})
}
