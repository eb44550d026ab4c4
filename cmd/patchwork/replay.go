package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/internal/metrics"
	"github.com/arloliu/patchwork/pipeline"
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

type replayOptions struct {
	producers  int
	accumulate bool
	prefix     string
}

func newReplayCmd(c *cli) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Assemble recorded batches and store the subjects",
		Long: `Reads batches as JSON lines from file (or stdin when file is "-" or
omitted), feeds them through the assembly pipeline and stores every subject
once it is complete.

Each line holds one batch:
  {"seq":0,"last":false,
   "prediction":{"shape":[2,1,3],"data":[...]},
   "subject_index":["a","a"],"index_expr":["0:1","1:2"],"shape":[[2,3],[2,3]]}

Keyed model outputs use "predictions":{"mask":{...},"score":{...}} instead.
Sequence numbers start at 0 and must be contiguous; lines may be out of order
within the configured reorder window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			return c.runReplay(cmd, path, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.producers, "producers", "p", 4, "number of concurrent batch decoders")
	flags.BoolVar(&opts.accumulate, "accumulate-in-writer", false, "accumulate subjects directly in the writer instead of memory")
	flags.StringVar(&opts.prefix, "prefix", "", "entry name prefix (overrides pipeline.entryPrefix)")

	return cmd
}

func (c *cli) runReplay(cmd *cobra.Command, path string, opts *replayOptions) error {
	if opts.producers <= 0 {
		return fmt.Errorf("--producers must be > 0, got %d", opts.producers)
	}

	cfg := *c.cfg
	if cmd.Flags().Changed("prefix") {
		cfg.Pipeline.EntryPrefix = opts.prefix
	}

	src := io.Reader(cmd.InOrStdin())
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open replay file: %w", err)
		}
		defer f.Close()
		src = f
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, cfg.Metrics.Namespace)

	st, err := newStorage(cfg.Writer, writer.WithLogger(c.logger), writer.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer st.release()

	var written atomic.Int64
	g, ctx := errgroup.WithContext(cmd.Context())
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return serveMetrics(serveCtx, cfg.Metrics.ListenAddr, reg, c.logger)
		})
	}
	g.Go(func() error {
		defer stopServing()

		return writer.With(ctx, st.w, func(w types.Writer) error {
			return c.replay(ctx, cfg, w, src, opts, collector, &written)
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "stored %d subjects (%s backend)\n", written.Load(), cfg.Writer.Backend)

	return nil
}

// replay runs the pipeline over src with opts.producers decoding goroutines.
func (c *cli) replay(
	ctx context.Context,
	cfg patchwork.Config,
	w types.Writer,
	src io.Reader,
	opts *replayOptions,
	collector types.MetricsCollector,
	written *atomic.Int64,
) error {
	asmOpts := []patchwork.Option{
		patchwork.WithLogger(c.logger),
		patchwork.WithMetrics(collector),
	}
	if opts.accumulate {
		alloc := writer.BackedAllocator[string](ctx, w, writer.SubjectEntries(cfg.Pipeline.EntryPrefix))
		asmOpts = append(asmOpts, patchwork.WithSubjectAllocator(alloc))
	}
	asm := patchwork.NewSubjectAssembler[string](asmOpts...)

	p, err := pipeline.New(asm, w, cfg.Pipeline,
		pipeline.WithLogger(c.logger),
		pipeline.WithMetrics(collector),
		pipeline.WithHooks(&types.Hooks{
			OnSubjectWritten: func(_ context.Context, subject string, entries []string) error {
				written.Add(1)
				c.logger.Info("subject stored", "subject", subject, "entries", entries)

				return nil
			},
		}),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })

	lines := make(chan []byte, opts.producers)
	g.Go(func() error {
		defer close(lines)
		return readRecords(gctx, src, lines)
	})

	producers, pctx := errgroup.WithContext(gctx)
	for range opts.producers {
		producers.Go(func() error {
			for data := range lines {
				b, err := decodeRecord(data)
				if err != nil {
					return err
				}
				if err := p.Submit(pctx, b); err != nil {
					return fmt.Errorf("submit batch %d: %w", b.Seq, err)
				}
			}

			return nil
		})
	}
	g.Go(func() error {
		defer p.Close()
		return producers.Wait()
	})

	return g.Wait()
}
