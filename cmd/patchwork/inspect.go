package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

func newInspectCmd(c *cli) *cobra.Command {
	var showData bool

	cmd := &cobra.Command{
		Use:   "inspect [entry...]",
		Short: "List stored subject entries",
		Long: `Lists the entries of a persistent backend (sqlite or nats) with their
shape and value range. Checksums are verified on read unless disabled in the
configuration. With entry names, only those entries are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd, args, showData)
		},
	}
	cmd.Flags().BoolVar(&showData, "data", false, "print entry values")

	return cmd
}

func (c *cli) runInspect(cmd *cobra.Command, names []string, showData bool) error {
	if c.cfg.Writer.Backend == patchwork.BackendMemory {
		return fmt.Errorf("%w: inspect needs a persistent backend, got %q",
			patchwork.ErrInvalidConfig, c.cfg.Writer.Backend)
	}

	st, err := newStorage(c.cfg.Writer, writer.WithLogger(c.logger))
	if err != nil {
		return err
	}
	defer st.release()

	ctx := cmd.Context()

	return writer.With(ctx, st.w, func(w types.Writer) error {
		if len(names) == 0 {
			names, err = st.entries(ctx)
			if err != nil {
				return err
			}
		}
		r, ok := w.(types.Reader)
		if !ok {
			return fmt.Errorf("writer %T cannot read entries", w)
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tSHAPE\tMIN\tMAX\tMEAN")
		arrays := make([]*ndarray.Array, 0, len(names))
		for _, name := range names {
			arr, err := r.Read(ctx, name)
			if err != nil {
				return err
			}
			lo, hi, mean := summarize(arr)
			fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\n", name, formatShape(arr.Shape()), lo, hi, mean)
			arrays = append(arrays, arr)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if showData {
			for i, arr := range arrays {
				printData(out, names[i], arr)
			}
		}

		return nil
	})
}

func summarize(arr *ndarray.Array) (lo, hi, mean float64) {
	data := arr.Data()
	if len(data) == 0 {
		return 0, 0, 0
	}

	var sum float64
	for _, v := range data {
		sum += v
	}

	return slices.Min(data), slices.Max(data), sum / float64(len(data))
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprint(n)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// printData writes the values one innermost row per line.
func printData(out io.Writer, name string, arr *ndarray.Array) {
	fmt.Fprintf(out, "\n%s:\n", name)

	data := arr.Data()
	width := len(data)
	if shape := arr.Shape(); len(shape) > 0 && shape[len(shape)-1] > 0 {
		width = shape[len(shape)-1]
	}
	for start := 0; start < len(data); start += width {
		fmt.Fprintln(out, data[start:start+width])
	}
}
