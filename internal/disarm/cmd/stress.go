package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"disarm/disasm"
	"disarm/internal/disarm/styles"
)

// stressResult is what a stress run observed.
type stressResult struct {
	Workers    int
	Iterations int
	Decodes    int64
	Insns      int64
	Elapsed    time.Duration
}

func newStressCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	var workers, iterations int

	cmd := &cobra.Command{
		Use:   "stress [hex...]",
		Short: "Decode the same input from many goroutines through one handle",
		Long: `Stress shares one engine handle between workers, each decoding the input
repeatedly, and checks every result against a reference decode.`,
		Example: `
# Eight workers, 1000 decodes each
disarm stress -w 8 -i 1000 fd7bbfa9 fd030091 c0035fd6
  `,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				a.cfg.Workers = workers
			}
			if cmd.Flags().Changed("iterations") {
				a.cfg.Iterations = iterations
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			src, err := a.load(cmd, args, in)
			if err != nil {
				return err
			}
			defer src.Close()

			h, err := a.open(src.mode)
			if err != nil {
				return err
			}
			defer h.Close()

			res, err := runStress(cmd.Context(), h, src, a.cfg.Workers, a.cfg.Iterations)
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintln(out, styles.Error.Render("FAIL")+" "+err.Error())
				return err
			}
			fmt.Fprintf(out, "%s %d workers x %d iterations, %d decodes, %d instructions in %s\n",
				styles.OK.Render("PASS"), res.Workers, res.Iterations, res.Decodes, res.Insns,
				res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	in.register(cmd.Flags(), false)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent workers (default from config)")
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 0, "Decodes per worker (default from config)")
	return cmd
}

// runStress decodes src from workers goroutines sharing h and fails on the
// first result that differs from a reference decode.
func runStress(ctx context.Context, h *disasm.Handle, src *source, workers, iterations int) (stressResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res := stressResult{Workers: workers, Iterations: iterations}
	if workers < 1 || iterations < 1 {
		return res, fmt.Errorf("stress needs at least one worker and one iteration, got %d x %d", workers, iterations)
	}

	ref, err := h.Decode(src.code, src.addr, src.count)
	if err != nil {
		return res, err
	}
	want := fingerprint(ref)
	slog.Debug("stress reference decoded", "instructions", ref.Len(), "workers", workers, "iterations", iterations)

	var decodes, insns atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			for i := range iterations {
				if err := ctx.Err(); err != nil {
					return err
				}
				rs, err := h.Decode(src.code, src.addr, src.count)
				if err != nil {
					return fmt.Errorf("worker %d iteration %d: %w", w, i, err)
				}
				if got := fingerprint(rs); got != want {
					return fmt.Errorf("worker %d iteration %d: result differs from reference", w, i)
				}
				decodes.Add(1)
				insns.Add(int64(rs.Len()))
			}
			return nil
		})
	}
	err = g.Wait()
	res.Elapsed = time.Since(start)
	res.Decodes = decodes.Load()
	res.Insns = insns.Load()
	return res, err
}

// fingerprint flattens everything observable about a result set.
func fingerprint(rs *disasm.ResultSet) string {
	var b strings.Builder
	for _, in := range rs.All() {
		fmt.Fprintf(&b, "%x %d %x %s %s %v %v %v", in.Address(), in.ID(), in.Bytes(), in.Mnemonic(), in.OpStr(),
			in.RegsRead(), in.RegsWrite(), in.Groups())
		switch x := in.(type) {
		case *disasm.Arm32Insn:
			fmt.Fprintf(&b, " %s %t %t %v", x.CC(), x.UpdatesFlags(), x.WritebackRequired(), x.Operands())
		case *disasm.Arm64Insn:
			fmt.Fprintf(&b, " %s %t %t %v", x.CC(), x.UpdatesFlags(), x.WritebackRequired(), x.Operands())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
