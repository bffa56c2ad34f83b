package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/dataset"
	"github.com/hupe1980/kmeanslab/internal/plot"
)

func cluster(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	var (
		input   = fs.String("input", "", "CSV file with one point per row (- for stdin)")
		columns = fs.String("columns", "", "comma separated column indices to use (default all)")
		k       = fs.Int("k", kmeanslab.DefaultK, "number of clusters")
		initStr = fs.String("init", "kmeans++", "initialization: random, farthest or kmeans++")
		maxIter = fs.Int("max-iter", kmeanslab.DefaultMaxIter, "iteration cap")
		seed    = fs.Uint64("seed", 0, "random seed (0 picks one)")
		step    = fs.Bool("step", false, "print every iteration")
		plotOut = fs.String("plot", "", "write an HTML scatter plot to this file")
		verbose = fs.Bool("v", false, "log engine events to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *input == "" {
		return errors.New("cluster: -input is required")
	}

	cols, err := parseColumns(*columns)
	if err != nil {
		return err
	}

	method, err := kmeanslab.ParseInitMethod(*initStr)
	if err != nil {
		return err
	}
	if method == kmeanslab.InitManual {
		return errors.New("cluster: manual initialization is only available through the HTTP service")
	}

	data, err := readPoints(*input, cols)
	if err != nil {
		return err
	}

	var opts []kmeanslab.Option
	if *seed != 0 {
		opts = append(opts, kmeanslab.WithSeed(*seed))
	}
	if *verbose {
		opts = append(opts, kmeanslab.WithLogLevel(slog.LevelDebug))
	}

	s := kmeanslab.NewSession(opts...)

	cfg := kmeanslab.Config{K: *k, Init: method, MaxIter: *maxIter}
	if err := s.Initialize(ctx, cfg, data, nil); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "points=%d dim=%d k=%d init=%s seed=%d\n", len(data), s.Dimension(), cfg.K, cfg.Init, s.Seed())

	capReached := false

	if *step {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := s.Step(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "iteration %d: inertia=%.6f converged=%t\n", res.Iteration, s.Inertia(), res.Converged)

			if res.Converged {
				break
			}
			if res.Iteration >= cfg.MaxIter {
				capReached = true
				break
			}
		}
	} else {
		res, err := s.Run(ctx)
		if err != nil {
			return err
		}
		capReached = res.CapReached
	}

	if err := report(stdout, s, capReached); err != nil {
		return err
	}

	if *plotOut != "" {
		if err := writePlot(*plotOut, s); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "plot written to %s\n", *plotOut)
	}

	return nil
}

func parseColumns(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	cols := make([]int, len(parts))
	for i, p := range parts {
		c, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || c < 0 {
			return nil, fmt.Errorf("cluster: invalid column %q", p)
		}
		cols[i] = c
	}

	return cols, nil
}

func readPoints(path string, cols []int) ([][]float64, error) {
	if path == "-" {
		return dataset.ReadCSV(os.Stdin, cols...)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return dataset.ReadCSV(f, cols...)
}

func report(w io.Writer, s *kmeanslab.Session, capReached bool) error {
	status := "converged"
	if capReached {
		status = "iteration cap reached"
	}

	fmt.Fprintf(w, "%s after %d iterations, inertia=%.6f\n", status, s.Iterations(), s.Inertia())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "cluster\tsize\tcentroid")

	sizes := s.ClusterSizes()
	for i, c := range s.Centroids() {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", i, sizes[i], formatPoint(c))
	}

	return tw.Flush()
}

func formatPoint(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func writePlot(path string, s *kmeanslab.Session) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("k-means (%s, k=%d)", s.Config().Init, s.Config().K)
	if err := plot.Scatter(f, s.Dataset(), s.Labels(), s.Centroids(), title); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
