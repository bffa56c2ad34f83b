package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
)

// Defaults of the demo data generator.
const (
	DefaultPoints = 300
	DefaultLow    = -10.0
	DefaultHigh   = 10.0
)

var (
	// ErrInvalidRange is returned when a bound or column selection is unusable.
	ErrInvalidRange = errors.New("dataset: invalid range")

	// ErrNoRows is returned when a CSV input contains no usable row.
	ErrNoRows = errors.New("dataset: no numeric rows")
)

// Uniform returns n points of dimension dim with coordinates drawn
// uniformly from [low, high). The points share one backing array.
func Uniform(rng *rand.Rand, n, dim int, low, high float64) [][]float64 {
	span := high - low

	data := make([]float64, n*dim)
	points := make([][]float64, n)

	for i := range n {
		p := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range p {
			p[j] = low + rng.Float64()*span
		}
		points[i] = p
	}

	return points
}

// Blobs returns n points scattered with Gaussian noise of standard
// deviation spread around centers random centers in [DefaultLow, DefaultHigh).
// Point i belongs to center i % centers.
func Blobs(rng *rand.Rand, n, dim, centers int, spread float64) [][]float64 {
	if centers < 1 {
		centers = 1
	}

	mu := Uniform(rng, centers, dim, DefaultLow, DefaultHigh)

	data := make([]float64, n*dim)
	points := make([][]float64, n)

	for i := range n {
		c := mu[i%centers]
		p := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range p {
			p[j] = c[j] + rng.NormFloat64()*spread
		}
		points[i] = p
	}

	return points
}

// ReadCSV parses numeric rows from r. columns selects the fields to use, in
// order; with no columns every field of a row is used. Rows with a field
// that does not parse as a finite number are skipped, which also drops a
// header line. Every returned row has the same dimension.
func ReadCSV(r io.Reader, columns ...int) ([][]float64, error) {
	for _, c := range columns {
		if c < 0 {
			return nil, fmt.Errorf("%w: column %d", ErrInvalidRange, c)
		}
	}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		points [][]float64
		dim    = -1
	)

rows:
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read csv: %w", err)
		}

		fields := record
		if len(columns) > 0 {
			fields = make([]string, len(columns))
			for i, c := range columns {
				if c >= len(record) {
					continue rows
				}
				fields[i] = record[c]
			}
		}

		if dim >= 0 && len(fields) != dim {
			continue
		}

		p := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue rows
			}
			p[i] = v
		}

		if len(p) == 0 {
			continue
		}

		dim = len(p)
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, ErrNoRows
	}

	return points, nil
}
