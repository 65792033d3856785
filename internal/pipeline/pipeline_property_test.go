package pipeline

import (
	"context"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Filtering never changes the output columns, and the rows kept are exactly
// those satisfying the predicate.
func TestProperty_FilterKeepsShapeAndCount(t *testing.T) {
	rows := stars(500)
	path := writeStars(t, rows)
	p := New(Options{BatchSize: 64})
	want := []string{"RA", "DEC", "MAG", "name"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("RA>=x keeps matching rows in canonical shape", prop.ForAll(
		func(threshold float64) bool {
			literal := strconv.FormatFloat(threshold, 'f', 2, 64)
			bound, _ := strconv.ParseFloat(literal, 64)

			res, err := p.Run(context.Background(), path, map[string]string{"filters": "RA>=" + literal})
			if err != nil {
				return false
			}
			out := decodeResult(t, res.Data)
			if !equalNames(out.names(), want) {
				return false
			}

			expected := 0
			for _, r := range rows {
				if r.RA >= bound {
					expected++
				}
			}
			return out.batch.NumRows == expected && res.Stats.RowsScanned == int64(len(rows))
		},
		gen.Float64Range(-10, 200),
	))

	properties.Property("a predicate and its negation partition the rows", prop.ForAll(
		func(threshold float64) bool {
			literal := strconv.FormatFloat(threshold, 'f', 1, 64)

			lt, err := p.Run(context.Background(), path, map[string]string{"filters": "DEC<" + literal})
			if err != nil {
				return false
			}
			ge, err := p.Run(context.Background(), path, map[string]string{"filters": "DEC>=" + literal})
			if err != nil {
				return false
			}
			return lt.Stats.RowsWritten+ge.Stats.RowsWritten == int64(len(rows))
		},
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}
