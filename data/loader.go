// Package data reads bond observations and writes analysis reports.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/banachtech/oascurve/curve"
	"github.com/spf13/cast"
)

// ErrMissingColumn is returned when a required CSV header is absent.
var ErrMissingColumn = errors.New("missing column")

// Columns names the CSV headers holding each field. Issuer is optional.
type Columns struct {
	Name     string `yaml:"name"`
	Duration string `yaml:"duration"`
	Value    string `yaml:"value"`
	Issuer   string `yaml:"issuer"`
}

// DefaultColumns matches the bond export layout.
func DefaultColumns() Columns {
	return Columns{
		Name:     "bond_name",
		Duration: "bid_years_to_wkout",
		Value:    "oas",
	}
}

// Record is one CSV row.
type Record struct {
	Issuer string
	Point  curve.Point
}

// LoadCSV reads records from r. Header matching is case-insensitive.
// Cells that do not parse as numbers become NaN and are dropped by curve.Filter.
func LoadCSV(r io.Reader, cols Columns) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	lookup := func(name string, required bool) (int, error) {
		if name == "" {
			return -1, nil
		}
		i, ok := index[strings.ToLower(name)]
		if !ok {
			if required {
				return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
			}
			return -1, nil
		}
		return i, nil
	}
	durCol, err := lookup(cols.Duration, true)
	if err != nil {
		return nil, err
	}
	valCol, err := lookup(cols.Value, true)
	if err != nil {
		return nil, err
	}
	nameCol, _ := lookup(cols.Name, false)
	issuerCol, err := lookup(cols.Issuer, cols.Issuer != "")
	if err != nil {
		return nil, err
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rec := Record{
			Point: curve.Point{
				Name:     cell(row, nameCol),
				Duration: number(cell(row, durCol)),
				Value:    number(cell(row, valCol)),
			},
			Issuer: cell(row, issuerCol),
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadFile opens path and calls LoadCSV.
func LoadFile(path string, cols Columns) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f, cols)
}

// Points returns the points of every record.
func Points(records []Record) []curve.Point {
	out := make([]curve.Point, len(records))
	for i, r := range records {
		out[i] = r.Point
	}
	return out
}

// GroupByIssuer splits records into one curve per issuer.
func GroupByIssuer(records []Record) map[string][]curve.Point {
	out := map[string][]curve.Point{}
	for _, r := range records {
		out[r.Issuer] = append(out[r.Issuer], r.Point)
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func number(s string) float64 {
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return math.NaN()
	}
	return v
}
