package data

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/fitstat"
	json "github.com/goccy/go-json"
)

// Report is the exported view of one analysed curve.
type Report struct {
	Name     string          `json:"name"`
	Analysis curve.Analysis  `json:"analysis"`
	Summary  fitstat.Summary `json:"summary"`
	Error    string          `json:"error,omitempty"`
}

// NewReport summarises the observations behind a.
func NewReport(name string, a curve.Analysis) Report {
	_, values := curve.Split(a.Points)
	r := Report{Name: name, Analysis: a}
	if s, err := fitstat.Describe(values); err == nil {
		r.Summary = s
	}
	return r
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExportJSON writes v to path, creating or truncating it.
func ExportJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Open decodes the JSON file filename into a T.
func Open[T any](filename string) (T, error) {
	var target T
	file, err := os.ReadFile(filename)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal(file, &target)
	if err != nil {
		return target, err
	}
	return target, nil
}

// ExportCSV writes points to path, creating or truncating it.
func ExportCSV(path string, cols Columns, points []curve.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, cols, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes points with the given column headers.
func WriteCSV(w io.Writer, cols Columns, points []curve.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{cols.Name, cols.Duration, cols.Value}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			p.Name,
			strconv.FormatFloat(p.Duration, 'f', -1, 64),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
