// Package pipeline loads and cleans monthly production series for
// backtesting.
package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dessertcast/form"
)

// Observation 一个月的产量
type Observation struct {
	Month      time.Time `json:"month"`
	Production float64   `json:"production"`
}

var monthLayouts = []string{"2006-01-02", "2006-01", "2006/01/02", "2006/01"}

// ReadSeries reads a two-column CSV of month and production. A header row
// is skipped when its second column is not a number. Production goes
// through the same coercion as the form, so full-width digits are fine.
func ReadSeries(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []Observation
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read series: %w", err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: want month and production, got %d fields", line, len(record))
		}

		value, ok := form.Coerce(record[1])
		if !ok {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: production %q is not a number", line, record[1])
		}
		month, err := parseMonth(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, Observation{Month: month, Production: value})
	}
	return out, nil
}

// ReadSeriesFile 从文件读取
func ReadSeriesFile(path string) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSeries(f)
}

func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("month %q not in a known layout", s)
}

// Values 提取产量序列
func Values(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Production
	}
	return out
}
