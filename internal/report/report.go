// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Final run report assembly.
//
// A Report is pure composition of the aggregate statistics and the ordered
// per-frame score series. Encoding methods write to a caller supplied
// io.Writer, the package opens no files itself.

package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/evolution-gaming/vqcmp/internal/pipeline"
	"github.com/evolution-gaming/vqcmp/internal/stats"
	"github.com/jszwec/csvutil"
)

// Report is the externally consumed result of one comparison run.
type Report struct {
	Metric    string        `json:"metric"`
	Reference string        `json:"reference"`
	Distorted string        `json:"distorted"`
	Stride    int           `json:"stride"`
	Workers   int           `json:"workers"`
	Summary   stats.Summary `json:"summary"`
	// Strictly index-ordered and gap-free, usable directly for plotting.
	Series []pipeline.Sample `json:"series"`
}

// WriteJSON writes the full report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	doc, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("WriteJSON() marshal: %w", err)
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("WriteJSON() write: %w", err)
	}
	return nil
}

// WriteCSV writes the per-frame score series as CSV with a header row.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for _, s := range r.Series {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("WriteCSV() encode: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV() flush: %w", err)
	}
	return nil
}

// WriteSummary writes the human readable summary block.
func (r *Report) WriteSummary(w io.Writer) error {
	s := &r.Summary
	_, err := fmt.Fprintf(w, "%s scores for %d frames\nMean: %.8f\nMin: %.8f\nMax: %.8f\nStdDev: %.8f\n",
		r.Metric, s.Count, s.Mean, s.Min, s.Max, s.StDev)
	if err != nil {
		return fmt.Errorf("WriteSummary() write: %w", err)
	}
	for _, p := range s.Percentiles {
		if _, err := fmt.Fprintf(w, "%sth Percentile: %.8f\n", trimRank(p.Rank), p.Value); err != nil {
			return fmt.Errorf("WriteSummary() write: %w", err)
		}
	}
	return nil
}

// trimRank renders a percentile rank without a trailing ".0".
func trimRank(rank float64) string {
	if rank == float64(int64(rank)) {
		return fmt.Sprintf("%d", int64(rank))
	}
	return fmt.Sprintf("%g", rank)
}
