package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"tabnet-harvester/internal/sink"
)

// ExportResult represents the result of one sink delivery
type ExportResult struct {
	Type       string    `json:"type"`     // "file", "store", "s3"
	Location   string    `json:"location"` // path, table row or object URL
	Bytes      int       `json:"bytes"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ExportedAt time.Time `json:"exported_at"`
}

// Document renders the merged tree as the indented JSON document
func Document(report *Report) ([]byte, error) {
	return json.MarshalIndent(report.Root, "", "  ")
}

// Export renders the report's tree once and hands it to every sink. A failing
// sink does not prevent the others from receiving the document.
func Export(ctx context.Context, report *Report, sinks ...sink.Sink) []ExportResult {
	doc, err := Document(report)
	if err != nil {
		return []ExportResult{{Type: "render", Error: err.Error(), ExportedAt: time.Now()}}
	}

	results := make([]ExportResult, 0, len(sinks))
	for _, s := range sinks {
		location, err := s.Write(ctx, report.RunID, doc)
		result := ExportResult{
			Type:       s.Name(),
			Location:   location,
			Bytes:      len(doc),
			Success:    err == nil,
			ExportedAt: time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
			zap.L().Error("pipeline: export failed", zap.String("sink", s.Name()), zap.Error(err))
		} else {
			zap.L().Info("pipeline: document exported", zap.String("sink", s.Name()), zap.String("location", location))
		}
		results = append(results, result)
	}
	return results
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderReport writes the end-of-run summary: exports, elapsed time, stage
// counters and every error record.
func RenderReport(w io.Writer, report *Report, exports []ExportResult) {
	var b strings.Builder
	for _, e := range exports {
		if e.Success {
			fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("✓ "+e.Type), e.Location)
		} else {
			fmt.Fprintf(&b, "%s %s\n", errorStyle.Render("✗ "+e.Type), e.Error)
		}
	}
	fmt.Fprintf(&b, "%s %.1fs\n", labelStyle.Render("Total time:"), report.Duration().Seconds())
	for _, s := range report.Stages {
		fmt.Fprintf(&b, "%s %d jobs · %d stored · %d empty · %d failed\n",
			labelStyle.Render(fmt.Sprintf("%-10s", s.Stage)), s.Jobs, s.Stored, s.Empty, s.Failed)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))

	for _, msg := range report.Warnings {
		fmt.Fprintln(w, errorStyle.Render(" ! "+msg))
	}
	for _, rec := range report.Errors {
		fmt.Fprintln(w, " • "+rec.String())
	}
}
