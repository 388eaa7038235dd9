package charts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/shared/storage/object"
	"sheetchart-web/internal/shared/telemetry"
)

var ErrNoChart = errors.New("no chart to export")

// Export is the document written to the object store.
type Export struct {
	FileID     string              `json:"fileId"`
	ChartType  string              `json:"chartType"`
	XAxis      string              `json:"xAxis"`
	YAxis      string              `json:"yAxis"`
	Options    map[string]any      `json:"chartOptions,omitempty"`
	Chart      apiclient.ChartData `json:"chartData"`
	ExportedAt time.Time           `json:"exportedAt"`
}

// Exporter writes the current chart of a slice to an object store.
type Exporter struct {
	Store object.ObjectStore
	Now   func() time.Time
}

// Export stores the slice's current chart under owner and returns the stored
// object.
func (e *Exporter) Export(ctx context.Context, owner, fileID string, c *Slice) (object.Object, error) {
	st := c.State()
	if st.CurrentChart == nil {
		return object.Object{}, ErrNoChart
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	doc := Export{
		FileID:     fileID,
		ChartType:  st.SelectedChartType,
		XAxis:      st.SelectedXAxis,
		YAxis:      st.SelectedYAxis,
		Options:    st.ChartOptions,
		Chart:      *st.CurrentChart,
		ExportedAt: now().UTC(),
	}
	if doc.ChartType == "" {
		doc.ChartType = st.CurrentChart.Type
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return object.Object{}, fmt.Errorf("encode export: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", fileID, doc.ChartType)
	obj, err := e.Store.Put(ctx, owner, name, "application/json", bytes.NewReader(body))
	if err != nil {
		return object.Object{}, fmt.Errorf("store export: %w", err)
	}
	if linker, ok := e.Store.(object.Linker); ok {
		link, err := linker.Link(ctx, obj.Key)
		if err != nil {
			telemetry.Warn("chart.export_link_failed", map[string]any{"key": obj.Key, "error": err.Error()})
		} else {
			obj.URL = link
		}
	}
	telemetry.Info("chart.exported", map[string]any{
		"file_id":    fileID,
		"chart_type": doc.ChartType,
		"key":        obj.Key,
		"size":       obj.Size,
	})
	return obj, nil
}
