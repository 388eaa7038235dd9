// Package charts is the chart slice: available chart types, the user's axis
// selection, the generated chart, and a file's analysis history.
package charts

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
)

type API interface {
	Types(ctx context.Context) ([]apiclient.ChartType, error)
	Generate(ctx context.Context, params apiclient.GenerateParams) (apiclient.GenerateResult, error)
	History(ctx context.Context, fileID string) ([]apiclient.Analysis, error)
	DeleteAnalysis(ctx context.Context, analysisID string) error
}

type State struct {
	ChartTypes        []apiclient.ChartType `json:"chartTypes"`
	CurrentChart      *apiclient.ChartData  `json:"currentChart"`
	AnalysisHistory   []apiclient.Analysis  `json:"analysisHistory"`
	SelectedChartType string                `json:"selectedChartType"`
	SelectedXAxis     string                `json:"selectedXAxis"`
	SelectedYAxis     string                `json:"selectedYAxis"`
	ChartOptions      map[string]any        `json:"chartOptions"`
}

func initialState() State {
	return State{
		ChartTypes:      []apiclient.ChartType{},
		AnalysisHistory: []apiclient.Analysis{},
		ChartOptions:    map[string]any{},
	}
}

type View struct {
	State
	async.Status
}

type Slice struct {
	s   *async.Slice[State]
	api API
}

func New(d *async.Dispatcher, api API) *Slice {
	return &Slice{s: async.NewSlice(d, "charts", initialState()), api: api}
}

func (c *Slice) View() View {
	st, status := c.s.Snapshot()
	return View{State: st, Status: status}
}

func (c *Slice) State() State { return c.s.State() }

func (c *Slice) FetchChartTypes(ctx context.Context) ([]apiclient.ChartType, error) {
	return async.Run(ctx, c.s, c.typesOp())
}

// LoadAnalysis fetches the history of fileID and, when none are cached yet,
// the chart types. Both requests run concurrently; the first failure is
// returned once both have settled.
func (c *Slice) LoadAnalysis(ctx context.Context, fileID string) error {
	var types <-chan async.Result[[]apiclient.ChartType]
	if len(c.s.State().ChartTypes) == 0 {
		types = async.Go(ctx, c.s, c.typesOp())
	}
	history := async.Go(ctx, c.s, c.historyOp(fileID))

	var err error
	if types != nil {
		err = (<-types).Err
	}
	if res := <-history; err == nil {
		err = res.Err
	}
	return err
}

// GenerateChart asks the server to chart params. The resulting analysis, when
// the server returns one, is prepended to the history.
func (c *Slice) GenerateChart(ctx context.Context, params apiclient.GenerateParams) (apiclient.GenerateResult, error) {
	return async.Run(ctx, c.s, async.Op[State, apiclient.GenerateResult]{
		Name:     "charts/generateChart",
		Fallback: "Failed to generate chart",
		Call: func(ctx context.Context) (apiclient.GenerateResult, error) {
			return c.api.Generate(ctx, params)
		},
		Fulfilled: func(st *State, res apiclient.GenerateResult) {
			chart := res.ChartData
			st.CurrentChart = &chart
			if res.Analysis != nil {
				st.AnalysisHistory = append([]apiclient.Analysis{*res.Analysis}, st.AnalysisHistory...)
			}
		},
	})
}

// GenerateFromSelection charts fileID's sheet with the selected type, axes
// and options.
func (c *Slice) GenerateFromSelection(ctx context.Context, fileID string, sheetIndex int) (apiclient.GenerateResult, error) {
	params, err := c.SelectionParams(fileID, sheetIndex)
	if err != nil {
		return apiclient.GenerateResult{}, err
	}
	return c.GenerateChart(ctx, params)
}

// SelectionParams builds generate parameters from the current selection.
func (c *Slice) SelectionParams(fileID string, sheetIndex int) (apiclient.GenerateParams, error) {
	st := c.s.State()
	params := apiclient.GenerateParams{
		FileID:     fileID,
		SheetIndex: sheetIndex,
		ChartType:  st.SelectedChartType,
		XAxis:      st.SelectedXAxis,
		YAxis:      st.SelectedYAxis,
	}
	if len(st.ChartOptions) > 0 {
		raw, err := json.Marshal(st.ChartOptions)
		if err != nil {
			return apiclient.GenerateParams{}, fmt.Errorf("encode chart options: %w", err)
		}
		params.ChartOptions = raw
	}
	return params, nil
}

func (c *Slice) FetchAnalysisHistory(ctx context.Context, fileID string) ([]apiclient.Analysis, error) {
	return async.Run(ctx, c.s, c.historyOp(fileID))
}

func (c *Slice) DeleteAnalysis(ctx context.Context, analysisID string) error {
	_, err := async.Run(ctx, c.s, async.Op[State, string]{
		Name:     "charts/deleteAnalysis",
		Fallback: "Failed to delete analysis",
		Call: func(ctx context.Context) (string, error) {
			return analysisID, c.api.DeleteAnalysis(ctx, analysisID)
		},
		Fulfilled: func(st *State, id string) {
			kept := make([]apiclient.Analysis, 0, len(st.AnalysisHistory))
			for _, a := range st.AnalysisHistory {
				if a.ID != id {
					kept = append(kept, a)
				}
			}
			st.AnalysisHistory = kept
		},
	})
	return err
}

func (c *Slice) SetSelectedChartType(chartType string) {
	c.s.Update(func(st *State) { st.SelectedChartType = chartType })
}

func (c *Slice) SetSelectedXAxis(axis string) {
	c.s.Update(func(st *State) { st.SelectedXAxis = axis })
}

func (c *Slice) SetSelectedYAxis(axis string) {
	c.s.Update(func(st *State) { st.SelectedYAxis = axis })
}

// SetChartOptions replaces the options. The map is copied.
func (c *Slice) SetChartOptions(options map[string]any) {
	copied := maps.Clone(options)
	if copied == nil {
		copied = map[string]any{}
	}
	c.s.Update(func(st *State) { st.ChartOptions = copied })
}

func (c *Slice) ClearCurrentChart() {
	c.s.Update(func(st *State) { st.CurrentChart = nil })
}

func (c *Slice) ClearError() { c.s.ClearError() }

// ResetSelection clears chart type, axes and options.
func (c *Slice) ResetSelection() {
	c.s.Update(func(st *State) {
		st.SelectedChartType = ""
		st.SelectedXAxis = ""
		st.SelectedYAxis = ""
		st.ChartOptions = map[string]any{}
	})
}

// Reset returns the slice to its initial state.
func (c *Slice) Reset() { c.s.Reset(initialState()) }

func (c *Slice) typesOp() async.Op[State, []apiclient.ChartType] {
	return async.Op[State, []apiclient.ChartType]{
		Name:     "charts/fetchChartTypes",
		Fallback: "Failed to fetch chart types",
		Call:     c.api.Types,
		Fulfilled: func(st *State, types []apiclient.ChartType) {
			st.ChartTypes = types
		},
	}
}

func (c *Slice) historyOp(fileID string) async.Op[State, []apiclient.Analysis] {
	return async.Op[State, []apiclient.Analysis]{
		Name:     "charts/fetchAnalysisHistory",
		Fallback: "Failed to fetch analysis history",
		Call: func(ctx context.Context) ([]apiclient.Analysis, error) {
			return c.api.History(ctx, fileID)
		},
		Fulfilled: func(st *State, history []apiclient.Analysis) {
			st.AnalysisHistory = history
		},
	}
}
