package apiclient

import (
	"context"
	"net/http"
)

// ChartsAPI covers the /charts resource group.
type ChartsAPI struct {
	c *Client
}

// Types lists the chart types the server can render.
func (a *ChartsAPI) Types(ctx context.Context) ([]ChartType, error) {
	var out struct {
		ChartTypes []ChartType `json:"chartTypes"`
	}
	if err := a.c.getJSON(ctx, "/charts/types", nil, &out); err != nil {
		return nil, err
	}
	return out.ChartTypes, nil
}

// Generate renders a chart for one sheet of a file.
func (a *ChartsAPI) Generate(ctx context.Context, params GenerateParams) (GenerateResult, error) {
	var out GenerateResult
	err := a.c.sendJSON(ctx, http.MethodPost, "/charts/generate", params, &out)
	return out, err
}

// History lists the analyses generated for a file.
func (a *ChartsAPI) History(ctx context.Context, fileID string) ([]Analysis, error) {
	var out struct {
		AnalysisHistory []Analysis `json:"analysisHistory"`
	}
	if err := a.c.getJSON(ctx, "/charts/file/"+escape(fileID)+"/history", nil, &out); err != nil {
		return nil, err
	}
	if out.AnalysisHistory == nil {
		return []Analysis{}, nil
	}
	return out.AnalysisHistory, nil
}

// DeleteAnalysis removes a stored analysis.
func (a *ChartsAPI) DeleteAnalysis(ctx context.Context, analysisID string) error {
	return a.c.do(ctx, http.MethodDelete, "/charts/analysis/"+escape(analysisID), nil, nil, "", nil)
}
