package pages

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/shared/server/respond"
	"sheetchart-web/internal/shared/storage/object"
	"sheetchart-web/internal/shared/telemetry"
)

type analysisView struct {
	File   *apiclient.FileRecord `json:"file"`
	Charts charts.View           `json:"charts"`
}

type generateForm struct {
	ChartType  string `form:"chartType" json:"chartType"`
	XAxis      string `form:"xAxis" json:"xAxis"`
	YAxis      string `form:"yAxis" json:"yAxis"`
	SheetIndex int    `form:"sheetIndex" json:"sheetIndex"`
	// Options is a JSON object of chart options.
	Options string `form:"chartOptions" json:"chartOptions"`
}

func newAnalysisView(c *gin.Context) analysisView {
	w := current(c)
	return analysisView{File: w.Files.State().CurrentFile, Charts: w.Charts.View()}
}

func (h *Handler) analysis(c *gin.Context) {
	w := current(c)
	ctx := c.Request.Context()
	fileID := c.Param("fileId")

	if cur := w.Files.State().CurrentFile; cur == nil || cur.ID != fileID {
		if _, err := w.Files.FetchFileDetails(ctx, fileID); err != nil {
			fail(c, err, w.Files.View().Error, "analysis", newAnalysisView(c))
			return
		}
	}
	if err := w.Charts.LoadAnalysis(ctx, fileID); err != nil {
		fail(c, err, async.Message(err, "Failed to load analysis"), "analysis", newAnalysisView(c))
		return
	}
	render(c, http.StatusOK, "analysis", newAnalysisView(c))
}

func (h *Handler) generate(c *gin.Context) {
	w := current(c)
	var form generateForm
	if err := c.ShouldBind(&form); err != nil {
		w.Notices.Error("Invalid chart selection")
		render(c, http.StatusBadRequest, "analysis", newAnalysisView(c))
		return
	}
	w.Charts.SetSelectedChartType(form.ChartType)
	w.Charts.SetSelectedXAxis(form.XAxis)
	w.Charts.SetSelectedYAxis(form.YAxis)
	if strings.TrimSpace(form.Options) != "" {
		var opts map[string]any
		if err := json.Unmarshal([]byte(form.Options), &opts); err != nil {
			w.Notices.Error("Chart options must be a JSON object")
			render(c, http.StatusBadRequest, "analysis", newAnalysisView(c))
			return
		}
		w.Charts.SetChartOptions(opts)
	}
	if form.ChartType == "" || form.XAxis == "" || form.YAxis == "" {
		w.Notices.Error("Please select a chart type and both axes")
		render(c, http.StatusBadRequest, "analysis", newAnalysisView(c))
		return
	}

	if _, err := w.Charts.GenerateFromSelection(c.Request.Context(), c.Param("fileId"), form.SheetIndex); err != nil {
		fail(c, err, w.Charts.View().Error, "analysis", newAnalysisView(c))
		return
	}
	w.Notices.Success("Chart generated successfully!")
	render(c, http.StatusOK, "analysis", newAnalysisView(c))
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	w := current(c)
	if err := w.Charts.DeleteAnalysis(c.Request.Context(), c.Param("analysisId")); err != nil {
		fail(c, err, w.Charts.View().Error, "analysis", newAnalysisView(c))
		return
	}
	w.Notices.Success("Analysis deleted successfully")
	redirect(c, "/analysis/"+c.Param("fileId"))
}

func (h *Handler) export(c *gin.Context) {
	if h.exporter == nil {
		respond.Error(c, http.StatusNotFound, "export_disabled", "chart export is not configured", nil)
		return
	}
	w := current(c)
	owner := w.Session().User.ID
	obj, err := h.exporter.Export(c.Request.Context(), owner, c.Param("fileId"), w.Charts)
	if errors.Is(err, charts.ErrNoChart) {
		w.Notices.Error("Generate a chart before exporting")
		render(c, http.StatusConflict, "analysis", newAnalysisView(c))
		return
	}
	if err != nil {
		telemetry.Error("chart.export_failed", map[string]any{"client_id": w.ID, "error": err.Error()})
		w.Notices.Error("Export failed. Please try again.")
		render(c, http.StatusInternalServerError, "analysis", newAnalysisView(c))
		return
	}
	if obj.URL == "" {
		obj.URL = "/exports/" + obj.Key
	}
	w.Notices.Success("Chart exported")
	render(c, http.StatusCreated, "export", obj)
}

func (h *Handler) download(c *gin.Context) {
	if h.exporter == nil {
		respond.Error(c, http.StatusNotFound, "export_disabled", "chart export is not configured", nil)
		return
	}
	key, ok := object.CleanKey(strings.TrimPrefix(c.Param("key"), "/"))
	if !ok || !object.OwnedBy(key, current(c).Session().User.ID) {
		respond.Error(c, http.StatusNotFound, "not_found", "export not found", nil)
		return
	}
	rc, err := h.exporter.Store.Open(c.Request.Context(), key)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "export not found", nil)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/json", rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + path.Base(key) + `"`,
	})
}
