package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

type generateFlags struct {
	chartType  string
	xAxis      string
	yAxis      string
	sheetIndex int
	options    string
	export     bool
}

func (e *env) chartsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "charts",
		Aliases: []string{"analysis"},
		Short:   "Generate and manage charts",
	}

	typesCmd := guarded("auth", &cobra.Command{
		Use:   "types",
		Short: "List the available chart types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := e.ws.Charts.FetchChartTypes(cmd.Context())
			if err != nil {
				return e.failed(err, e.ws.Charts.View().Error)
			}
			return e.printJSON(types)
		},
	})

	var gen generateFlags
	generateCmd := guarded("auth", &cobra.Command{
		Use:   "generate FILE_ID",
		Short: "Generate a chart from a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.generate(cmd, args[0], gen)
		},
	})
	generateCmd.Flags().StringVarP(&gen.chartType, "type", "t", "", "chart type (see `charts types`)")
	generateCmd.Flags().StringVarP(&gen.xAxis, "x", "x", "", "column for the x axis")
	generateCmd.Flags().StringVarP(&gen.yAxis, "y", "y", "", "column for the y axis")
	generateCmd.Flags().IntVar(&gen.sheetIndex, "sheet", 0, "sheet index")
	generateCmd.Flags().StringVar(&gen.options, "options", "", "chart options as a JSON object")
	generateCmd.Flags().BoolVar(&gen.export, "export", false, "save the chart to the export directory")

	historyCmd := guarded("auth", &cobra.Command{
		Use:   "history FILE_ID",
		Short: "List the charts generated from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := e.ws.Charts.FetchAnalysisHistory(cmd.Context(), args[0])
			if err != nil {
				return e.failed(err, e.ws.Charts.View().Error)
			}
			return e.printJSON(history)
		},
	})

	deleteCmd := guarded("auth", &cobra.Command{
		Use:   "delete ANALYSIS_ID",
		Short: "Delete a stored chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.ws.Charts.DeleteAnalysis(cmd.Context(), args[0]); err != nil {
				return e.failed(err, e.ws.Charts.View().Error)
			}
			e.success("Analysis deleted successfully")
			return nil
		},
	})

	cmd.AddCommand(typesCmd, generateCmd, historyCmd, deleteCmd)
	return cmd
}

func (e *env) generate(cmd *cobra.Command, fileID string, gen generateFlags) error {
	if gen.chartType == "" || gen.xAxis == "" || gen.yAxis == "" {
		return errors.New("please select a chart type and both axes")
	}
	e.ws.Charts.SetSelectedChartType(gen.chartType)
	e.ws.Charts.SetSelectedXAxis(gen.xAxis)
	e.ws.Charts.SetSelectedYAxis(gen.yAxis)
	if gen.options != "" {
		var opts map[string]any
		if err := json.Unmarshal([]byte(gen.options), &opts); err != nil {
			return errors.New("chart options must be a JSON object")
		}
		e.ws.Charts.SetChartOptions(opts)
	}

	result, err := e.ws.Charts.GenerateFromSelection(cmd.Context(), fileID, gen.sheetIndex)
	if err != nil {
		return e.failed(err, e.ws.Charts.View().Error)
	}
	e.success("Chart generated successfully!")
	if !gen.export {
		return e.printJSON(result)
	}

	obj, err := e.exporter.Export(cmd.Context(), e.ws.Session().User.ID, fileID, e.ws.Charts)
	if err != nil {
		return fmt.Errorf("export chart: %w", err)
	}
	e.success("Chart exported to " + filepath.Join(e.profile.ExportDir, filepath.FromSlash(obj.Key)))
	return e.printJSON(result)
}
