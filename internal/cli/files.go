package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/files"
)

func listFlags(cmd *cobra.Command, p *apiclient.ListParams) {
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.Limit, "limit", files.DefaultLimit, "items per page")
	cmd.Flags().StringVar(&p.Search, "search", "", "filter by name")
}

func (e *env) filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage uploaded spreadsheets",
	}

	var params apiclient.ListParams
	listCmd := guarded("auth", &cobra.Command{
		Use:   "list",
		Short: "List your files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.ws.Files.SetSearchQuery(params.Search)
			e.ws.Files.SetPage(params.Page)
			page, err := e.ws.Files.FetchUserFiles(cmd.Context(), params)
			if err != nil {
				return e.failed(err, e.ws.Files.View().Error)
			}
			return e.printJSON(page)
		},
	})
	listFlags(listCmd, &params)

	showCmd := guarded("auth", &cobra.Command{
		Use:   "show FILE_ID",
		Short: "Show a file and its sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := e.ws.Files.FetchFileDetails(cmd.Context(), args[0])
			if err != nil {
				return e.failed(err, e.ws.Files.View().Error)
			}
			return e.printJSON(file)
		},
	})

	statsCmd := guarded("auth", &cobra.Command{
		Use:   "stats FILE_ID",
		Short: "Show column statistics of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.ws.Files.FetchFileDetails(cmd.Context(), args[0]); err != nil {
				return e.failed(err, e.ws.Files.View().Error)
			}
			stats, err := e.ws.Files.GetFileStats(cmd.Context(), args[0])
			if err != nil {
				return e.failed(err, e.ws.Files.View().Error)
			}
			return e.printJSON(stats)
		},
	})

	var preview bool
	uploadCmd := guarded("auth", &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload a .xlsx, .xls or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.upload(cmd, args[0], preview)
		},
	})
	uploadCmd.Flags().BoolVar(&preview, "preview", false, "parse locally and print the sheets without uploading")

	deleteCmd := guarded("auth", &cobra.Command{
		Use:   "delete FILE_ID",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.ws.Files.DeleteFile(cmd.Context(), args[0]); err != nil {
				return e.failed(err, e.ws.Files.View().Error)
			}
			e.success("File deleted successfully")
			return nil
		},
	})

	cmd.AddCommand(listCmd, showCmd, statsCmd, uploadCmd, deleteCmd)
	return cmd
}

// upload validates the file before any request is sent.
func (e *env) upload(cmd *cobra.Command, path string, preview bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	name, err := files.ValidateUpload(info.Name(), mime.TypeByExtension(filepath.Ext(path)), info.Size())
	if err != nil {
		e.ws.Notices.Error(async.Message(err, files.MsgInvalidType))
		return ErrSilent
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if preview {
		result, err := files.Preview(name, f)
		if err != nil {
			return fmt.Errorf("preview %s: %w", name, err)
		}
		return e.printJSON(result)
	}

	record, err := e.ws.Files.UploadFile(cmd.Context(), name, f)
	if err != nil {
		return e.failed(err, e.ws.Files.View().Error)
	}
	e.success("File uploaded successfully!")
	return e.printJSON(record)
}
