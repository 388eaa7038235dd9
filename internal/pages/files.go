package pages

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/files"
	"sheetchart-web/internal/guard"
	"sheetchart-web/internal/shared/telemetry"
)

const (
	dashboardLimit = 5

	msgUploaded     = "File uploaded successfully!"
	msgUploadFailed = "Upload failed. Please try again."
)

type dashboardView struct {
	RecentFiles []apiclient.FileRecord `json:"recentFiles"`
	TotalFiles  int                    `json:"totalFiles"`
	UploadCount int                    `json:"uploadCount"`
	DataSize    string                 `json:"dataSize"`
	IsLoading   bool                   `json:"isLoading"`
	Error       string                 `json:"error,omitempty"`
}

type uploadView struct {
	MaxSize  int64                `json:"maxSize"`
	Accepted []string             `json:"accepted"`
	Preview  *files.PreviewResult `json:"preview,omitempty"`
	FileName string               `json:"fileName,omitempty"`
}

func newUploadView() uploadView {
	return uploadView{MaxSize: files.MaxUploadSize, Accepted: []string{".xls", ".xlsx", ".csv"}}
}

func (h *Handler) dashboard(c *gin.Context) {
	w := current(c)
	_, err := w.Files.FetchUserFiles(c.Request.Context(), apiclient.ListParams{Page: 1, Limit: dashboardLimit})
	view := w.Files.View()
	sess := w.Session()

	data := dashboardView{
		RecentFiles: view.Files,
		TotalFiles:  view.Total,
		IsLoading:   view.Loading,
		Error:       view.Error,
	}
	if len(data.RecentFiles) > dashboardLimit {
		data.RecentFiles = data.RecentFiles[:dashboardLimit]
	}
	if sess.User != nil {
		data.UploadCount = sess.User.UploadCount
		data.DataSize = fmt.Sprintf("%.2f MB", float64(sess.User.TotalDataSize)/(1024*1024))
	}
	if err != nil {
		fail(c, err, view.Error, "dashboard", data)
		return
	}
	render(c, http.StatusOK, "dashboard", data)
}

func (h *Handler) listFiles(c *gin.Context) {
	w := current(c)
	if q, ok := c.GetQuery("search"); ok {
		w.Files.SetSearchQuery(q)
	}
	if raw := c.Query("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			w.Files.SetPage(page)
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	st := w.Files.State()
	params := apiclient.ListParams{Page: st.Page, Limit: limit, Search: st.SearchQuery}

	if _, err := w.Files.FetchUserFiles(c.Request.Context(), params); err != nil {
		view := w.Files.View()
		fail(c, err, view.Error, "files", view)
		return
	}
	render(c, http.StatusOK, "files", w.Files.View())
}

func (h *Handler) fileDetail(c *gin.Context) {
	w := current(c)
	if _, err := w.Files.FetchFileDetails(c.Request.Context(), c.Param("fileId")); err != nil {
		view := w.Files.View()
		fail(c, err, view.Error, "file", view)
		return
	}
	render(c, http.StatusOK, "file", w.Files.View())
}

func (h *Handler) fileStats(c *gin.Context) {
	w := current(c)
	ctx := c.Request.Context()
	fileID := c.Param("fileId")

	if cur := w.Files.State().CurrentFile; cur == nil || cur.ID != fileID {
		if _, err := w.Files.FetchFileDetails(ctx, fileID); err != nil {
			view := w.Files.View()
			fail(c, err, view.Error, "file-stats", view)
			return
		}
	}
	if _, err := w.Files.GetFileStats(ctx, fileID); err != nil {
		view := w.Files.View()
		fail(c, err, view.Error, "file-stats", view)
		return
	}
	render(c, http.StatusOK, "file-stats", w.Files.View())
}

func (h *Handler) deleteFile(c *gin.Context) {
	w := current(c)
	if err := w.Files.DeleteFile(c.Request.Context(), c.Param("fileId")); err != nil {
		view := w.Files.View()
		fail(c, err, view.Error, "files", view)
		return
	}
	w.Notices.Success("File deleted successfully")
	redirect(c, "/files")
}

func (h *Handler) uploadForm(c *gin.Context) {
	render(c, http.StatusOK, "upload", newUploadView())
}

// upload validates the selected file before anything is dispatched. With
// preview=true the file is only inspected locally.
func (h *Handler) upload(c *gin.Context) {
	w := current(c)
	view := newUploadView()

	header, err := c.FormFile("file")
	if err != nil {
		w.Notices.Error(files.MsgInvalidType)
		render(c, http.StatusBadRequest, "upload", view)
		return
	}
	name, err := files.ValidateUpload(header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		fail(c, err, async.Message(err, files.MsgInvalidType), "upload", view)
		return
	}
	view.FileName = name

	src, err := header.Open()
	if err != nil {
		telemetry.Error("upload.open_failed", map[string]any{"client_id": w.ID, "error": err.Error()})
		w.Notices.Error(msgUploadFailed)
		render(c, http.StatusBadRequest, "upload", view)
		return
	}
	defer src.Close()

	if c.PostForm("preview") == "true" {
		preview, err := files.Preview(name, src)
		if err != nil {
			w.Notices.Error("Could not read the selected file")
			render(c, http.StatusBadRequest, "upload", view)
			return
		}
		view.Preview = &preview
		render(c, http.StatusOK, "upload", view)
		return
	}

	if _, err := w.Files.UploadFile(c.Request.Context(), name, src); err != nil {
		fail(c, err, msgUploadFailed, "upload", view)
		return
	}
	w.Notices.Success(msgUploaded)
	redirect(c, guard.DashboardPath)
}
