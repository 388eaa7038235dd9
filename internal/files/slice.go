// Package files is the uploaded-files slice: the paginated list of the
// user's files, the file being viewed, and upload validation.
package files

import (
	"context"
	"encoding/json"
	"io"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
)

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 10

type API interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (apiclient.FileRecord, error)
	List(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.FileRecord], error)
	Get(ctx context.Context, fileID string) (apiclient.FileRecord, error)
	Delete(ctx context.Context, fileID string) error
	Stats(ctx context.Context, fileID string) (json.RawMessage, error)
}

type State struct {
	Files       []apiclient.FileRecord `json:"files"`
	CurrentFile *apiclient.FileRecord  `json:"currentFile"`
	// CurrentStats belongs to CurrentFile and is dropped when it changes.
	CurrentStats json.RawMessage `json:"currentStats,omitempty"`
	Total        int             `json:"total"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"totalPages"`
	SearchQuery  string          `json:"searchQuery"`
}

func initialState() State {
	return State{Files: []apiclient.FileRecord{}, Page: 1, TotalPages: 1}
}

// View is the render model of the slice.
type View struct {
	State
	async.Status
}

type Slice struct {
	s   *async.Slice[State]
	api API
}

func New(d *async.Dispatcher, api API) *Slice {
	return &Slice{s: async.NewSlice(d, "files", initialState()), api: api}
}

func (f *Slice) View() View {
	st, status := f.s.Snapshot()
	return View{State: st, Status: status}
}

func (f *Slice) State() State { return f.s.State() }

// UploadFile sends a validated file. The new record is prepended to the list.
func (f *Slice) UploadFile(ctx context.Context, fileName string, r io.Reader) (apiclient.FileRecord, error) {
	return async.Run(ctx, f.s, async.Op[State, apiclient.FileRecord]{
		Name:     "files/uploadFile",
		Fallback: "File upload failed",
		Call: func(ctx context.Context) (apiclient.FileRecord, error) {
			return f.api.Upload(ctx, fileName, r)
		},
		Fulfilled: func(st *State, file apiclient.FileRecord) {
			st.Files = append([]apiclient.FileRecord{file}, st.Files...)
			st.Total++
		},
	})
}

// FetchUserFiles replaces the list with one page of the user's files. Params
// are sent as given; only a zero limit falls back to DefaultLimit. Callers
// that want the stored page or search query pass them explicitly.
func (f *Slice) FetchUserFiles(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.FileRecord], error) {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	return async.Run(ctx, f.s, async.Op[State, apiclient.Page[apiclient.FileRecord]]{
		Name:     "files/fetchUserFiles",
		Fallback: "Failed to fetch files",
		Call: func(ctx context.Context) (apiclient.Page[apiclient.FileRecord], error) {
			return f.api.List(ctx, params)
		},
		Fulfilled: func(st *State, page apiclient.Page[apiclient.FileRecord]) {
			st.Files = page.Items
			st.Total = page.Total
			st.Page = page.Page
			st.TotalPages = page.TotalPages
		},
	})
}

func (f *Slice) FetchFileDetails(ctx context.Context, fileID string) (apiclient.FileRecord, error) {
	return async.Run(ctx, f.s, async.Op[State, apiclient.FileRecord]{
		Name:     "files/fetchFileDetails",
		Fallback: "Failed to fetch file details",
		Call: func(ctx context.Context) (apiclient.FileRecord, error) {
			return f.api.Get(ctx, fileID)
		},
		Fulfilled: func(st *State, file apiclient.FileRecord) {
			if st.CurrentFile == nil || st.CurrentFile.ID != file.ID {
				st.CurrentStats = nil
			}
			st.CurrentFile = &file
		},
	})
}

// DeleteFile removes the file remotely, then from the list and, if it is
// being viewed, from CurrentFile.
func (f *Slice) DeleteFile(ctx context.Context, fileID string) error {
	_, err := async.Run(ctx, f.s, async.Op[State, string]{
		Name:     "files/deleteFile",
		Fallback: "Failed to delete file",
		Call: func(ctx context.Context) (string, error) {
			return fileID, f.api.Delete(ctx, fileID)
		},
		Fulfilled: func(st *State, id string) {
			kept := make([]apiclient.FileRecord, 0, len(st.Files))
			for _, file := range st.Files {
				if file.ID != id {
					kept = append(kept, file)
				}
			}
			// The server removed one file even when it was not on this page.
			if st.Total > 0 {
				st.Total--
			}
			st.Files = kept
			if st.CurrentFile != nil && st.CurrentFile.ID == id {
				st.CurrentFile = nil
				st.CurrentStats = nil
			}
		},
	})
	return err
}

// GetFileStats loads server statistics for fileID. They are kept only while
// fileID is the current file.
func (f *Slice) GetFileStats(ctx context.Context, fileID string) (json.RawMessage, error) {
	return async.Run(ctx, f.s, async.Op[State, json.RawMessage]{
		Name:     "files/getFileStats",
		Fallback: "Failed to fetch file statistics",
		Call: func(ctx context.Context) (json.RawMessage, error) {
			return f.api.Stats(ctx, fileID)
		},
		Fulfilled: func(st *State, stats json.RawMessage) {
			if st.CurrentFile != nil && st.CurrentFile.ID == fileID {
				st.CurrentStats = stats
			}
		},
	})
}

func (f *Slice) SetCurrentFile(file *apiclient.FileRecord) {
	f.s.Update(func(st *State) {
		if file == nil {
			st.CurrentFile = nil
			st.CurrentStats = nil
			return
		}
		copied := *file
		if st.CurrentFile == nil || st.CurrentFile.ID != copied.ID {
			st.CurrentStats = nil
		}
		st.CurrentFile = &copied
	})
}

// SetSearchQuery changes the filter and returns to the first page.
func (f *Slice) SetSearchQuery(query string) {
	f.s.Update(func(st *State) {
		st.SearchQuery = query
		st.Page = 1
	})
}

func (f *Slice) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	f.s.Update(func(st *State) { st.Page = page })
}

func (f *Slice) ClearError() { f.s.ClearError() }

// Clear empties the list and the current file. The search query is kept.
func (f *Slice) Clear() {
	f.s.Update(func(st *State) {
		query := st.SearchQuery
		*st = initialState()
		st.SearchQuery = query
	})
}

// Reset returns the slice to its initial state.
func (f *Slice) Reset() { f.s.Reset(initialState()) }
