package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// FilesAPI covers the /files resource group.
type FilesAPI struct {
	c *Client
}

type fileEnvelope struct {
	File FileRecord `json:"file"`
}

type filesPage struct {
	Files      []FileRecord `json:"files"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	TotalPages int          `json:"totalPages"`
}

func (p filesPage) normalize() Page[FileRecord] {
	items := p.Files
	if items == nil {
		items = []FileRecord{}
	}
	return Page[FileRecord]{Items: items, Total: p.Total, Page: p.Page, TotalPages: p.TotalPages}
}

var spreadsheetContentTypes = map[string]string{
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Upload sends the file as multipart form field "file".
func (f *FilesAPI) Upload(ctx context.Context, fileName string, r io.Reader) (FileRecord, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(fileName)))
	contentType := spreadsheetContentTypes[strings.ToLower(filepath.Ext(fileName))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return FileRecord{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return FileRecord{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return FileRecord{}, fmt.Errorf("close multipart: %w", err)
	}

	var out fileEnvelope
	err = f.c.do(ctx, http.MethodPost, "/files/upload", nil, &body, writer.FormDataContentType(), &out)
	return out.File, err
}

// List returns the current user's files.
func (f *FilesAPI) List(ctx context.Context, params ListParams) (Page[FileRecord], error) {
	var out filesPage
	if err := f.c.getJSON(ctx, "/files/my-files", params.values(), &out); err != nil {
		return Page[FileRecord]{}, err
	}
	return out.normalize(), nil
}

// Get returns one file with its parsed sheets.
func (f *FilesAPI) Get(ctx context.Context, fileID string) (FileRecord, error) {
	var out fileEnvelope
	err := f.c.getJSON(ctx, "/files/"+escape(fileID), nil, &out)
	return out.File, err
}

// Delete removes a file.
func (f *FilesAPI) Delete(ctx context.Context, fileID string) error {
	return f.c.do(ctx, http.MethodDelete, "/files/"+escape(fileID), nil, nil, "", nil)
}

// Stats returns the server-computed statistics of a file as raw JSON.
func (f *FilesAPI) Stats(ctx context.Context, fileID string) (json.RawMessage, error) {
	var out struct {
		Stats json.RawMessage `json:"stats"`
	}
	if err := f.c.getJSON(ctx, "/files/"+escape(fileID)+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return out.Stats, nil
}
