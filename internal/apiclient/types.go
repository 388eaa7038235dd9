package apiclient

import (
	"encoding/json"
	"time"
)

// Role is the authorization level the server assigns to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the identity returned by auth and admin endpoints.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"isActive"`
	UploadCount   int        `json:"uploadCount"`
	TotalDataSize int64      `json:"totalDataSize"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
}

// UnmarshalJSON accepts both "id" and the document-store style "_id".
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User(raw.alias)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Sheet is one parsed worksheet of an uploaded file.
type Sheet struct {
	Name        string   `json:"name"`
	Headers     []string `json:"headers"`
	Data        [][]any  `json:"data"`
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
}

// FileRecord is an uploaded spreadsheet and its parsed sheets.
type FileRecord struct {
	ID              string    `json:"_id"`
	Filename        string    `json:"filename"`
	OriginalName    string    `json:"originalName"`
	FileSize        int64     `json:"fileSize"`
	MimeType        string    `json:"mimeType"`
	UploadedBy      string    `json:"uploadedBy"`
	Sheets          []Sheet   `json:"sheets"`
	IsProcessed     bool      `json:"isProcessed"`
	ProcessingError string    `json:"processingError,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ChartType describes a chart the server can render.
type ChartType struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	Dimensions string `json:"dimensions"`
}

// ChartData is the opaque chart payload produced by the server.
type ChartData struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Analysis is a stored chart generated from a file.
type Analysis struct {
	ID         string    `json:"_id"`
	ChartType  string    `json:"chartType"`
	XAxis      string    `json:"xAxis"`
	YAxis      string    `json:"yAxis"`
	ChartData  ChartData `json:"chartData"`
	ChartImage string    `json:"chartImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GenerateParams selects the sheet, chart type and axes to chart.
type GenerateParams struct {
	FileID       string          `json:"fileId"`
	SheetIndex   int             `json:"sheetIndex"`
	ChartType    string          `json:"chartType"`
	XAxis        string          `json:"xAxis"`
	YAxis        string          `json:"yAxis"`
	ChartOptions json.RawMessage `json:"chartOptions,omitempty"`
}

// GenerateResult is the server response to a chart generation.
type GenerateResult struct {
	ChartData ChartData `json:"chartData"`
	Analysis  *Analysis `json:"analysis,omitempty"`
}

// PlatformStats are the admin dashboard counters.
type PlatformStats struct {
	TotalUsers    int   `json:"totalUsers"`
	ActiveUsers   int   `json:"activeUsers"`
	AdminUsers    int   `json:"adminUsers"`
	TotalFiles    int   `json:"totalFiles"`
	TotalAnalyses int   `json:"totalAnalyses"`
	TotalDataSize int64 `json:"totalDataSize"`
}

// ListParams are the paging and filter parameters accepted by list endpoints.
// Zero values are omitted from the query string.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Role   string
	User   string
}

// Page is the normalized {items, total, page, totalPages} envelope.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the profile fields to change; empty fields are left as is.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// PasswordChange carries the current and new password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
