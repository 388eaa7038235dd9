// Package testutil provides an in-memory stand-in for the charting REST API.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/files"
)

var signingKey = []byte("fake-api-secret")

type account struct {
	user     apiclient.User
	password string
}

type failure struct {
	status  int
	message string
}

// FakeAPI serves the REST surface under /api from memory. Routes are keyed
// as "METHOD /path" with gin parameters, e.g. "GET /files/:fileId".
type FakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	seq       int
	accounts  map[string]*account // by user id
	files     []*apiclient.FileRecord
	analyses  map[string][]apiclient.Analysis // by file id
	revoked   map[string]bool
	issued    []string
	failures  map[string]failure
	calls     map[string]int
	lastQuery map[string]string
}

// NewFakeAPI starts a fake server that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &FakeAPI{
		accounts:  map[string]*account{},
		analyses:  map[string][]apiclient.Analysis{},
		revoked:   map[string]bool{},
		failures:  map[string]failure{},
		calls:     map[string]int{},
		lastQuery: map[string]string{},
	}
	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API root to hand to apiclient.New.
func (f *FakeAPI) URL() string { return f.Server.URL + "/api" }

// AddUser creates an active account.
func (f *FakeAPI) AddUser(username, email, password string, role apiclient.Role) apiclient.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(username, email, password, role)
}

// AddFile stores rec for owner and returns it with its id set.
func (f *FakeAPI) AddFile(ownerID string, rec apiclient.FileRecord) apiclient.FileRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = f.nextID("f")
	rec.UploadedBy = ownerID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.IsProcessed = true
	f.files = append(f.files, &rec)
	return rec
}

// IssueToken signs a token for userID valid for ttl.
func (f *FakeAPI) IssueToken(userID string, ttl time.Duration) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(userID, ttl)
}

// RevokeAll makes every token issued so far answer 401.
func (f *FakeAPI) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.issued {
		f.revoked[tok] = true
	}
}

// Fail makes route answer status with message until cleared with status 0.
func (f *FakeAPI) Fail(route string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = failure{status: status, message: message}
}

// Calls returns how many requests route received.
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// LastQuery returns the raw query string of the last request to route.
func (f *FakeAPI) LastQuery(route string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[route]
}

func (f *FakeAPI) router() *gin.Engine {
	r := gin.New()
	api := r.Group("/api", f.track)
	api.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api.POST("/auth/login", f.login)
	api.POST("/auth/register", f.register)

	authed := api.Group("", f.authenticate)
	authed.GET("/auth/profile", f.profile)
	authed.GET("/auth/verify", f.profile)
	authed.PUT("/auth/profile", f.updateProfile)
	authed.PUT("/auth/change-password", f.changePassword)

	authed.POST("/files/upload", f.upload)
	authed.GET("/files/my-files", f.myFiles)
	authed.GET("/files/:fileId", f.getFile)
	authed.DELETE("/files/:fileId", f.deleteFile)
	authed.GET("/files/:fileId/stats", f.fileStats)

	authed.GET("/charts/types", f.chartTypes)
	authed.POST("/charts/generate", f.generate)
	authed.GET("/charts/file/:fileId/history", f.history)
	authed.DELETE("/charts/analysis/:analysisId", f.deleteAnalysis)

	admin := authed.Group("/admin", f.requireAdmin)
	admin.GET("/users", f.adminUsers)
	admin.GET("/users/:userId", f.adminUser)
	admin.PUT("/users/:userId/role", f.adminRole)
	admin.PUT("/users/:userId/status", f.adminStatus)
	admin.DELETE("/users/:userId", f.adminDeleteUser)
	admin.GET("/stats", f.adminStats)
	admin.GET("/files", f.adminFiles)
	return r
}

func (f *FakeAPI) track(c *gin.Context) {
	route := c.Request.Method + " " + strings.TrimPrefix(c.FullPath(), "/api")
	f.mu.Lock()
	f.calls[route]++
	f.lastQuery[route] = c.Request.URL.RawQuery
	fail, ok := f.failures[route]
	f.mu.Unlock()
	if ok {
		abort(c, fail.status, fail.message)
		return
	}
	c.Next()
}

func (f *FakeAPI) authenticate(c *gin.Context) {
	raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer"))
	if raw == "" {
		abort(c, http.StatusUnauthorized, "No token provided")
		return
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		abort(c, http.StatusUnauthorized, "Token is not valid")
		return
	}
	f.mu.Lock()
	acct, ok := f.accounts[claims.Subject]
	revoked := f.revoked[raw]
	f.mu.Unlock()
	if !ok || revoked || !acct.user.IsActive {
		abort(c, http.StatusUnauthorized, "Token is not valid")
		return
	}
	c.Set("userID", claims.Subject)
	c.Next()
}

func (f *FakeAPI) requireAdmin(c *gin.Context) {
	f.mu.Lock()
	acct := f.accounts[c.GetString("userID")]
	f.mu.Unlock()
	if acct == nil || acct.user.Role != apiclient.RoleAdmin {
		abort(c, http.StatusForbidden, "Admin access required")
		return
	}
	c.Next()
}

func (f *FakeAPI) login(c *gin.Context) {
	var creds apiclient.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acct := range f.accounts {
		if strings.EqualFold(acct.user.Email, creds.Email) && acct.password == creds.Password && acct.user.IsActive {
			now := time.Now().UTC()
			acct.user.LastLogin = &now
			c.JSON(http.StatusOK, apiclient.AuthResult{Token: f.issueLocked(acct.user.ID, time.Hour), User: acct.user})
			return
		}
	}
	abort(c, http.StatusUnauthorized, "Invalid credentials")
}

func (f *FakeAPI) register(c *gin.Context) {
	var reg apiclient.Registration
	if err := c.ShouldBindJSON(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		abort(c, http.StatusBadRequest, "Username, email and password are required")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acct := range f.accounts {
		if strings.EqualFold(acct.user.Email, reg.Email) {
			abort(c, http.StatusBadRequest, "User already exists")
			return
		}
	}
	user := f.addUserLocked(reg.Username, reg.Email, reg.Password, apiclient.RoleUser)
	c.JSON(http.StatusCreated, apiclient.AuthResult{Token: f.issueLocked(user.ID, time.Hour), User: user})
}

func (f *FakeAPI) profile(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"user": f.accounts[c.GetString("userID")].user})
}

func (f *FakeAPI) updateProfile(c *gin.Context) {
	var update apiclient.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct := f.accounts[c.GetString("userID")]
	if update.Username != "" {
		acct.user.Username = update.Username
	}
	if update.Email != "" {
		acct.user.Email = update.Email
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": acct.user})
}

func (f *FakeAPI) changePassword(c *gin.Context) {
	var change apiclient.PasswordChange
	if err := c.ShouldBindJSON(&change); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct := f.accounts[c.GetString("userID")]
	if acct.password != change.CurrentPassword {
		abort(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	acct.password = change.NewPassword
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (f *FakeAPI) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	src, err := header.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "Unreadable file")
		return
	}
	defer src.Close()
	preview, err := files.Preview(header.Filename, src)
	if err != nil {
		abort(c, http.StatusBadRequest, "Error processing file")
		return
	}
	rec := apiclient.FileRecord{
		Filename:     header.Filename,
		OriginalName: header.Filename,
		FileSize:     header.Size,
		MimeType:     header.Header.Get("Content-Type"),
	}
	for _, sheet := range preview.Sheets {
		rec.Sheets = append(rec.Sheets, apiclient.Sheet{
			Name:        sheet.Name,
			Headers:     sheet.Headers,
			RowCount:    sheet.RowCount,
			ColumnCount: sheet.ColumnCount,
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	userID := c.GetString("userID")
	rec.ID = f.nextID("f")
	rec.UploadedBy = userID
	rec.IsProcessed = true
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	f.files = append(f.files, &rec)
	acct := f.accounts[userID]
	acct.user.UploadCount++
	acct.user.TotalDataSize += rec.FileSize
	c.JSON(http.StatusCreated, gin.H{"message": "File uploaded and processed successfully", "file": rec})
}

func (f *FakeAPI) myFiles(c *gin.Context) {
	userID := c.GetString("userID")
	search := strings.ToLower(c.Query("search"))
	f.mu.Lock()
	var mine []apiclient.FileRecord
	for i := len(f.files) - 1; i >= 0; i-- {
		rec := f.files[i]
		if rec.UploadedBy != userID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.OriginalName), search) {
			continue
		}
		mine = append(mine, *rec)
	}
	f.mu.Unlock()
	items, total, page, pages := paginate(mine, c.Query("page"), c.Query("limit"))
	c.JSON(http.StatusOK, gin.H{"files": items, "total": total, "page": page, "totalPages": pages})
}

func (f *FakeAPI) getFile(c *gin.Context) {
	rec, ok := f.ownedFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": rec})
}

func (f *FakeAPI) deleteFile(c *gin.Context) {
	rec, ok := f.ownedFile(c)
	if !ok {
		return
	}
	f.mu.Lock()
	f.removeFileLocked(rec.ID)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (f *FakeAPI) fileStats(c *gin.Context) {
	rec, ok := f.ownedFile(c)
	if !ok {
		return
	}
	rows := 0
	for _, sheet := range rec.Sheets {
		rows += sheet.RowCount
	}
	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"fileName":   rec.OriginalName,
		"sheetCount": len(rec.Sheets),
		"totalRows":  rows,
	}})
}

func (f *FakeAPI) chartTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chartTypes": []apiclient.ChartType{
		{Value: "bar", Label: "Bar Chart", Dimensions: "2D"},
		{Value: "line", Label: "Line Chart", Dimensions: "2D"},
		{Value: "pie", Label: "Pie Chart", Dimensions: "2D"},
		{Value: "bar3d", Label: "3D Bar Chart", Dimensions: "3D"},
	}})
}

func (f *FakeAPI) generate(c *gin.Context) {
	var params apiclient.GenerateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if params.ChartType == "" || params.XAxis == "" || params.YAxis == "" {
		abort(c, http.StatusBadRequest, "Chart type and axes are required")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findFileLocked(params.FileID)
	if rec == nil || rec.UploadedBy != c.GetString("userID") {
		abort(c, http.StatusNotFound, "File not found")
		return
	}
	if params.SheetIndex < 0 || params.SheetIndex >= len(rec.Sheets) {
		abort(c, http.StatusBadRequest, "Invalid sheet index")
		return
	}
	data := fmt.Sprintf(`{"labels":[%q],"datasets":[{"label":%q,"data":[1]}]}`, params.XAxis, params.YAxis)
	chart := apiclient.ChartData{Type: params.ChartType, Data: []byte(data), Options: params.ChartOptions}
	analysis := apiclient.Analysis{
		ID:        f.nextID("a"),
		ChartType: params.ChartType,
		XAxis:     params.XAxis,
		YAxis:     params.YAxis,
		ChartData: chart,
		CreatedAt: time.Now().UTC(),
	}
	f.analyses[rec.ID] = append([]apiclient.Analysis{analysis}, f.analyses[rec.ID]...)
	c.JSON(http.StatusOK, apiclient.GenerateResult{ChartData: chart, Analysis: &analysis})
}

func (f *FakeAPI) history(c *gin.Context) {
	rec, ok := f.ownedFile(c)
	if !ok {
		return
	}
	f.mu.Lock()
	items := append([]apiclient.Analysis{}, f.analyses[rec.ID]...)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"analysisHistory": items})
}

func (f *FakeAPI) deleteAnalysis(c *gin.Context) {
	id := c.Param("analysisId")
	f.mu.Lock()
	defer f.mu.Unlock()
	for fileID, items := range f.analyses {
		for i, a := range items {
			if a.ID == id {
				f.analyses[fileID] = append(items[:i:i], items[i+1:]...)
				c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted successfully"})
				return
			}
		}
	}
	abort(c, http.StatusNotFound, "Analysis not found")
}

func (f *FakeAPI) adminUsers(c *gin.Context) {
	search := strings.ToLower(c.Query("search"))
	role := c.Query("role")
	f.mu.Lock()
	var users []apiclient.User
	for _, acct := range f.accounts {
		if role != "" && string(acct.user.Role) != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(acct.user.Username+" "+acct.user.Email), search) {
			continue
		}
		users = append(users, acct.user)
	}
	f.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	items, total, page, pages := paginate(users, c.Query("page"), c.Query("limit"))
	c.JSON(http.StatusOK, gin.H{"users": items, "total": total, "page": page, "totalPages": pages})
}

func (f *FakeAPI) adminUser(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[c.Param("userId")]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": acct.user})
}

func (f *FakeAPI) adminRole(c *gin.Context) {
	var body struct {
		Role apiclient.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || (body.Role != apiclient.RoleUser && body.Role != apiclient.RoleAdmin) {
		abort(c, http.StatusBadRequest, "Invalid role")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[c.Param("userId")]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	acct.user.Role = body.Role
	c.JSON(http.StatusOK, gin.H{"message": "User role updated successfully", "user": acct.user})
}

func (f *FakeAPI) adminStatus(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[c.Param("userId")]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	acct.user.IsActive = !acct.user.IsActive
	c.JSON(http.StatusOK, gin.H{"user": acct.user})
}

func (f *FakeAPI) adminDeleteUser(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := c.Param("userId")
	if _, ok := f.accounts[id]; !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	delete(f.accounts, id)
	kept := f.files[:0]
	for _, rec := range f.files {
		if rec.UploadedBy != id {
			kept = append(kept, rec)
		}
	}
	f.files = kept
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (f *FakeAPI) adminStats(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats apiclient.PlatformStats
	for _, acct := range f.accounts {
		stats.TotalUsers++
		if acct.user.IsActive {
			stats.ActiveUsers++
		}
		if acct.user.Role == apiclient.RoleAdmin {
			stats.AdminUsers++
		}
	}
	for _, rec := range f.files {
		stats.TotalFiles++
		stats.TotalDataSize += rec.FileSize
	}
	for _, items := range f.analyses {
		stats.TotalAnalyses += len(items)
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (f *FakeAPI) adminFiles(c *gin.Context) {
	owner := c.Query("user")
	f.mu.Lock()
	var all []apiclient.FileRecord
	for i := len(f.files) - 1; i >= 0; i-- {
		if owner == "" || f.files[i].UploadedBy == owner {
			all = append(all, *f.files[i])
		}
	}
	f.mu.Unlock()
	items, total, page, pages := paginate(all, c.Query("page"), c.Query("limit"))
	c.JSON(http.StatusOK, gin.H{"files": items, "total": total, "page": page, "totalPages": pages})
}

func (f *FakeAPI) ownedFile(c *gin.Context) (apiclient.FileRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findFileLocked(c.Param("fileId"))
	if rec == nil || rec.UploadedBy != c.GetString("userID") {
		abort(c, http.StatusNotFound, "File not found")
		return apiclient.FileRecord{}, false
	}
	return *rec, true
}

func (f *FakeAPI) findFileLocked(id string) *apiclient.FileRecord {
	for _, rec := range f.files {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (f *FakeAPI) removeFileLocked(id string) {
	for i, rec := range f.files {
		if rec.ID == id {
			f.files = append(f.files[:i:i], f.files[i+1:]...)
			delete(f.analyses, id)
			return
		}
	}
}

func (f *FakeAPI) addUserLocked(username, email, password string, role apiclient.Role) apiclient.User {
	user := apiclient.User{
		ID:        f.nextID("u"),
		Username:  username,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	f.accounts[user.ID] = &account{user: user, password: password}
	return user
}

func (f *FakeAPI) issueLocked(userID string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        f.nextID("t"),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	f.issued = append(f.issued, signed)
	return signed
}

func (f *FakeAPI) nextID(prefix string) string {
	f.seq++
	return prefix + strconv.Itoa(f.seq)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func paginate[T any](items []T, rawPage, rawLimit string) ([]T, int, int, int) {
	page, _ := strconv.Atoi(rawPage)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(rawLimit)
	if limit < 1 {
		limit = 10
	}
	total := len(items)
	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := append([]T{}, items[start:end]...)
	return out, total, page, pages
}
