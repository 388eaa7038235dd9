package pages

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/files"
	"sheetchart-web/internal/session"
	"sheetchart-web/internal/shared/server/middleware"
	"sheetchart-web/internal/shared/storage/object/local"
	"sheetchart-web/internal/shared/util"
	"sheetchart-web/internal/testutil"
	"sheetchart-web/internal/workspace"
)

type renderedView struct {
	Page    string `json:"page"`
	Session struct {
		IsAuthenticated bool            `json:"isAuthenticated"`
		User            *apiclient.User `json:"user"`
	} `json:"session"`
	Notices []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notices"`
	Data json.RawMessage `json:"data"`
}

type browser struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newRouter(t *testing.T, api *testutil.FakeAPI, store session.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := workspace.NewRegistry(workspace.Deps{APIBaseURL: api.URL(), APITimeout: 5 * time.Second, Store: store}, time.Hour)
	exporter := &charts.Exporter{Store: local.New(t.TempDir())}
	r := gin.New()
	r.Use(middleware.ClientID(middleware.ClientOptions{}))
	NewHandler(reg, exporter).RegisterRoutes(r)
	return r
}

func newBrowser(t *testing.T, router *gin.Engine) *browser {
	return &browser{t: t, router: router}
}

func (b *browser) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.ClientCookie {
			b.cookie = ck
		}
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, "")
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (b *browser) upload(target, name, contentType string, content []byte, extra map[string]string) *httptest.ResponseRecorder {
	b.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		b.t.Fatalf("create part: %v", err)
	}
	part.Write(content)
	for k, v := range extra {
		mw.WriteField(k, v)
	}
	mw.Close()
	return b.do(http.MethodPost, target, &body, mw.FormDataContentType())
}

func (b *browser) login(email, password string) {
	b.t.Helper()
	rec := b.postForm("/login", url.Values{"email": {email}, "password": {password}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		b.t.Fatalf("login: status %d location %q body %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) renderedView {
	t.Helper()
	var v renderedView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v body=%s", err, rec.Body.String())
	}
	return v
}

func hasNotice(v renderedView, level, message string) bool {
	for _, n := range v.Notices {
		if n.Level == level && n.Message == message {
			return true
		}
	}
	return false
}

var sampleCSV = []byte("month,sales\njan,10\nfeb,12\n")

func TestAnonymousIsRedirectedToLogin(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))

	for _, target := range []string{"/dashboard", "/files", "/upload", "/analysis/f1", "/profile", "/admin"} {
		rec := b.get(target)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Fatalf("%s: status %d location %q", target, rec.Code, rec.Header().Get("Location"))
		}
	}
	if got := api.Calls("GET /files/my-files"); got != 0 {
		t.Fatalf("guarded page dispatched %d list requests", got)
	}

	rec := b.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("home status %d", rec.Code)
	}
	if v := decodeView(t, rec); v.Page != "home" || v.Session.IsAuthenticated {
		t.Fatalf("unexpected home view %+v", v)
	}
}

func TestLoginAndDashboard(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	for i := 0; i < 7; i++ {
		api.AddFile(user.ID, apiclient.FileRecord{OriginalName: "sheet.csv", FileSize: 1024})
	}
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")

	rec := b.get("/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status %d body %s", rec.Code, rec.Body.String())
	}
	v := decodeView(t, rec)
	if !hasNotice(v, "success", "Login successful!") {
		t.Fatalf("missing login notice: %+v", v.Notices)
	}
	var data dashboardView
	if err := json.Unmarshal(v.Data, &data); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if data.TotalFiles != 7 || len(data.RecentFiles) != 5 {
		t.Fatalf("dashboard total=%d recent=%d, want 7 and 5", data.TotalFiles, len(data.RecentFiles))
	}
	if q := api.LastQuery("GET /files/my-files"); q != "limit=5&page=1" {
		t.Fatalf("dashboard query %q", q)
	}

	if again := decodeView(t, b.get("/dashboard")); len(again.Notices) != 0 {
		t.Fatalf("notices must be drained once, got %+v", again.Notices)
	}

	rec = b.get("/login")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("login page while authenticated: %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestWrongPasswordStaysOnLogin(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))

	rec := b.postForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	v := decodeView(t, rec)
	if v.Page != "login" || !hasNotice(v, "error", "Invalid credentials") {
		t.Fatalf("unexpected view %+v", v)
	}

	rec = b.postForm("/login", url.Values{"email": {"ana@example.com"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: status %d", rec.Code)
	}
}

func TestUploadValidationNeverDispatches(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")
	b.get("/dashboard")

	rec := b.upload("/upload", "notes.txt", "text/plain", []byte("hello"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if v := decodeView(t, rec); !hasNotice(v, "error", files.MsgInvalidType) {
		t.Fatalf("missing validation notice: %+v", v.Notices)
	}
	if got := api.Calls("POST /files/upload"); got != 0 {
		t.Fatalf("upload dispatched %d times", got)
	}
}

func TestUploadPreviewAndSubmit(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")
	b.get("/dashboard")

	rec := b.upload("/upload", "sales.csv", "text/csv", sampleCSV, map[string]string{"preview": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status %d body %s", rec.Code, rec.Body.String())
	}
	var preview uploadView
	if err := json.Unmarshal(decodeView(t, rec).Data, &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Preview == nil || len(preview.Preview.Sheets) != 1 || preview.Preview.Sheets[0].RowCount != 2 {
		t.Fatalf("unexpected preview %+v", preview.Preview)
	}
	if api.Calls("POST /files/upload") != 0 {
		t.Fatalf("preview must not upload")
	}

	rec = b.upload("/upload", "sales.csv", "text/csv", sampleCSV, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("upload: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	v := decodeView(t, b.get("/dashboard"))
	if !hasNotice(v, "success", msgUploaded) {
		t.Fatalf("missing upload notice: %+v", v.Notices)
	}
}

func TestUploadServerFailure(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")
	b.get("/dashboard")

	api.Fail("POST /files/upload", http.StatusInternalServerError, "disk full")
	rec := b.upload("/upload", "sales.csv", "text/csv", sampleCSV, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
	if v := decodeView(t, rec); !hasNotice(v, "error", msgUploadFailed) {
		t.Fatalf("missing failure notice: %+v", v.Notices)
	}

	api.Fail("POST /files/upload", 0, "")
	api.RevokeAll()
	rec = b.upload("/upload", "sales.csv", "text/csv", sampleCSV, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expired upload: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	v := decodeView(t, b.get("/login"))
	if !hasNotice(v, "info", workspace.MsgSessionExpired) {
		t.Fatalf("missing expiry notice: %+v", v.Notices)
	}
	if hasNotice(v, "error", msgUploadFailed) || len(v.Notices) != 1 {
		t.Fatalf("expired upload must only report the expiry: %+v", v.Notices)
	}
}

func TestDashboardIgnoresFileSearch(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	api.AddFile(user.ID, apiclient.FileRecord{OriginalName: "sales.csv"})
	api.AddFile(user.ID, apiclient.FileRecord{OriginalName: "costs.csv"})
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")

	rec := b.get("/files?search=sales")
	if rec.Code != http.StatusOK {
		t.Fatalf("files status %d", rec.Code)
	}
	if q := api.LastQuery("GET /files/my-files"); !strings.Contains(q, "search=sales") {
		t.Fatalf("search not sent: %q", q)
	}

	rec = b.get("/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status %d", rec.Code)
	}
	if q := api.LastQuery("GET /files/my-files"); q != "limit=5&page=1" {
		t.Fatalf("dashboard query %q", q)
	}
}

func TestExpiredSessionRedirectsOnce(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")
	b.get("/dashboard")

	api.RevokeAll()
	rec := b.get("/files")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("status %d location %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = b.get("/login")
	if rec.Code != http.StatusOK {
		t.Fatalf("login page status %d", rec.Code)
	}
	v := decodeView(t, rec)
	if v.Session.IsAuthenticated || !hasNotice(v, "info", workspace.MsgSessionExpired) {
		t.Fatalf("unexpected view after expiry %+v", v)
	}
}

func TestRestartHydratesFromStore(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	store := session.NewMemoryStore()

	first := newBrowser(t, newRouter(t, api, store))
	first.login("ana@example.com", "secret")

	second := newBrowser(t, newRouter(t, api, store))
	second.cookie = first.cookie
	rec := second.get("/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if v := decodeView(t, rec); v.Session.User == nil || v.Session.User.Username != "ana" {
		t.Fatalf("session not restored: %+v", v.Session)
	}
	if api.Calls("GET /auth/profile") != 1 {
		t.Fatalf("profile calls = %d, want 1", api.Calls("GET /auth/profile"))
	}
}

func TestAdminGuard(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	api.AddUser("root", "root@example.com", "secret", apiclient.RoleAdmin)

	user := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	user.login("ana@example.com", "secret")
	rec := user.get("/admin/users")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("user on admin: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	admin := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	admin.login("root@example.com", "secret")
	rec = admin.get("/admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status %d body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Stats *apiclient.PlatformStats       `json:"stats"`
		Users apiclient.Page[apiclient.User] `json:"users"`
	}
	if err := json.Unmarshal(decodeView(t, rec).Data, &data); err != nil {
		t.Fatalf("decode admin: %v", err)
	}
	if data.Stats == nil || data.Stats.TotalUsers != 2 || data.Users.Total != 2 {
		t.Fatalf("unexpected admin data %+v", data)
	}

	rec = admin.postForm("/admin/users/u1/role", url.Values{"role": {"admin"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("role update status %d body %s", rec.Code, rec.Body.String())
	}
	rec = admin.postForm("/admin/users/u1/role", url.Values{"role": {"owner"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid role status %d", rec.Code)
	}
}

func TestGenerateAndExport(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	file := api.AddFile(user.ID, apiclient.FileRecord{
		OriginalName: "sales.csv",
		Sheets:       []apiclient.Sheet{{Name: "sales", Headers: []string{"month", "sales"}, RowCount: 2}},
	})
	b := newBrowser(t, newRouter(t, api, session.NewMemoryStore()))
	b.login("ana@example.com", "secret")

	rec := b.get("/analysis/" + file.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis status %d body %s", rec.Code, rec.Body.String())
	}

	rec = b.postForm("/analysis/"+file.ID+"/export", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("export without chart: status %d", rec.Code)
	}

	rec = b.postForm("/analysis/"+file.ID+"/generate", url.Values{
		"chartType": {"bar"}, "xAxis": {"month"}, "yAxis": {"sales"}, "sheetIndex": {"0"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status %d body %s", rec.Code, rec.Body.String())
	}
	var view analysisView
	if err := json.Unmarshal(decodeView(t, rec).Data, &view); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if view.Charts.CurrentChart == nil || len(view.Charts.AnalysisHistory) != 1 {
		t.Fatalf("chart not generated: %+v", view.Charts)
	}

	rec = b.postForm("/analysis/"+file.ID+"/export", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("export status %d body %s", rec.Code, rec.Body.String())
	}
	var obj struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(decodeView(t, rec).Data, &obj); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if !strings.HasPrefix(obj.URL, "/exports/") {
		t.Fatalf("unexpected export url %q", obj.URL)
	}

	rec = b.get(obj.URL)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"chartType": "bar"`) {
		t.Fatalf("download status %d body %s", rec.Code, rec.Body.String())
	}

	other := newBrowser(t, b.router)
	bob := api.AddUser("bob", "bob@example.com", "secret", apiclient.RoleUser)
	other.login("bob@example.com", "secret")
	if rec := other.get(obj.URL); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign download status %d", rec.Code)
	}
	if rec := other.get("/exports/" + util.HashKey(bob.ID) + "/../" + obj.Key); rec.Code != http.StatusNotFound {
		t.Fatalf("traversal download status %d body %s", rec.Code, rec.Body.String())
	}
}
