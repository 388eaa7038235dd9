package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/files"
	"sheetchart-web/internal/testutil"
	"sheetchart-web/internal/workspace"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func setup(t *testing.T) (*testutil.FakeAPI, string) {
	t.Helper()
	api := testutil.NewFakeAPI(t)
	home := t.TempDir()
	t.Setenv("SHEETCHART_HOME", home)
	t.Setenv("SHEETCHART_API_URL", api.URL())
	t.Setenv("SHEETCHART_PROFILE", "")
	t.Setenv(passwordEnv, "")
	return api, home
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), args, &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func login(t *testing.T, email string) {
	t.Helper()
	res := run(t, "login", "--email", email, "--password", "secret")
	require.Equal(t, 0, res.code, res.stderr)
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)

	res := run(t, "login", "--email", "ana@example.com", "--password", "secret")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "success: Login successful!")

	res = run(t, "whoami")
	require.Equal(t, 0, res.code, res.stderr)
	var user apiclient.User
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &user))
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, 1, api.Calls("GET /auth/profile"), "restored token resolves its user once")

	res = run(t, "logout")
	require.Equal(t, 0, res.code, res.stderr)
	res = run(t, "whoami")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not logged in")
}

func TestPasswordFromEnvironment(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	t.Setenv(passwordEnv, "secret")

	res := run(t, "login", "--email", "ana@example.com")
	assert.Equal(t, 0, res.code, res.stderr)
}

func TestCommandsRequireLogin(t *testing.T) {
	api, _ := setup(t)

	res := run(t, "files", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not logged in")
	assert.Equal(t, 0, api.Calls("GET /files/my-files"))
}

func TestWrongPasswordIsReported(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)

	res := run(t, "login", "--email", "ana@example.com", "--password", "nope")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "error: Invalid credentials")
	assert.NotContains(t, res.stderr, workspace.MsgSessionExpired)
}

func TestExpiredSessionReportedOnce(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	login(t, "ana@example.com")

	api.RevokeAll()
	res := run(t, "files", "list")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, 1, strings.Count(res.stderr, workspace.MsgSessionExpired), res.stderr)
	assert.NotContains(t, res.stderr, "error:")

	res = run(t, "files", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not logged in")
	assert.NotContains(t, res.stderr, workspace.MsgSessionExpired)
}

func TestUploadValidatesBeforeSending(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	login(t, "ana@example.com")

	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o600))
	sales := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(sales, []byte("month,sales\njan,10\nfeb,12\n"), 0o600))

	res := run(t, "files", "upload", notes)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, files.MsgInvalidType)

	res = run(t, "files", "upload", "--preview", sales)
	require.Equal(t, 0, res.code, res.stderr)
	var preview files.PreviewResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &preview))
	require.Len(t, preview.Sheets, 1)
	assert.Equal(t, 2, preview.Sheets[0].RowCount)
	assert.Equal(t, 0, api.Calls("POST /files/upload"))

	res = run(t, "files", "upload", sales)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "File uploaded successfully!")
	assert.Equal(t, 1, api.Calls("POST /files/upload"))

	res = run(t, "files", "list", "--limit", "5")
	require.Equal(t, 0, res.code, res.stderr)
	var page apiclient.Page[apiclient.FileRecord]
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "limit=5&page=1", api.LastQuery("GET /files/my-files"))
}

func TestServerMessageIsShown(t *testing.T) {
	api, _ := setup(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	login(t, "ana@example.com")

	res := run(t, "files", "show", "missing")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "error: File not found")
}

func TestGenerateAndExport(t *testing.T) {
	api, home := setup(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	file := api.AddFile(user.ID, apiclient.FileRecord{
		OriginalName: "sales.csv",
		Sheets:       []apiclient.Sheet{{Name: "sales", Headers: []string{"month", "sales"}, RowCount: 2}},
	})
	login(t, "ana@example.com")

	res := run(t, "charts", "generate", file.ID, "-t", "bar", "-x", "month")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, 0, api.Calls("POST /charts/generate"))

	res = run(t, "charts", "generate", file.ID, "-t", "bar", "-x", "month", "-y", "sales", "--options", "[1]")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "JSON object")

	res = run(t, "charts", "generate", file.ID, "-t", "bar", "-x", "month", "-y", "sales",
		"--options", `{"title":"Sales"}`, "--export")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Chart generated successfully!")

	exports, err := filepath.Glob(filepath.Join(home, "exports", "*", "*.json"))
	require.NoError(t, err)
	require.Len(t, exports, 1)
	body, err := os.ReadFile(exports[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"chartType": "bar"`)
	assert.Contains(t, string(body), `"title": "Sales"`)

	res = run(t, "charts", "history", file.ID)
	require.Equal(t, 0, res.code, res.stderr)
	var history []apiclient.Analysis
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &history))
	require.Len(t, history, 1)

	res = run(t, "charts", "delete", history[0].ID)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Analysis deleted successfully")
}

func TestAdminCommandsRequireRole(t *testing.T) {
	api, _ := setup(t)
	ana := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	api.AddUser("root", "root@example.com", "secret", apiclient.RoleAdmin)

	login(t, "ana@example.com")
	res := run(t, "admin", "stats")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "admin role")
	assert.Equal(t, 0, api.Calls("GET /admin/stats"))

	login(t, "root@example.com")
	res = run(t, "admin", "stats")
	require.Equal(t, 0, res.code, res.stderr)
	var stats apiclient.PlatformStats
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &stats))
	assert.Equal(t, 2, stats.TotalUsers)

	res = run(t, "admin", "role", ana.ID, "owner")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "role must be user or admin")

	res = run(t, "admin", "role", ana.ID, "admin")
	require.Equal(t, 0, res.code, res.stderr)
	var updated apiclient.User
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &updated))
	assert.Equal(t, apiclient.RoleAdmin, updated.Role)
}
