package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(nil) })

	router := gin.New()
	router.Use(RequestID(), ClientID(ClientOptions{}), Logging())
	router.GET("/files/:fileId", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login")
	})

	req := httptest.NewRequest(http.MethodGet, "/files/f1", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "client_id", "route", "duration_ms", "status", "location"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["route"] != "/files/:fileId" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["status"] != float64(http.StatusFound) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}
