package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func clientRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientID(ClientOptions{Secure: true}))
	r.GET("/", func(c *gin.Context) {
		*seen = ClientIDFromContext(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestClientIDIssuesCookie(t *testing.T) {
	var seen string
	r := clientRouter(&seen)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected uuid client id, got %q", seen)
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ClientCookie || cookies[0].Value != seen {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("expected HttpOnly and Secure cookie")
	}
}

func TestClientIDReusesValidCookie(t *testing.T) {
	var seen string
	r := clientRouter(&seen)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: id})
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen != id {
		t.Fatalf("expected %s, got %s", id, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "not-a-uuid"})
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid" {
		t.Fatalf("malformed cookie must be replaced")
	}
}
