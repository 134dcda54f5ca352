package runtime

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func sessionServer(t *testing.T) string {
	return newTestServer(t, func(r *gin.Engine) {
		r.GET("/login", func(c *gin.Context) {
			c.SetCookie("sid", "abc", 0, "/", "", false, true)
			c.String(http.StatusOK, "logged in")
		})
		r.GET("/whoami", func(c *gin.Context) {
			sid, _ := c.Cookie("sid")
			c.String(http.StatusOK, "sid=%s", sid)
		})
		r.GET("/hop/:n", func(c *gin.Context) {
			switch c.Param("n") {
			case "3":
				c.String(http.StatusOK, "landed")
			case "1":
				c.Redirect(http.StatusFound, "/hop/2")
			default:
				c.Redirect(http.StatusFound, "/hop/3")
			}
		})
		r.POST("/echo", func(c *gin.Context) {
			c.String(http.StatusOK, "%s|%s|%s", c.ContentType(), c.PostForm("a"), c.Query("q"))
		})
		r.GET("/slow", func(c *gin.Context) {
			time.Sleep(200 * time.Millisecond)
			c.String(http.StatusOK, "late")
		})
	}).URL
}

func TestHTTPSession_Cookies(t *testing.T) {
	base := sessionServer(t)
	s := NewHTTPSession(SessionConfig{MaxRedirects: 10, UserAgent: "rotor-test"})

	if _, err := s.Do(context.Background(), &Request{Method: http.MethodGet, URL: base + "/login", FollowRedirects: true}); err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp, err := s.Do(context.Background(), &Request{Method: http.MethodGet, URL: base + "/whoami", FollowRedirects: true})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if resp.Text() != "sid=abc" {
		t.Errorf("cookie not sent back, got %q", resp.Text())
	}

	u, _ := url.Parse(base + "/")
	if c, ok := s.Cookie(u, "sid"); !ok || c.Value != "abc" {
		t.Errorf("Cookie() = %v, %v", c, ok)
	}
	if c, ok := s.Cookie(nil, "sid"); !ok || c.Value != "abc" {
		t.Errorf("Cookie(nil) = %v, %v", c, ok)
	}

	other, _ := url.Parse("https://elsewhere.example/")
	s.SetCookie(other, &http.Cookie{Name: "gone", Value: "x", Path: "/"})
	s.SetCookie(other, &http.Cookie{Name: "gone", MaxAge: -1, Path: "/"})
	if _, ok := s.Cookie(nil, "gone"); ok {
		t.Error("deleted cookie should be forgotten")
	}
}

func TestHTTPSession_Redirects(t *testing.T) {
	base := sessionServer(t)

	tests := []struct {
		name     string
		max      int
		follow   bool
		wantPath string
		wantCode int
		wantErr  bool
	}{
		{"followed", 10, true, "/hop/3", 200, false},
		{"not followed", 10, false, "/hop/1", 302, false},
		{"too many", 1, true, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewHTTPSession(SessionConfig{MaxRedirects: tt.max})
			resp, err := s.Do(context.Background(), &Request{Method: http.MethodGet, URL: base + "/hop/1", FollowRedirects: tt.follow})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if resp.URL.Path != tt.wantPath || resp.StatusCode != tt.wantCode {
				t.Errorf("got %d %s, want %d %s", resp.StatusCode, resp.URL.Path, tt.wantCode, tt.wantPath)
			}
		})
	}
}

func TestHTTPSession_Bodies(t *testing.T) {
	base := sessionServer(t)
	s := NewHTTPSession(SessionConfig{MaxRedirects: 10})

	resp, err := s.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    base + "/echo",
		Form:   url.Values{"a": {"1"}},
		Query:  url.Values{"q": {"x"}},
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if want := "application/x-www-form-urlencoded|1|x"; resp.Text() != want {
		t.Errorf("got %q, want %q", resp.Text(), want)
	}

	resp, err = s.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    base + "/echo",
		JSON:   map[string]string{"a": "1"},
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if want := "application/json||"; resp.Text() != want {
		t.Errorf("got %q, want %q", resp.Text(), want)
	}
}

func TestHTTPSession_Timeout(t *testing.T) {
	base := sessionServer(t)
	s := NewHTTPSession(SessionConfig{MaxRedirects: 10, Timeout: 50 * time.Millisecond})

	if _, err := s.Do(context.Background(), &Request{Method: http.MethodGet, URL: base + "/slow"}); err == nil {
		t.Error("expected timeout error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPSession(SessionConfig{}).Do(ctx, &Request{Method: http.MethodGet, URL: base + "/whoami"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
