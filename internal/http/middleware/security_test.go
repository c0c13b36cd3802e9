package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		opt     SecurityOptions
		prepare func(*http.Request)
		preset  map[string]string
		want    map[string]string
	}{
		{
			name: "baseline only",
			opt:  SecurityOptions{EnableHSTS: true},
			want: map[string]string{
				"X-Content-Type-Options":        "nosniff",
				"X-Frame-Options":               "DENY",
				"Referrer-Policy":               "no-referrer",
				"Permissions-Policy":            "",
				"Cache-Control":                 "",
				"Strict-Transport-Security":     "",
				"Access-Control-Expose-Headers": "",
			},
		},
		{
			name:    "all options over TLS",
			opt:     SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, NoStore: true, EnablePolicy: true},
			prepare: func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			want: map[string]string{
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
				"Strict-Transport-Security":         "max-age=86400; includeSubDomains; preload",
			},
		},
		{
			name:    "default max age behind proxy",
			opt:     SecurityOptions{EnableHSTS: true},
			prepare: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") },
			want:    map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name:   "expose request id",
			preset: map[string]string{"X-Request-ID": "rid-1"},
			want:   map[string]string{"Access-Control-Expose-Headers": "X-Request-ID"},
		},
		{
			name:   "append to existing expose list",
			preset: map[string]string{"X-Request-ID": "rid-1", "Access-Control-Expose-Headers": "Foo"},
			want:   map[string]string{"Access-Control-Expose-Headers": "Foo, X-Request-ID"},
		},
		{
			name:   "no duplicate in expose list",
			preset: map[string]string{"X-Request-ID": "rid-1", "Access-Control-Expose-Headers": "X-Request-ID, Foo"},
			want:   map[string]string{"Access-Control-Expose-Headers": "X-Request-ID, Foo"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				for k, v := range tc.preset {
					c.Header(k, v)
				}
				c.Next()
			})
			r.Use(SecurityHeaders(tc.opt))
			r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tc.prepare != nil {
				tc.prepare(req)
			}
			r.ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q; want %q", k, got, v)
				}
			}
		})
	}
}
