package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	enabled := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	disabled := Middleware(Config{})(ok)

	tests := []struct {
		name    string
		handler http.Handler
		path    string
		header  string
		want    int
	}{
		{"disabled", disabled, "/api/v1/satellites", "", http.StatusNoContent},
		{"valid token", enabled, "/api/v1/satellites", "Bearer s3cret", http.StatusNoContent},
		{"lowercase scheme", enabled, "/api/v1/satellites", "bearer s3cret", http.StatusNoContent},
		{"missing header", enabled, "/api/v1/groundtrack/25544", "", http.StatusUnauthorized},
		{"wrong token", enabled, "/api/v1/groundtrack/25544", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", enabled, "/api/v1/satellites", "Basic s3cret", http.StatusUnauthorized},
		{"bare token", enabled, "/api/v1/satellites", "s3cret", http.StatusUnauthorized},
		{"empty bearer", enabled, "/api/v1/satellites", "Bearer ", http.StatusUnauthorized},
		{"health exempt", enabled, "/healthz", "", http.StatusNoContent},
		{"ready exempt", enabled, "/readyz", "", http.StatusNoContent},
		{"metrics exempt", enabled, "/metrics", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}
