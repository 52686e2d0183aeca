package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	middleware := SecurityHeadersMiddleware(dummyHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for key, expectedValue := range expectedHeaders {
		if value := rr.Header().Get(key); value != expectedValue {
			t.Errorf("Header %s: expected %s, got %s", key, expectedValue, value)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	expectedDirectives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' https://unpkg.com",
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com",
	}
	for _, directive := range expectedDirectives {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing directive: %s. Got: %s", directive, csp)
		}
	}

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", rr.Code)
	}
}

func TestCacheControlHeaders(t *testing.T) {
	handler := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	cases := map[string]bool{
		"/api/v1/dashboard":   true,
		"/api/v1/export":      true,
		"/static/style.css":   false,
		"/captcha/abc123.png": false,
	}
	for path, noStore := range cases {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		cc := w.Header().Get("Cache-Control")
		if strings.Contains(cc, "no-store") != noStore {
			t.Errorf("%s: unexpected Cache-Control %q", path, cc)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	middleware := CORSMiddleware(dummyHandler)

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	if val := rr.Header().Get("Access-Control-Allow-Origin"); val != "http://example.com" {
		t.Errorf("Expected Access-Control-Allow-Origin to be http://example.com, got %s", val)
	}
	if val := rr.Header().Get("Access-Control-Allow-Methods"); val != "POST, GET, OPTIONS, PUT, DELETE" {
		t.Errorf("Unexpected Access-Control-Allow-Methods: %s", val)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-API-Token") {
		t.Error("X-API-Token is not an allowed header")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("Preflight should not reach the handler, got %d", rr.Code)
	}
}

func cookiesFrom(w *httptest.ResponseRecorder, jar map[string]*http.Cookie) {
	for _, c := range w.Result().Cookies() {
		jar[c.Name] = c
	}
}

func TestCSRFProtection(t *testing.T) {
	app, _ := newTestApp(t)
	h := app.Handler([]byte("0123456789abcdef0123456789abcdef"), false)
	jar := map[string]*http.Cookie{}

	send := func(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		for _, c := range jar {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		cookiesFrom(w, jar)
		return w
	}

	w := send("POST", "/api/v1/onboard", `{"name":"Ana","pin":"12345678"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Onboard through the middleware chain failed with %d: %s", w.Code, w.Body.String())
	}
	var resp envelope
	json.Unmarshal(w.Body.Bytes(), &resp)
	var data sessionData
	json.Unmarshal(resp.Data, &data)

	w = send("POST", "/api/v1/notifications/read", "", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Cookie write without CSRF token expected 403, got %d", w.Code)
	}

	w = send("GET", "/api/v1/csrf", "", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	var tok map[string]string
	json.Unmarshal(resp.Data, &tok)
	if tok["csrf_token"] == "" {
		t.Fatalf("No CSRF token issued: %s", w.Body.String())
	}

	w = send("POST", "/api/v1/notifications/read", "", map[string]string{"X-CSRF-Token": tok["csrf_token"]})
	if w.Code != http.StatusOK {
		t.Errorf("Cookie write with CSRF token expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest("POST", "/api/v1/notifications/read", nil)
	req.Header.Set("X-API-Token", data.Token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Token write expected 200 without CSRF token, got %d", rr.Code)
	}
}
