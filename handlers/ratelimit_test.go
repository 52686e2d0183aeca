package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dchest/captcha"
)

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter()
	ip := "127.0.0.1"

	if !limiter.Allow(ip) {
		t.Errorf("Expected IP to be allowed initially")
	}

	for i := 0; i < 2; i++ {
		limiter.RecordFailure(ip)
	}
	if limiter.NeedsCaptcha(ip) {
		t.Errorf("Captcha required after only 2 failures")
	}
	limiter.RecordFailure(ip)
	if !limiter.NeedsCaptcha(ip) || limiter.Failures(ip) != 3 {
		t.Errorf("Expected captcha after 3 failures, got %d failures", limiter.Failures(ip))
	}

	limiter.RecordFailure(ip)
	if !limiter.Allow(ip) {
		t.Errorf("Expected IP to be allowed after 4 failures")
	}

	limiter.RecordFailure(ip)
	if limiter.Allow(ip) {
		t.Errorf("Expected IP to be blocked after 5 failures")
	}

	limiter.Reset(ip)
	if !limiter.Allow(ip) || limiter.Failures(ip) != 0 {
		t.Errorf("Expected IP to be allowed after reset")
	}
}

func TestRateLimiterParallel(t *testing.T) {
	limiter := newRateLimiter()
	ip := "10.0.0.1"

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.RecordFailure(ip)
		}()
	}
	wg.Wait()

	if limiter.Allow(ip) {
		t.Errorf("Expected IP to be blocked after concurrent failures")
	}
}

func TestRateLimiterExpiry(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter()
	limiter.now = func() time.Time { return now }
	ip := "10.0.0.2"

	for i := 0; i < maxAttempts; i++ {
		limiter.RecordFailure(ip)
	}
	if limiter.Allow(ip) {
		t.Fatal("Expected lockout after max attempts")
	}

	now = now.Add(blockDuration + time.Second)
	if !limiter.Allow(ip) {
		t.Error("Lockout did not expire")
	}
	if limiter.Failures(ip) != 0 {
		t.Errorf("Expired lockout kept %d failures", limiter.Failures(ip))
	}

	limiter.RecordFailure(ip)
	now = now.Add(windowDuration + time.Second)
	if limiter.Failures(ip) != 0 {
		t.Error("Failures outlived their window")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter()
	limiter.now = func() time.Time { return now }

	limiter.RecordFailure("old")
	now = now.Add(windowDuration + time.Minute)
	limiter.RecordFailure("fresh")

	limiter.Lock()
	limiter.sweep(now)
	_, oldKept := limiter.failures["old"]
	_, freshKept := limiter.failures["fresh"]
	limiter.Unlock()

	if oldKept || !freshKept {
		t.Errorf("sweep kept old=%v fresh=%v", oldKept, freshKept)
	}
}

// recordingStore keeps the digits of every issued captcha.
type recordingStore struct {
	captcha.Store
	mu     sync.Mutex
	digits map[string][]byte
}

func (s *recordingStore) Set(id string, digits []byte) {
	s.mu.Lock()
	s.digits[id] = append([]byte(nil), digits...)
	s.mu.Unlock()
	s.Store.Set(id, digits)
}

func (s *recordingStore) solution(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, len(s.digits[id]))
	for i, d := range s.digits[id] {
		b[i] = '0' + d
	}
	return string(b)
}

func TestLoginBruteForce(t *testing.T) {
	rs := &recordingStore{Store: captcha.NewMemoryStore(captcha.CollectNum, captcha.Expiration), digits: map[string][]byte{}}
	captcha.SetCustomStore(rs)

	_, h := newTestApp(t)
	onboard(t, h)

	wrong := map[string]string{"pin": "00000000"}
	for i := 0; i < 3; i++ {
		w, _ := call(t, h, "POST", "/api/v1/login", "", wrong)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Attempt %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w, resp := call(t, h, "POST", "/api/v1/login", "", map[string]string{"pin": "12345678"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected captcha challenge, got %d", w.Code)
	}
	var challenge map[string]string
	json.Unmarshal(resp.Data, &challenge)
	if challenge["captcha_id"] == "" {
		t.Fatalf("No captcha issued: %s", w.Body.String())
	}

	solve := func(pin string) int {
		id := captcha.New()
		w, _ := call(t, h, "POST", "/api/v1/login", "", map[string]string{
			"pin": pin, "captcha_id": id, "captcha_solution": rs.solution(id),
		})
		return w.Code
	}

	if code := solve("00000000"); code != http.StatusUnauthorized {
		t.Errorf("4th attempt with captcha expected 401, got %d", code)
	}
	if code := solve("00000000"); code != http.StatusUnauthorized {
		t.Errorf("5th attempt with captcha expected 401, got %d", code)
	}

	w, _ = call(t, h, "POST", "/api/v1/login", "", map[string]string{"pin": "12345678"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after 5 failures, got %d", w.Code)
	}
}

func TestLoginWithSolvedCaptchaSucceeds(t *testing.T) {
	rs := &recordingStore{Store: captcha.NewMemoryStore(captcha.CollectNum, captcha.Expiration), digits: map[string][]byte{}}
	captcha.SetCustomStore(rs)

	app, h := newTestApp(t)
	onboard(t, h)
	for i := 0; i < 3; i++ {
		call(t, h, "POST", "/api/v1/login", "", map[string]string{"pin": "99999999"})
	}

	id := captcha.New()
	w, _ := call(t, h, "POST", "/api/v1/login", "", map[string]string{
		"pin": "12345678", "captcha_id": id, "captcha_solution": rs.solution(id),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected login with solved captcha, got %d: %s", w.Code, w.Body.String())
	}
	if app.limiter.Failures("192.0.2.10") != 0 {
		t.Error("Successful login did not reset the limiter")
	}
}
