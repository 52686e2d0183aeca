package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	maxAttempts    = 5
	captchaAfter   = 3
	blockDuration  = 15 * time.Minute
	windowDuration = 15 * time.Minute
	maxTracked     = 10000
)

type pinFailures struct {
	count int
	since time.Time
}

// rateLimiter counts failed PIN attempts per client IP. A client must solve
// a captcha after captchaAfter failures and is locked out after maxAttempts.
type rateLimiter struct {
	sync.Mutex
	failures map[string]*pinFailures
	blocked  map[string]time.Time
	now      func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		failures: make(map[string]*pinFailures),
		blocked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow returns false while ip is locked out. An expired lockout is
// forgotten together with its failure count.
func (r *rateLimiter) Allow(ip string) bool {
	r.Lock()
	defer r.Unlock()

	until, ok := r.blocked[ip]
	if !ok {
		return true
	}
	if r.now().Before(until) {
		return false
	}
	delete(r.blocked, ip)
	delete(r.failures, ip)
	return true
}

func (r *rateLimiter) RecordFailure(ip string) {
	r.Lock()
	defer r.Unlock()

	now := r.now()
	if len(r.failures) >= maxTracked {
		r.sweep(now)
	}

	f, ok := r.failures[ip]
	if !ok || now.Sub(f.since) > windowDuration {
		r.failures[ip] = &pinFailures{count: 1, since: now}
		return
	}
	f.count++
	if f.count >= maxAttempts {
		r.blocked[ip] = now.Add(blockDuration)
	}
}

// sweep drops stale windows and expired lockouts. Callers hold the lock.
func (r *rateLimiter) sweep(now time.Time) {
	for ip, f := range r.failures {
		if now.Sub(f.since) > windowDuration {
			delete(r.failures, ip)
		}
	}
	for ip, until := range r.blocked {
		if !now.Before(until) {
			delete(r.blocked, ip)
		}
	}
}

// Failures returns the failures recorded for ip in the current window.
func (r *rateLimiter) Failures(ip string) int {
	r.Lock()
	defer r.Unlock()

	f, ok := r.failures[ip]
	if !ok || r.now().Sub(f.since) > windowDuration {
		return 0
	}
	return f.count
}

func (r *rateLimiter) NeedsCaptcha(ip string) bool {
	return r.Failures(ip) >= captchaAfter
}

// Reset forgets ip, used after a successful login.
func (r *rateLimiter) Reset(ip string) {
	r.Lock()
	defer r.Unlock()
	delete(r.failures, ip)
	delete(r.blocked, ip)
}

func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
