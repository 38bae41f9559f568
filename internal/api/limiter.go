package api

import (
	"sync"
)

// buildLimiter caps concurrent trajectory builds per client IP and globally.
type buildLimiter struct {
	mu       sync.Mutex
	active   map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newBuildLimiter(maxPerIP, maxTotal int) *buildLimiter {
	return &buildLimiter{
		active:   make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire attempts to register a build for the given IP. Returns false if the
// IP or global limit has been reached. A limit of zero is unlimited.
func (l *buildLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false
	}
	if l.maxPerIP > 0 && l.active[ip] >= l.maxPerIP {
		return false
	}

	l.active[ip]++
	l.total++
	return true
}

// release decrements the build count for the given IP.
func (l *buildLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active[ip]--
	l.total--
	if l.active[ip] <= 0 {
		delete(l.active, ip)
	}
}

// count returns the number of active builds for the given IP.
func (l *buildLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[ip]
}
