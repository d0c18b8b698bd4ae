// Package service is the workload under management: a multi-tenant rate
// limiter the monitor watches and the agent remediates. It exists so the
// harness has something real to observe end to end.
package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter hands out tokens per client id. Unknown clients get a
// bucket with the default capacity and refill rate on first sight.
type ClientLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	defaultRate rate.Limit
	defaultCap  int

	allowed int64
	denied  int64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed         bool    `json:"allowed"`
	ClientID        string  `json:"client_id"`
	TokensRemaining float64 `json:"tokens_remaining"`
}

// Stats summarizes the limiter for the stats endpoint and metrics.
type Stats struct {
	Clients      int     `json:"clients"`
	Allowed      int64   `json:"allowed"`
	Denied       int64   `json:"denied"`
	DefaultRate  float64 `json:"default_rate"`
	DefaultBurst int     `json:"default_burst"`
}

// ClientStats describes one client's bucket.
type ClientStats struct {
	ClientID        string    `json:"client_id"`
	TokensRemaining float64   `json:"tokens_remaining"`
	Rate            float64   `json:"rate"`
	Burst           int       `json:"burst"`
	LastSeen        time.Time `json:"last_seen"`
}

// NewClientLimiter builds a limiter where each new client refills at
// perSecond tokens up to burst.
func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	return &ClientLimiter{
		buckets:     make(map[string]*bucket),
		defaultRate: rate.Limit(perSecond),
		defaultCap:  burst,
	}
}

// Check consumes cost tokens for the client if available.
func (l *ClientLimiter) Check(clientID string, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.defaultRate, l.defaultCap)}
		l.buckets[clientID] = b
	}
	b.lastSeen = time.Now().UTC()

	allowed := b.limiter.AllowN(time.Now(), cost)
	if allowed {
		l.allowed++
	} else {
		l.denied++
	}
	return Decision{
		Allowed:         allowed,
		ClientID:        clientID,
		TokensRemaining: b.limiter.Tokens(),
	}
}

// Configure sets a client-specific rate and burst, creating the bucket if
// needed.
func (l *ClientLimiter) Configure(clientID string, perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		l.buckets[clientID] = &bucket{
			limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
			lastSeen: time.Now().UTC(),
		}
		return
	}
	b.limiter.SetLimit(rate.Limit(perSecond))
	b.limiter.SetBurst(burst)
}

// Remove forgets a client.
func (l *ClientLimiter) Remove(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.buckets[clientID]
	delete(l.buckets, clientID)
	return ok
}

// Client returns one client's stats, if the client is known.
func (l *ClientLimiter) Client(clientID string) (ClientStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		return ClientStats{}, false
	}
	return ClientStats{
		ClientID:        clientID,
		TokensRemaining: b.limiter.Tokens(),
		Rate:            float64(b.limiter.Limit()),
		Burst:           b.limiter.Burst(),
		LastSeen:        b.lastSeen,
	}, true
}

// Stats returns service-wide counters.
func (l *ClientLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Clients:      len(l.buckets),
		Allowed:      l.allowed,
		Denied:       l.denied,
		DefaultRate:  float64(l.defaultRate),
		DefaultBurst: l.defaultCap,
	}
}
