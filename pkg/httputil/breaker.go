package httputil

import (
	"sort"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// DefaultTripThreshold is the number of consecutive failures that opens a breaker.
const DefaultTripThreshold = 5

// Breakers holds one circuit breaker per repository host.
type Breakers struct {
	threshold int64
	initial   time.Duration
	max       time.Duration

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// NewBreakers creates a breaker set that trips after threshold consecutive
// failures and retries the host with exponential backoff from 30s to 5m.
func NewBreakers(threshold int64) *Breakers {
	return &Breakers{
		threshold: threshold,
		initial:   30 * time.Second,
		max:       5 * time.Minute,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// For returns the breaker for host, creating it on first use.
func (b *Breakers) For(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok := b.breakers[host]; ok {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = b.initial
	expBackoff.MaxInterval = b.max
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.breakers[host] = breaker
	return breaker
}

// States reports "open" or "closed" for every known host.
func (b *Breakers) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, breaker := range b.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// Hosts returns the known hosts in sorted order.
func (b *Breakers) Hosts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hosts := make([]string, 0, len(b.breakers))
	for h := range b.breakers {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
