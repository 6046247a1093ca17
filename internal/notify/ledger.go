package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"
	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

// Ledger remembers which intents were already delivered so polling loops do not repeat them.
// Entries expire after ttl.
type Ledger struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]time.Time
}

func NewLedger(clk clock.Clock, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Ledger{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

func LedgerKey(intent models.NotificationIntent) string {
	return intent.TicketID + "|" + intent.Kind + "|" + intent.Channel
}

func (l *Ledger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.clock.Now().Sub(at) >= l.ttl {
		delete(l.entries, key)
		return false
	}
	return true
}

func (l *Ledger) Mark(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = l.clock.Now()
}

// ForgetTicket drops every entry recorded for ticketID.
func (l *Ledger) ForgetTicket(ticketID string) {
	prefix := ticketID + "|"
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries {
		if strings.HasPrefix(key, prefix) {
			delete(l.entries, key)
		}
	}
}

// Purge removes expired entries and returns how many were dropped.
func (l *Ledger) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	removed := 0
	for key, at := range l.entries {
		if now.Sub(at) >= l.ttl {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
