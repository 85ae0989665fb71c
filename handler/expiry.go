package handler

import "time"

// DefaultExpiryWindow is the TTL applied by variants modeling ephemeral
// identifiers.
const DefaultExpiryWindow = 600 * time.Second

// ExpiryPolicy computes the expiry attribute attached to newly written
// records. A zero Window disables it.
type ExpiryPolicy struct {
	Window time.Duration
	Now    func() time.Time
}

// Enabled reports whether written records carry an expiry.
func (p ExpiryPolicy) Enabled() bool {
	return p.Window > 0
}

// Expiry returns the current epoch seconds plus the window.
func (p ExpiryPolicy) Expiry() int64 {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return now().Unix() + int64(p.Window/time.Second)
}
