package session

import "time"

// Metadata is the device and network profile captured when the session was
// created. FingerprintHash is compared exactly on every validation;
// NetworkOrigin is compared softly (drift is logged, never fatal).
type Metadata struct {
	UserAgent       string
	NetworkOrigin   string
	FingerprintHash string
	DeviceClass     string
	CreatedAt       int64
	LastActivityAt  int64
}

// Session is the authoritative record binding an identity, a token pair, and
// device metadata to an expiry.
//
// IsValid transitions true to false exactly once and never reverses;
// ExpiresAt only ever moves forward across refreshes.
type Session struct {
	SessionID    string
	UserID       string
	AccessToken  string
	RefreshToken string
	Metadata     Metadata
	ExpiresAt    int64
	IsValid      bool
}

// Expired reports whether the session's expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// Clone returns a deep copy, letting callers hand sessions across goroutines
// without sharing mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	return &dup
}
