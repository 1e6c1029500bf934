package sessioncapture

import (
	"sync/atomic"

	"github.com/BIGWOO/clawx-auth/internal/credential"
)

// AuthSession is one capture attempt bound to a fresh browser session.
// It resolves at most once; later resolutions are ignored.
type AuthSession struct {
	// PartitionID names the isolated cookie store used by this attempt.
	PartitionID string

	session  Session
	resolved atomic.Bool
	outcome  credential.Outcome
}

func newAuthSession(partitionID string, session Session) *AuthSession {
	return &AuthSession{
		PartitionID: partitionID,
		session:     session,
	}
}

// Resolved reports whether the attempt has produced its outcome.
func (s *AuthSession) Resolved() bool {
	return s.resolved.Load()
}

// Outcome returns the outcome once Resolved reports true.
func (s *AuthSession) Outcome() credential.Outcome {
	return s.outcome
}

// resolve records the outcome and closes the window. It returns false if the
// attempt was already resolved.
func (s *AuthSession) resolve(o credential.Outcome) bool {
	if !s.resolved.CompareAndSwap(false, true) {
		return false
	}
	s.outcome = o
	_ = s.session.Close()
	return true
}
