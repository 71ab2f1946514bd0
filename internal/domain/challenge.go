package domain

import "time"

// OtpChallenge is the client's view of an issued one-time passcode.
// Attempts are tracked by the server only.
type OtpChallenge struct {
	Identifier       string
	Channel          Channel
	IssuedAt         time.Time
	ExpiresInSeconds int
}

// RemainingSeconds returns the whole seconds left on the resend countdown.
func (c *OtpChallenge) RemainingSeconds(now time.Time) int {
	if c == nil {
		return 0
	}
	left := c.IssuedAt.Add(time.Duration(c.ExpiresInSeconds) * time.Second).Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

// CanResend reports whether the countdown has reached zero.
func (c *OtpChallenge) CanResend(now time.Time) bool {
	return c.RemainingSeconds(now) == 0
}

// ChallengeAction mutates the active challenge through ReduceChallenge.
type ChallengeAction interface {
	isChallengeAction()
}

// IssueChallenge replaces any active challenge. A resend is an issue for the
// same identifier.
type IssueChallenge struct {
	Identifier string
	Channel    Channel
	At         time.Time
	Cooldown   time.Duration
}

// DiscardChallenge drops the active challenge, e.g. after a successful verify.
type DiscardChallenge struct{}

func (IssueChallenge) isChallengeAction()   {}
func (DiscardChallenge) isChallengeAction() {}

// ReduceChallenge is the transition function for the active challenge.
// There is at most one active challenge at a time.
func ReduceChallenge(current *OtpChallenge, action ChallengeAction) *OtpChallenge {
	switch a := action.(type) {
	case IssueChallenge:
		return &OtpChallenge{
			Identifier:       a.Identifier,
			Channel:          a.Channel,
			IssuedAt:         a.At,
			ExpiresInSeconds: int(a.Cooldown / time.Second),
		}
	case DiscardChallenge:
		return nil
	default:
		return current
	}
}
