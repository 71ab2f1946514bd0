package service

import "errors"

var (
	// ErrResendCooldown is returned when an OTP is requested again before the countdown ends.
	ErrResendCooldown = errors.New("otp resend not allowed yet")

	// ErrResendPending is returned while an OTP request for the challenge is in flight.
	ErrResendPending = errors.New("otp request already in progress")

	// ErrVerifyPending is returned while a verification of the challenge is in flight.
	ErrVerifyPending = errors.New("otp verification already in progress")

	// ErrNoChallenge is returned when verifying or resending without an issued OTP.
	ErrNoChallenge = errors.New("no active otp challenge")

	// ErrChallengeSuperseded is returned when verifying against a challenge replaced by a resend.
	ErrChallengeSuperseded = errors.New("otp challenge superseded by a newer one")

	// ErrInvalidOtp is returned when the server rejects the passcode.
	ErrInvalidOtp = errors.New("invalid or expired otp")

	// ErrNoSession is returned when an operation needs a session and there is none.
	ErrNoSession = errors.New("no active session")

	// ErrOnboardingRequired is returned when navigation is blocked by an incomplete profile.
	ErrOnboardingRequired = errors.New("profile must be completed before continuing")

	// ErrDraftSubmitted is returned when editing or resubmitting a submitted draft.
	ErrDraftSubmitted = errors.New("draft already submitted")

	// ErrSubmitInProgress is returned when a draft is submitted twice concurrently.
	ErrSubmitInProgress = errors.New("draft submission in progress")

	// ErrComposerClosed is returned after the booking form has been left.
	ErrComposerClosed = errors.New("booking form closed")

	// ErrDraftNotFound is returned when a draft id is unknown.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrInvalidTripType is returned for an unknown trip type.
	ErrInvalidTripType = errors.New("invalid trip type")

	// ErrNoNegotiation is returned when negotiating without a submitted booking.
	ErrNoNegotiation = errors.New("no booking to negotiate")

	// ErrInvalidPrice is returned for an offer of zero.
	ErrInvalidPrice = errors.New("invalid price")
)
