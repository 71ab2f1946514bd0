package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestReduceChallenge(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	c := ReduceChallenge(nil, IssueChallenge{Identifier: "9999999999", Channel: ChannelPhone, At: at, Cooldown: 50 * time.Second})
	if c == nil || c.ExpiresInSeconds != 50 || !c.IssuedAt.Equal(at) {
		t.Fatalf("unexpected challenge %+v", c)
	}

	resent := ReduceChallenge(c, IssueChallenge{Identifier: "9999999999", Channel: ChannelPhone, At: at.Add(time.Minute), Cooldown: 50 * time.Second})
	if resent == c || !resent.IssuedAt.Equal(at.Add(time.Minute)) {
		t.Errorf("resend must replace the challenge, got %+v", resent)
	}

	if got := ReduceChallenge(resent, DiscardChallenge{}); got != nil {
		t.Errorf("expected nil after discard, got %+v", got)
	}
}

func TestOtpChallenge_Countdown(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := &OtpChallenge{IssuedAt: at, ExpiresInSeconds: 50}

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 50},
		{500 * time.Millisecond, 50},
		{time.Second, 49},
		{49 * time.Second, 1},
		{49*time.Second + 999*time.Millisecond, 1},
		{50 * time.Second, 0},
		{time.Hour, 0},
	}

	for _, tt := range tests {
		if got := c.RemainingSeconds(at.Add(tt.elapsed)); got != tt.want {
			t.Errorf("after %s: expected %d, got %d", tt.elapsed, tt.want, got)
		}
	}

	if c.CanResend(at.Add(49 * time.Second)) {
		t.Error("resend allowed before the countdown ends")
	}
	if !c.CanResend(at.Add(50 * time.Second)) {
		t.Error("resend blocked after the countdown ends")
	}

	var none *OtpChallenge
	if none.RemainingSeconds(at) != 0 {
		t.Error("nil challenge has no countdown")
	}
}

func TestUserProfile_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		want    []string
	}{
		{"complete", UserProfile{Name: "Asha", Email: "a@b.co", PhoneNumber: "9999999999"}, nil},
		{"blank name", UserProfile{Name: "  ", Email: "a@b.co", PhoneNumber: "9999999999"}, []string{ProfileFieldName}},
		{"all missing", UserProfile{}, []string{ProfileFieldName, ProfileFieldEmail, ProfileFieldPhone}},
	}

	for _, tt := range tests {
		got := tt.profile.MissingFields()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
		if tt.profile.IsComplete() != (len(tt.want) == 0) {
			t.Errorf("%s: IsComplete disagrees with MissingFields", tt.name)
		}
	}
}

func TestUserProfile_MergeKeepsNilFields(t *testing.T) {
	name := "Asha"
	p := UserProfile{Email: "a@b.co", PhoneNumber: "9999999999"}

	got := p.Merge(ProfileFields{Name: &name})
	want := UserProfile{Name: "Asha", Email: "a@b.co", PhoneNumber: "9999999999"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if p.Name != "" {
		t.Error("merge mutated the receiver")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if (&Session{}).Expired(now) {
		t.Error("a token without exp never expires")
	}
	if !(&Session{ExpiresAt: now}).Expired(now) {
		t.Error("expected expired at the exp instant")
	}
	if (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Error("expected live session")
	}
}
