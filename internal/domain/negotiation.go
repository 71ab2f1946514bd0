package domain

import (
	"strconv"
	"strings"
)

// PriceNegotiation is the rider's counter-offer against the quoted price
// for a submitted booking.
type PriceNegotiation struct {
	BookingID      string
	PreferredPrice int
	OfferedPrice   int
}

// SanitizePrice keeps only the digits of user input. An input with no
// digits yields 0.
func SanitizePrice(input string) int {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
