package domain

import (
	"fmt"
	"strings"
)

// Market identifies a tradable pair on the venue, e.g. "ATOM-USDT".
// Immutable once configured.
type Market struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParseMarket splits a "BASE-QUOTE" pair string into a Market.
func ParseMarket(pair string) (Market, error) {
	parts := strings.Split(pair, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Market{}, fmt.Errorf("invalid market pair %q, expected BASE-QUOTE", pair)
	}
	return Market{Base: parts[0], Quote: parts[1]}, nil
}

// Pair returns the canonical "BASE-QUOTE" string.
func (m Market) Pair() string {
	return m.Base + "-" + m.Quote
}
