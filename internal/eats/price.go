package eats

import (
	"math"
	"regexp"
	"strconv"
)

// numericToken matches digits with at most one decimal point. A lone "." is
// not a number, so "Ask staff." has no token.
var numericToken = regexp.MustCompile(`\d+(?:\.\d*)?|\.\d+`)

// ParsePrice converts a display price into a sort key.
//
// The first number-looking token is parsed as a float. A missing price or a
// string without digits sorts last as +Inf. No currency or locale handling is
// attempted: "1,299" parses as 1.
func ParsePrice(price *string) float64 {
	if price == nil {
		return math.Inf(1)
	}
	token := numericToken.FindString(*price)
	if token == "" {
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return math.Inf(1)
	}
	return v
}
