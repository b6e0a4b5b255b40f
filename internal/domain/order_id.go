package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const orderIDPrefix = "EE"

// FormatOrderID renders EE<year><seq>, seq zero padded to four digits.
func FormatOrderID(year int, seq int64) string {
	return fmt.Sprintf("%s%d%04d", orderIDPrefix, year, seq)
}

// OrderIDPrefix is the prefix shared by every order id issued in year.
func OrderIDPrefix(year int) string {
	return orderIDPrefix + strconv.Itoa(year)
}

// ParseOrderSequence extracts the sequence number from an id issued in year.
func ParseOrderSequence(orderID string, year int) (int64, bool) {
	rest, ok := strings.CutPrefix(orderID, OrderIDPrefix(year))
	if !ok || len(rest) < 4 {
		return 0, false
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
