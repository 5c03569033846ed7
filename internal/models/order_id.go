package models

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderIDPrefix prefixes every generated order id.
const OrderIDPrefix = "GT-"

// FormatOrderID renders a sequence number as GT-000001.
func FormatOrderID(seq int) string {
	return fmt.Sprintf("%s%06d", OrderIDPrefix, seq)
}

// ParseOrderSeq extracts the numeric suffix from an order id. It returns
// false for legacy or malformed ids so callers can restart the sequence.
func ParseOrderSeq(orderID string) (int, bool) {
	if !strings.HasPrefix(orderID, OrderIDPrefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(orderID, OrderIDPrefix))
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
