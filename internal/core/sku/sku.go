// Package sku formats and parses SKU values of the form <prefix><decimal>,
// e.g. "LA1000". There is no padding and no separator.
package sku

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "LA"

// Codec converts between SKU numbers and SKU strings for one prefix.
type Codec struct {
	prefix string
}

// NewCodec creates a codec for prefix. The prefix is matched case-sensitively.
func NewCodec(prefix string) (Codec, error) {
	if prefix == "" {
		return Codec{}, fmt.Errorf("sku prefix must not be empty")
	}
	if strings.TrimSpace(prefix) != prefix {
		return Codec{}, fmt.Errorf("sku prefix %q has surrounding whitespace", prefix)
	}
	return Codec{prefix: prefix}, nil
}

// MustCodec is NewCodec that panics. Use only for constants and tests.
func MustCodec(prefix string) Codec {
	c, err := NewCodec(prefix)
	if err != nil {
		panic(err)
	}
	return c
}

// Prefix returns the configured prefix.
func (c Codec) Prefix() string {
	return c.prefix
}

// Format builds the SKU string for n.
func (c Codec) Format(n int64) string {
	return c.prefix + strconv.FormatInt(n, 10)
}

// FormatAll formats every number in order.
func (c Codec) FormatAll(numbers []int64) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = c.Format(n)
	}
	return out
}

// Parse extracts the number from a SKU string. Only the canonical form is
// accepted: exact prefix, at least one digit, no sign and no leading zeros
// (except "0" itself), so that Format(Parse(s)) == s. Surrounding whitespace
// is ignored.
func (c Codec) Parse(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if c.prefix == "" || !strings.HasPrefix(s, c.prefix) {
		return 0, false
	}

	digits := s[len(c.prefix):]
	if digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
