package sku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Format(t *testing.T) {
	c := MustCodec("LA")

	assert.Equal(t, "LA1000", c.Format(1000))
	assert.Equal(t, "LA0", c.Format(0))
	assert.Equal(t, []string{"LA3000", "LA3001"}, c.FormatAll([]int64{3000, 3001}))
}

func TestCodec_Parse(t *testing.T) {
	c := MustCodec("LA")

	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"LA2001", 2001, true},
		{"LA0", 0, true},
		{" LA15 ", 15, true},
		{"LA", 0, false},
		{"la2001", 0, false},
		{"LA02001", 0, false},
		{"LA-1", 0, false},
		{"LA+1", 0, false},
		{"LA12B", 0, false},
		{"XLA12", 0, false},
		{"", 0, false},
		{"LA99999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := c.Parse(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_ParseFormatRoundTrip(t *testing.T) {
	c := MustCodec("SKU-")
	for _, n := range []int64{0, 7, 1000, 9223372036854775807} {
		got, ok := c.Parse(c.Format(n))
		require.True(t, ok)
		assert.Equal(t, n, got)
	}
}

func TestNewCodec_Rejects(t *testing.T) {
	_, err := NewCodec("")
	assert.Error(t, err)

	_, err = NewCodec(" LA")
	assert.Error(t, err)
}
