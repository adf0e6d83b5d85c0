package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare ten digits", "8031234567", "+2348031234567"},
		{"leading zero", "08031234567", "+2348031234567"},
		{"already prefixed", "+2348031234567", "+2348031234567"},
		{"spaces and dashes", "0803-123-4567", "+2348031234567"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneRejectsBadLengths(t *testing.T) {
	for _, raw := range []string{"", "12345", "080312345678", "not a number"} {
		_, err := NormalizePhone(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestInRoster(t *testing.T) {
	p := &Profile{Roster: []string{"uid-a", "uid-b"}}
	assert.True(t, p.InRoster("uid-a"))
	assert.False(t, p.InRoster("uid-c"))
	assert.False(t, (&Profile{}).InRoster("uid-a"))
}
