package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantID      int64
		provisional bool
	}{
		{"canonical id", `{"id":7,"email":"a@x.com"}`, 7, false},
		{"wrapped once", `{"json":{"id":8,"email":"a@x.com"}}`, 8, false},
		{"string id", `{"id":"9"}`, 9, false},
		{"float id", `{"id":10.0}`, 10, false},
		{"upper case fallback", `{"ID":11}`, 11, true},
		{"fallback order", `{"userId":13,"_id":"12"}`, 12, true},
		{"snake case fallback", `{"id":0,"user_id":14}`, 14, true},
		{"non numeric id", `{"id":"abc","Id":15}`, 15, true},
		{"fractional id is ignored", `{"id":1.5,"userId":16}`, 16, true},
		{"placeholder", `{"email":"a@x.com"}`, PlaceholderID("a@x.com"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, provisional, err := Decode(json.RawMessage(tt.raw), "a@x.com")
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rec["id"])
			assert.Equal(t, tt.provisional, provisional)
		})
	}
}

func TestDecode_UnwrapsOnlyOneLayer(t *testing.T) {
	rec, provisional, err := Decode(json.RawMessage(`{"json":{"json":{"id":1}}}`), "p")
	require.NoError(t, err)
	assert.True(t, provisional)
	assert.Contains(t, rec, "json")
}

func TestDecode_KeepsOtherFields(t *testing.T) {
	rec, _, err := Decode(json.RawMessage(`{"id":3,"first_name":"Ann","flag":true}`), "")
	require.NoError(t, err)
	assert.Equal(t, "Ann", rec["first_name"])
	assert.Equal(t, true, rec["flag"])
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{``, `null`, `[1,2]`, `"x"`, `{"id":`} {
		_, _, err := Decode(json.RawMessage(raw), "a@x.com")
		assert.ErrorIs(t, err, ErrMalformedRecord, raw)
	}
}

func TestPlaceholderID(t *testing.T) {
	// 'a'+'@'+'x'+'.'+'c'+'o'+'m'
	assert.Equal(t, int64(97+64+120+46+99+111+109), PlaceholderID("a@x.com"))
	assert.Equal(t, PlaceholderID("ab"), PlaceholderID("ba"), "anagrams collide")
	assert.Zero(t, PlaceholderID(""))

	// U+1F600 is the surrogate pair D83D DE00, not the code point 128512.
	assert.Equal(t, int64(0xD83D+0xDE00), PlaceholderID("\U0001F600"))

	// 10000 * (0xDBFF + 0xDFFF) = 1136620000, first nine digits kept
	assert.Equal(t, int64(113662000), PlaceholderID(strings.Repeat("\U0010FFFF", 10000)))
}
