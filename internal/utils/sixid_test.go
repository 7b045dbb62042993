package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSixID_StringRoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := NewSixID()
		s := id.String()
		assert.Len(t, s, 10)

		parsed, err := ParseSixID(s)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseSixID_Lenient(t *testing.T) {
	id := NewSixID()
	s := id.String()

	withHyphen, err := ParseSixID(s[:5] + "-" + s[5:])
	require.NoError(t, err)
	assert.Equal(t, id, withHyphen)
}

func TestParseSixID_Invalid(t *testing.T) {
	_, err := ParseSixID("")
	assert.Error(t, err)

	_, err = ParseSixID("short")
	assert.Error(t, err)

	_, err = ParseSixID("!!!!!!!!!!")
	assert.Error(t, err)
}

func TestSixID_JSON(t *testing.T) {
	id := NewSixID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var parsed SixID
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, id, parsed)
}

func TestSixID_IsZero(t *testing.T) {
	assert.True(t, SixID{}.IsZero())
	assert.False(t, NewSixID().IsZero())
}
