package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_MarshalUnavailable(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Missing[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `"Data unavailable"`, string(b))
}

func TestField_ZeroIsNotUnavailable(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Available(0))
	require.NoError(t, err)
	assert.Equal(t, "0", string(b))
}

func TestFloat_NaNAndInfAreMissing(t *testing.T) {
	t.Parallel()

	assert.False(t, Float(math.NaN()).Valid)
	assert.False(t, Float(math.Inf(1)).Valid)
	assert.True(t, Float(0).Valid)
	assert.Equal(t, 19.5, Float(19.5).Value)
}

func TestField_UnmarshalMarker(t *testing.T) {
	t.Parallel()

	var snap struct {
		TPS   Field[float64] `json:"tps"`
		Count Field[int]     `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tps":"Data unavailable","count":3}`), &snap))
	assert.False(t, snap.TPS.Valid)
	assert.True(t, snap.Count.Valid)
	assert.Equal(t, 3, snap.Count.Value)
}

func TestMetricsSnapshot_UnavailableFieldsAreRendered(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(MetricsSnapshot{})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, key := range []string{"tps", "tick_time_ms", "players", "world_time", "disk_free_gb", "mod_status"} {
		assert.Equal(t, Unavailable, raw[key], key)
	}
}

func TestUser_InfoOmitsCredentials(t *testing.T) {
	t.Parallel()

	u := User{Username: "bob", PasswordHash: []byte("h"), Salt: []byte("s"), IsAdmin: true}
	b, err := json.Marshal(u.Info())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "assword")
	assert.NotContains(t, string(b), "salt")
}
