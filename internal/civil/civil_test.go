package civil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2026, Month: time.March, Day: 9}, d)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("09/03/2026")
	assert.Error(t, err)
}

func TestDateOrdering(t *testing.T) {
	a, _ := ParseDate("2026-03-09")
	b, _ := ParseDate("2026-03-10")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Before(a))
	assert.Equal(t, b, a.AddDays(1))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
	assert.Equal(t, "08:30", tod.String())
	assert.Equal(t, NewTimeOfDay(9, 0), tod.AddMinutes(30))

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Date Date      `json:"date"`
		Time TimeOfDay `json:"time"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-03-09","time":"14:00"}`), &p))
	assert.Equal(t, "2026-03-09", p.Date.String())
	assert.Equal(t, NewTimeOfDay(14, 0), p.Time)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-03-09","time":"14:00"}`, string(out))
}

func TestAt(t *testing.T) {
	d, _ := ParseDate("2026-03-09")
	instant := At(d, NewTimeOfDay(8, 30), time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC), instant)
}
