package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAge(t *testing.T) {
	dob := NewDate(1990, time.July, 22)

	tests := []struct {
		name  string
		today time.Time
		want  int
	}{
		{"before birthday", time.Date(2025, time.July, 10, 9, 0, 0, 0, time.UTC), 34},
		{"on birthday", time.Date(2025, time.July, 22, 0, 0, 0, 0, time.UTC), 35},
		{"after birthday", time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), 35},
		{"earlier month", time.Date(2025, time.March, 30, 0, 0, 0, 0, time.UTC), 34},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Age(dob, tt.today))
		})
	}
}

func TestAge_ZeroAndFuture(t *testing.T) {
	today := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Age(Date{}, today))
	assert.Equal(t, 0, Age(NewDate(2030, time.January, 1), today))
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"1985-03-15"`), &d))
	assert.Equal(t, "1985-03-15", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"1985-03-15T00:00:00Z"`), &d))
	assert.Equal(t, "1985-03-15", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"2025-07-10T14:22:05.123456"`), &d))
	assert.Equal(t, "2025-07-10", d.String())

	out, err := json.Marshal(NewDate(1990, time.July, 22))
	require.NoError(t, err)
	assert.Equal(t, `"1990-07-22"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"22/07/1990"`), &d))
}
