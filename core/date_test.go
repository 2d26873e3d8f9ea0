package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{name: "empty", in: "  ", want: Date{}},
		{name: "day", in: "2024-02-29", want: NewDate(2024, time.February, 29)},
		{name: "timestamp", in: "2024-03-01T23:30:00-03:00", want: NewDate(2024, time.March, 1)},
		{name: "not a day", in: "2023-02-29", wantErr: true},
		{name: "garbage", in: "01/02/2024", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDateOf(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 01:30 UTC is still the previous evening in Brazil
	instant := time.Date(2024, time.March, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-09", DateOf(instant, saoPaulo).String())
	assert.Equal(t, "2024-03-10", DateOf(instant, nil).String())
}

func TestDate_compare(t *testing.T) {
	d := MustParseDate("2024-01-31")
	assert.Equal(t, "2024-02-01", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
	assert.Equal(t, "", Date{}.String())
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year       int
		month      time.Month
		first, end string
	}{
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2023, time.February, "2023-02-01", "2023-02-28"},
		{2024, time.December, "2024-12-01", "2024-12-31"},
	}
	for _, tt := range tests {
		first, last := MonthRange(tt.year, tt.month)
		assert.Equal(t, tt.first, first.String())
		assert.Equal(t, tt.end, last.String())
	}
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Due  Date `json:"due"`
		Born Date `json:"born"`
	}

	data, err := json.Marshal(payload{Due: MustParseDate("2024-03-10")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-10","born":null}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-03-10","born":null}`), &p))
	assert.Equal(t, "2024-03-10", p.Due.String())
	assert.True(t, p.Born.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"due":20240310}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"due":"10/03/2024"}`), &p))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-10", d.String())

	require.NoError(t, d.Scan([]byte("2024-04-01")))
	assert.Equal(t, "2024-04-01", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))

	v, err := MustParseDate("2024-04-01").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
