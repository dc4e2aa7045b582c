package caltime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseICal(t *testing.T) {
	tests := []struct {
		text    string
		tzid    string
		want    Value
		wantErr bool
	}{
		{text: "20120823", want: Date(2012, time.August, 23)},
		{text: "20120823", tzid: "Europe/Paris", want: Date(2012, time.August, 23).WithZone("Europe/Paris")},
		{text: "20060718T100000", want: Floating(2006, time.July, 18, 10, 0, 0)},
		{text: "20060718T100000Z", want: UTCTime(2006, time.July, 18, 10, 0, 0)},
		{text: "20060718T100000Z", tzid: "Europe/Paris", want: UTCTime(2006, time.July, 18, 10, 0, 0)},
		{text: "20060718T100000", tzid: "US-Eastern", want: Zoned("US-Eastern", 2006, time.July, 18, 10, 0, 0)},
		{text: "20060718T100000", tzid: "UTC", want: UTCTime(2006, time.July, 18, 10, 0, 0)},
		{text: "2006-07-18", wantErr: true},
		{text: "20061318", wantErr: true},
		{text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.tzid, func(t *testing.T) {
			got, err := ParseICal(tt.text, tt.tzid)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSyntax)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	r := DefaultResolver()

	assert.Equal(t, "20120823", Date(2012, time.August, 23).ICal())
	assert.Equal(t, "20060718T100000Z", UTCTime(2006, time.July, 18, 10, 0, 0).ICal())
	assert.Equal(t, "TZID=Europe/Paris:20060718T100000", Zoned("Europe/Paris", 2006, time.July, 18, 10, 0, 0).String())
	assert.Equal(t, "<absent>", Value{}.String())

	assert.Equal(t, "2006-07-18T10:00:00+02:00", Zoned("Europe/Paris", 2006, time.July, 18, 10, 0, 0).RFC3339(r))
	assert.Equal(t, "2006-07-18T10:00:00Z", UTCTime(2006, time.July, 18, 10, 0, 0).RFC3339(r))
	assert.Equal(t, "2006-07-18T10:00:00", Floating(2006, time.July, 18, 10, 0, 0).RFC3339(r))
	assert.Equal(t, "2012-08-23", Date(2012, time.August, 23).RFC3339(r))
}

func TestDurationString(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{Duration{}, "PT0S"},
		{Days(1), "P1D"},
		{Weeks(2), "P2W"},
		{Exact(90 * time.Minute), "PT1H30M"},
		{Duration{Days: 1, Time: 2 * time.Hour}, "P1DT2H"},
		{Exact(-15 * time.Minute), "-PT15M"},
		{Exact(45 * time.Second), "PT45S"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.String())
		})
	}
}

func TestDurationWholeDays(t *testing.T) {
	n, ok := Duration{Days: 1, Time: 48 * time.Hour}.WholeDays()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Exact(time.Hour).WholeDays()
	assert.False(t, ok)
}
