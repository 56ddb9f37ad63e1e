package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	tod, err := ParseTimeOfDay("13:05:09")
	require.NoError(t, err)
	require.Equal(t, TimeOfDay{Hour: 13, Minute: 5, Second: 9}, tod)
	require.Equal(t, "13:05:09", tod.String())
	require.Equal(t, 13*time.Hour+5*time.Minute+9*time.Second, tod.Duration())

	_, err = ParseTimeOfDay("25:00")
	require.Error(t, err)
}

func TestReadingSetDecimal(t *testing.T) {
	t.Parallel()

	var r Reading
	v := 21.5
	require.NoError(t, r.SetDecimal(ColAirTemp, &v))
	require.Equal(t, &v, r.AirTemp)

	got, ok := r.Decimal(ColAirTemp)
	require.True(t, ok)
	require.InDelta(t, 21.5, *got, 1e-9)

	require.Error(t, r.SetDecimal(ColSolarCurrent, &v))
	_, ok = r.Decimal(ColTimestamp)
	require.False(t, ok)
}
