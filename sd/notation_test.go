package sd

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func TestNotationRoundTrip(t *testing.T) {
	u, err := ParseUUID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)

	in := Map{
		"method": "echo",
		"parameter": Array{
			int64(1),
			"two",
			true,
			nil,
			u,
			Date(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)),
			Binary([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		},
	}

	data := ToNotation(in)
	out, n, err := FromNotation(data)
	require.NoError(t, err)
	require.Equalf(t, len(data), n, "decoded %d of %d bytes, value so far:\n%s", n, len(data), spew.Sdump(out))

	om, ok := out.(Map)
	require.Truef(t, ok, "expected a Map, got:\n%s", spew.Sdump(out))
	require.Equalf(t, "echo", om["method"], "decoded map:\n%s", spew.Sdump(om))

	arr, ok := om["parameter"].(Array)
	require.True(t, ok)
	require.Equal(t, int64(1), arr[0])
	require.Equal(t, "two", arr[1])
	require.Equal(t, true, arr[2])
	require.Nil(t, arr[3])
	require.Equal(t, u, arr[4])
	require.True(t, time.Time(arr[5].(Date)).Equal(time.Time(Date(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)))))
	require.Equal(t, Binary([]byte{0xDE, 0xAD, 0xBE, 0xEF}), arr[6])
}

func TestUUIDRoundTrip(t *testing.T) {
	u, err := ParseUUID("550e8400e29b41d4a716446655440000")
	require.NoError(t, err)
	require.Equal(t, "550e8400-e29b-41d4-a716-446655440000", u.String())
}
