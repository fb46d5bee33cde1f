package httpio

import (
	"testing"

	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
	"github.com/stretchr/testify/require"
)

func TestRequestInfoReadsStoredFields(t *testing.T) {
	ctx := iopipe.NewContext()
	ctx.Set(contextRequest, sd.Map{
		contextVerb:    VerbPut,
		"path":         "/agent/state",
		"query-string": "format=notation",
		"remote-host":  "10.0.0.5",
		"remote-port":  int64(4443),
		contextHeaders: sd.Map{"accept": "application/llsd+notation"},
	})

	verb, path, query, host, port, headers := requestInfo(ctx)
	require.Equal(t, VerbPut, verb)
	require.Equal(t, "/agent/state", path)
	require.Equal(t, "format=notation", query)
	require.Equal(t, "10.0.0.5", host)
	require.Equal(t, int64(4443), port)
	require.Equal(t, "application/llsd+notation", headers["accept"])
}

func TestRequestInfoEmptyContext(t *testing.T) {
	verb, path, query, host, port, headers := requestInfo(iopipe.NewContext())
	require.Empty(t, verb)
	require.Empty(t, path)
	require.Empty(t, query)
	require.Empty(t, host)
	require.Zero(t, port)
	require.Nil(t, headers)
}
