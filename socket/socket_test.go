package socket

import (
	"testing"
	"time"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// socketPair returns two connected, non-blocking Socket endpoints backed by
// a real AF_UNIX socketpair(2), standing in for a TCP connection without
// touching the network stack in tests.
func socketPair(t *testing.T) (a, b *Socket) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	a, err = FromRawFD(fds[0])
	require.NoError(t, err)
	b, err = FromRawFD(fds[1])
	require.NoError(t, err)
	return a, b
}

type noopPump struct{}

func (noopPump) AddChain(chain *iopipe.Chain, timeoutSeconds float32)                   {}
func (noopPump) SetConditional(p iopipe.Pipe, desc *iopipe.PollDesc)                    {}
func (noopPump) SetLock() int32                                                        { return 0 }
func (noopPump) ClearLock(key int32)                                                    {}
func (noopPump) SleepChain(seconds float32)                                             {}
func (noopPump) AdjustTimeoutSeconds(delta float32)                                     {}
func (noopPump) Respond(chain *iopipe.Chain, buf *buffer.Array, ctx *iopipe.Context)    {}
func (noopPump) CurrentChain() *iopipe.Chain                                            { return nil }

func TestReaderPullsBytesOntoOutChannel(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()
	defer b.Close()

	_, err := unix.Write(b.FD(), []byte("hello"))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	reader := NewReader(a)

	var eos bool
	status := reader.Process(channels, buf, &eos, iopipe.NewContext(), noopPump{})
	require.Equal(t, iopipe.OK, status)

	n := buf.CountAfter(channels.Out(), nil)
	require.Equal(t, 5, n)
	got := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, got)
	require.Equal(t, "hello", string(got))
}

func TestWriterDrainsInChannelToSocket(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()
	defer b.Close()

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("world"))

	writer := NewWriter(a)
	var eos bool = true
	status := writer.Process(channels, buf, &eos, iopipe.NewContext(), noopPump{})
	require.Equal(t, iopipe.DONE, status)

	time.Sleep(10 * time.Millisecond)
	readBuf := make([]byte, 16)
	n, err := unix.Read(b.FD(), readBuf)
	require.NoError(t, err)
	require.Equal(t, "world", string(readBuf[:n]))
}

func TestReaderReportsDoneOnEOF(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()
	b.Close()

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	reader := NewReader(a)

	var eos bool
	status := reader.Process(channels, buf, &eos, iopipe.NewContext(), noopPump{})
	require.Equal(t, iopipe.DONE, status)
	require.True(t, eos)
}
