package conduit

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	chunks   [][]byte
	complete bool
	errs     []error
}

func (l *recordingListener) OnData(data []byte, ack func(error)) {
	l.chunks = append(l.chunks, data)
	ack(nil)
}

func (l *recordingListener) OnComplete() {
	l.complete = true
}

func (l *recordingListener) OnError(err error) {
	l.errs = append(l.errs, err)
}

func readAll(t *testing.T, c *Conduit) []byte {
	var out []byte
	buff := make([]byte, 8)

	for {
		n, err := c.Read(buff)
		out = append(out, buff[:n]...)
		if err == io.EOF {
			return out
		}

		require.NoError(t, err)
	}
}

func TestPull(t *testing.T) {
	t.Run("buffers drain in arrival order", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.NoError(t, c.HandOff([]byte("hello"), nil))
		require.NoError(t, c.HandOff([]byte(", "), nil))
		require.NoError(t, c.HandOff([]byte("world"), nil))
		c.Close()

		require.Equal(t, "hello, world", string(readAll(t, c)))
	})

	t.Run("no bytes observable after END", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.NoError(t, c.HandOff([]byte("tail"), nil))
		c.Close()

		require.Equal(t, "tail", string(readAll(t, c)))

		n, err := c.Read(make([]byte, 8))
		require.Zero(t, n)
		require.Equal(t, io.EOF, err)
	})

	t.Run("read byte", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.NoError(t, c.HandOff([]byte("ab"), nil))
		c.Close()

		b, err := c.ReadByte()
		require.NoError(t, err)
		require.Equal(t, byte('a'), b)
		b, err = c.ReadByte()
		require.NoError(t, err)
		require.Equal(t, byte('b'), b)
		_, err = c.ReadByte()
		require.Equal(t, io.EOF, err)
	})

	t.Run("blocked read waits for the producer", func(t *testing.T) {
		c := New(time.Second, 1024)

		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = c.HandOff([]byte("late"), nil)
			c.Close()
		}()

		require.Equal(t, "late", string(readAll(t, c)))
	})

	t.Run("timeout surfaces as an error", func(t *testing.T) {
		c := New(10*time.Millisecond, 1024)

		_, err := c.Read(make([]byte, 8))
		require.Equal(t, ErrReadTimeout, err)
	})

	t.Run("available does not wait", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.Zero(t, c.Available())

		require.NoError(t, c.HandOff([]byte("hello"), nil))
		require.NoError(t, c.HandOff([]byte("!"), nil))
		require.Equal(t, 6, c.Available())
	})
}

func TestByteBudget(t *testing.T) {
	t.Run("exceeding the cap fails the hand-off", func(t *testing.T) {
		c := New(time.Second, 100)
		require.NoError(t, c.HandOff(make([]byte, 60), nil))
		require.Equal(t, ErrBodyTooLarge, c.HandOff(make([]byte, 50), nil))
		require.Equal(t, int64(60), c.Received())
	})

	t.Run("exact fit is accepted", func(t *testing.T) {
		c := New(time.Second, 100)
		require.NoError(t, c.HandOff(make([]byte, 60), nil))
		require.NoError(t, c.HandOff(make([]byte, 40), nil))
	})
}

func TestClose(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		c := New(time.Second, 1024)
		c.Close()
		c.Close()

		_, err := c.Read(make([]byte, 1))
		require.Equal(t, io.EOF, err)
	})

	t.Run("no hand-off after END", func(t *testing.T) {
		c := New(time.Second, 1024)
		c.Close()

		require.Equal(t, ErrClosed, c.HandOff([]byte("x"), nil))
	})

	t.Run("empty conduit is born closed", func(t *testing.T) {
		_, err := Empty.Read(make([]byte, 1))
		require.Equal(t, io.EOF, err)
	})
}

func TestAcks(t *testing.T) {
	t.Run("queued hand-off acks immediately", func(t *testing.T) {
		c := New(time.Second, 1024)

		acked := false
		require.NoError(t, c.HandOff([]byte("x"), func(err error) {
			require.NoError(t, err)
			acked = true
		}))
		require.True(t, acked)
	})

	t.Run("listener ack chains into the producer's", func(t *testing.T) {
		c := New(time.Second, 1024)
		l := &recordingListener{}
		require.NoError(t, c.SwitchToListener(l))

		acked := false
		require.NoError(t, c.HandOff([]byte("x"), func(err error) {
			require.NoError(t, err)
			acked = true
		}))
		require.True(t, acked)
		require.Empty(t, l.errs)
	})

	t.Run("listener failure reaches both sides", func(t *testing.T) {
		c := New(time.Second, 1024)

		cause := io.ErrUnexpectedEOF
		failing := &failingListener{cause: cause}
		require.NoError(t, c.SwitchToListener(failing))

		var producerErr error
		require.NoError(t, c.HandOff([]byte("x"), func(err error) { producerErr = err }))
		require.Equal(t, cause, producerErr)
		require.Equal(t, []error{cause}, failing.errs)
	})
}

type failingListener struct {
	cause error
	errs  []error
}

func (l *failingListener) OnData(data []byte, ack func(error)) { ack(l.cause) }
func (l *failingListener) OnComplete()                         {}
func (l *failingListener) OnError(err error)                   { l.errs = append(l.errs, err) }

func TestSwitchToListener(t *testing.T) {
	t.Run("mid-stream switch preserves order", func(t *testing.T) {
		c := New(time.Second, 1024*1024)

		for i := byte(0); i < 10; i++ {
			require.NoError(t, c.HandOff([]byte{i}, nil))
		}

		l := &recordingListener{}
		require.NoError(t, c.SwitchToListener(l))

		for i := byte(10); i < 20; i++ {
			require.NoError(t, c.HandOff([]byte{i}, nil))
		}
		c.Close()

		require.Len(t, l.chunks, 20)
		for i := byte(0); i < 20; i++ {
			require.Equal(t, []byte{i}, l.chunks[i])
		}
		require.True(t, l.complete)
	})

	t.Run("switching a closed conduit reports completion", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.NoError(t, c.HandOff([]byte("x"), nil))
		c.Close()

		l := &recordingListener{}
		require.NoError(t, c.SwitchToListener(l))
		require.Equal(t, [][]byte{[]byte("x")}, l.chunks)
		require.True(t, l.complete)
	})

	t.Run("second installation fails fast", func(t *testing.T) {
		c := New(time.Second, 1024)
		require.NoError(t, c.SwitchToListener(&recordingListener{}))
		require.Equal(t, ErrListenerInstalled, c.SwitchToListener(&recordingListener{}))
	})
}

func TestConcurrentProducerConsumer(t *testing.T) {
	c := New(time.Second, 1024*1024)

	const pieces = 1000

	go func() {
		for i := 0; i < pieces; i++ {
			_ = c.HandOff([]byte{byte(i), byte(i >> 8)}, nil)
		}
		c.Close()
	}()

	out := readAll(t, c)
	require.Len(t, out, pieces*2)
	for i := 0; i < pieces; i++ {
		require.Equal(t, byte(i), out[i*2])
		require.Equal(t, byte(i>>8), out[i*2+1])
	}
}
