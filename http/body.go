package http

import (
	"io"

	"github.com/emberhttp/ember/config"
	"github.com/emberhttp/ember/internal/conduit"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

// BodyCallback is invoked for every piece of the body as it becomes
// available. Returning an error stops the consumption and propagates it
// back to the caller.
type BodyCallback func([]byte) error

// Body is the handler-facing side of the body conduit. It starts in pull
// mode (Read/Bytes/JSON and friends) and may switch to push mode once via
// Listen; after that the pull interface must no longer be used.
type Body struct {
	conduit *conduit.Conduit
	cfg     *config.Config
	buff    []byte
	error   error
}

func NewBody(c *conduit.Conduit, cfg *config.Config) *Body {
	return &Body{
		conduit: c,
		cfg:     cfg,
	}
}

// Read implements the io.Reader interface. It blocks up to the configured
// body read timeout waiting for the network.
func (b *Body) Read(into []byte) (n int, err error) {
	return b.conduit.Read(into)
}

// Available returns the number of bytes ready to be read without blocking.
func (b *Body) Available() int {
	return b.conduit.Available()
}

// Callback invokes cb every time there's a piece of body available, until
// the body ends or either side errors.
//
// Please note: this method consumes the stream, just like Bytes or Read do.
func (b *Body) Callback(cb BodyCallback) error {
	if b.error != nil {
		return b.error
	}

	piece := make([]byte, b.cfg.NET.ReadBufferSize)

	for {
		n, err := b.conduit.Read(piece)
		if n > 0 {
			if cbErr := cb(piece[:n]); cbErr != nil {
				return cbErr
			}
		}

		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			b.error = err
			return err
		}
	}
}

// Bytes returns the whole body at once in a byte representation.
func (b *Body) Bytes() ([]byte, error) {
	if len(b.buff) != 0 {
		return b.buff, nil
	}

	if b.error != nil {
		return nil, b.error
	}

	err := b.Callback(func(piece []byte) error {
		b.buff = append(b.buff, piece...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.buff, nil
}

// String returns the whole body at once in a string representation.
func (b *Body) String() (string, error) {
	bytes, err := b.Bytes()
	return uf.B2S(bytes), err
}

// JSON convoys the whole body to a json unmarshaller.
func (b *Body) JSON(model any) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}

	iterator := json.ConfigDefault.BorrowIterator(data)
	iterator.ReadVal(model)
	err = iterator.Error
	json.ConfigDefault.ReturnIterator(iterator)

	return err
}

// Discard reads the rest of the body (if any) into nowhere.
func (b *Body) Discard() error {
	return b.Callback(func([]byte) error { return nil })
}

// Listen installs l as the push sink: everything buffered so far is
// delivered to it in arrival order, and all later body pieces follow
// directly. The switch is one-way; a second call fails with
// conduit.ErrListenerInstalled.
func (b *Body) Listen(l conduit.Listener) error {
	return b.conduit.SwitchToListener(l)
}

// Error returns a previously encountered error, otherwise nil.
func (b *Body) Error() error {
	return b.error
}
