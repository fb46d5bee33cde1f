package pump

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultOptions are used by NewPump if the caller does not override them.
var DefaultOptions = Options{
	Logger:           &log.Logger,
	DefaultTimeout:   30 * time.Second,
	PollTimeout:      0,
}

// Options configures a Pump. Modify Pump.Options before calling Run.
type Options struct {
	Logger *zerolog.Logger // if nil, logging is disabled

	// DefaultTimeout is the timeout restored onto a chain's deadline after
	// an error handler recovers from STATUS_EXPIRED without resetting it
	// itself, mirroring the original pump's safety net.
	DefaultTimeout time.Duration

	// PollTimeout bounds how long every Tick blocks waiting on socket
	// readiness, and is also Run's interval between ticks (10ms when zero).
	PollTimeout time.Duration
}

// apply normalizes opts, filling in defaults for zero-valued fields.
func (p *Pump) apply(opts *Options) {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = DefaultOptions.DefaultTimeout
	}
	p.Logger = opts.Logger
}
