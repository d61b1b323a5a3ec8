package session

import "github.com/joeycumines/logiface"

// sessionOptions holds configuration resolved from Option values at New.
type sessionOptions struct {
	logger      *logiface.Logger[logiface.Event]
	clock       Clock
	usbProvider USBDeadlineProvider
	metrics     bool
}

// Option configures a Session at construction time.
type Option interface {
	applySession(*sessionOptions) error
}

// optionFunc implements Option.
type optionFunc struct {
	f func(*sessionOptions) error
}

func (o *optionFunc) applySession(opts *sessionOptions) error {
	return o.f(opts)
}

// WithLogger installs a structured logger. A nil logger (the default)
// is valid and silent: logiface's zero value reports LevelDisabled, so
// log call sites never need a nil check.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{func(opts *sessionOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock overrides the monotonic clock used for every deadline
// computation. Tests inject a *FakeClock here to make timer-driven
// scenarios deterministic without sleeping; production code normally
// leaves this at the default (NewSystemClock).
func WithClock(clock Clock) Option {
	return &optionFunc{func(opts *sessionOptions) error {
		if clock == nil {
			return wrapf(CodeARG, nil, "WithClock: clock must not be nil")
		}
		opts.clock = clock
		return nil
	}}
}

// WithUSBDeadlineProvider installs the external deadline provider the
// iteration engine consults during each deadline scan. Omitted by
// default, since no USB transport is part of this core.
func WithUSBDeadlineProvider(p USBDeadlineProvider) Option {
	return &optionFunc{func(opts *sessionOptions) error {
		opts.usbProvider = p
		return nil
	}}
}

// WithMetrics enables counter collection, retrievable via
// Session.Metrics(). Disabled by default.
func WithMetrics(enabled bool) Option {
	return &optionFunc{func(opts *sessionOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// resolveSessionOptions applies Option values over the defaults.
func resolveSessionOptions(opts []Option) (*sessionOptions, error) {
	cfg := &sessionOptions{
		clock: NewSystemClock(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySession(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
