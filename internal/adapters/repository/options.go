package repository

import "github.com/google/uuid"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	newID func() string
}

func defaultOptions() options {
	return options{newID: uuid.NewString}
}

// WithIDGenerator overrides how ids are assigned to records created without one.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
