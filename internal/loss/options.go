package loss

import "github.com/born-ml/graspnet/internal/tensor"

// Hook receives the name of each loss as it is evaluated together with its
// input shapes.
type Hook func(name string, shapes ...tensor.Shape)

// Option configures a loss call.
type Option func(*options)

type options struct {
	hook Hook
}

// WithHook installs an instrumentation callback.
func WithHook(h Hook) Option {
	return func(o *options) {
		o.hook = h
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) report(name string, shapes ...tensor.Shape) {
	if o.hook != nil {
		o.hook(name, shapes...)
	}
}
