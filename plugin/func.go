package plugin

import "context"

// FuncOptions configures a Func plugin.
type FuncOptions struct {
	// OnInitialize runs before every Execute.
	OnInitialize func(ctx context.Context) error
	// OnShutdown runs after every invocation.
	OnShutdown func(ctx context.Context) error
}

// Func is a generic adapter that exposes a plain Go function as a Plugin.
//
// A Func has no internal mutable state after construction; lifecycle hooks
// are optional and default to no-ops.
type Func struct {
	desc Descriptor
	fn   func(ctx context.Context, in Input) (Output, error)
	opts FuncOptions
}

// NewFunc constructs a Func from a descriptor and an implementation.
//
// Example:
//
//	upper := plugin.NewFunc(
//	  plugin.Descriptor{Name: "upper", Description: "Upper-case the input"},
//	  func(_ context.Context, in plugin.Input) (plugin.Output, error) {
//	    return plugin.Output{Text: strings.ToUpper(in.Text)}, nil
//	  },
//	)
func NewFunc(desc Descriptor, fn func(ctx context.Context, in Input) (Output, error), optFns ...func(o *FuncOptions)) *Func {
	opts := FuncOptions{}
	for _, f := range optFns {
		f(&opts)
	}
	return &Func{desc: desc, fn: fn, opts: opts}
}

// NewTextFunc is a shorthand for functions returning plain text.
func NewTextFunc(name, description string, fn func(ctx context.Context, text string) (string, error)) *Func {
	return NewFunc(Descriptor{Name: name, Description: description}, func(ctx context.Context, in Input) (Output, error) {
		s, err := fn(ctx, in.Text)
		if err != nil {
			return Output{}, err
		}
		return Output{Text: s}, nil
	})
}

// Descriptor implements Plugin.
func (f *Func) Descriptor() Descriptor { return f.desc }

// Initialize implements Plugin.
func (f *Func) Initialize(ctx context.Context) error {
	if f.opts.OnInitialize == nil {
		return nil
	}
	return f.opts.OnInitialize(ctx)
}

// Execute implements Plugin.
func (f *Func) Execute(ctx context.Context, in Input) (Output, error) {
	return f.fn(ctx, in)
}

// Shutdown implements Plugin.
func (f *Func) Shutdown(ctx context.Context) error {
	if f.opts.OnShutdown == nil {
		return nil
	}
	return f.opts.OnShutdown(ctx)
}
