package model

import "context"

// Network is a loaded, runnable model. Forward takes an NCHW blob and returns
// the flat output vector.
type Network interface {
	Forward(input []float32) ([]float32, error)
	OutputSize() int
	Close() error
}

// Loader turns a weights file into a Network bound to a backend and target.
type Loader interface {
	Load(ctx context.Context, s Settings) (Network, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, s Settings) (Network, error)

func (f LoaderFunc) Load(ctx context.Context, s Settings) (Network, error) { return f(ctx, s) }

// Fetcher makes sure the weights file exists at path, fetching it if needed.
type Fetcher interface {
	Ensure(ctx context.Context, path string) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) error

func (f FetcherFunc) Ensure(ctx context.Context, path string) error { return f(ctx, path) }
