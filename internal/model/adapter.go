package model

import (
	"context"
	"image"
	"io"
	"os"
	"sync"

	"github.com/Brownie44l1/ferplus/internal/log"
	"github.com/Brownie44l1/ferplus/internal/preprocess"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DefaultModelPath is where the weights live unless configured otherwise.
const DefaultModelPath = "models/model.onnx"

// Adapter owns one lazily loaded network and the class labels that name its
// outputs. Calls are serialized; the cached network is only replaced on a
// reload request.
type Adapter struct {
	mu       sync.Mutex
	labels   []string
	settings Settings
	loader   Loader
	fetcher  Fetcher
	blob     preprocess.BlobOptions
	net      Network
}

type Option func(*Adapter) error

func WithSettings(s Settings) Option {
	return func(a *Adapter) error {
		a.settings = s
		return nil
	}
}

func WithLoader(l Loader) Option {
	return func(a *Adapter) error {
		if l == nil {
			return errors.New("loader is nil")
		}
		a.loader = l
		return nil
	}
}

func WithFetcher(f Fetcher) Option {
	return func(a *Adapter) error {
		a.fetcher = f
		return nil
	}
}

// NewAdapter reads the class labels and validates the settings. The network
// itself is loaded on the first prediction.
func NewAdapter(labelsPath string, opts ...Option) (*Adapter, error) {
	labels, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		labels: labels,
		settings: Settings{
			ModelPath: DefaultModelPath,
			Backend:   BackendDefault,
			Target:    TargetCPU,
		},
		loader: &ONNXLoader{},
		blob:   preprocess.DefaultBlobOptions(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, NewError(KindConfiguration, "new adapter", err)
		}
	}
	if err := a.settings.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Labels returns a copy of the class names in output order.
func (a *Adapter) Labels() []string {
	out := make([]string, len(a.labels))
	copy(out, a.labels)
	return out
}

func (a *Adapter) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Loaded reports whether a network is cached.
func (a *Adapter) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.net != nil
}

// Load makes sure a network is cached without running a prediction.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.ensure(ctx)
	return err
}

// Predict classifies one region. label names the region in the result only.
//
// A non-nil reload discards the cached network and loads a new one from the
// given settings before predicting; nil reuses the cache.
func (a *Adapter) Predict(ctx context.Context, region image.Image, label string, reload *Settings) (*Prediction, error) {
	blob, err := preprocess.Blob(region, a.blob)
	if err != nil {
		if errors.Is(err, preprocess.ErrEmptyImage) {
			return nil, NewError(KindInput, "predict "+label, err)
		}
		return nil, errors.Wrapf(err, "predict %s", label)
	}
	return a.PredictBlob(ctx, blob, label, reload)
}

// PredictBlob is Predict for an input that is already preprocessed.
func (a *Adapter) PredictBlob(ctx context.Context, blob []float32, label string, reload *Settings) (*Prediction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if reload != nil {
		if err := reload.Validate(); err != nil {
			return nil, err
		}
		if err := a.discard(); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "[model.PredictBlob] failed to release previous network")
		}
		a.settings = *reload
	}

	net, err := a.ensure(ctx)
	if err != nil {
		return nil, err
	}

	scores, err := net.Forward(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "predict %s", label)
	}
	if len(scores) != len(a.labels) {
		return nil, NewError(KindLoad, "predict "+label,
			errors.Errorf("network returned %d scores for %d classes", len(scores), len(a.labels)))
	}

	idx := Argmax(scores)
	return &Prediction{
		Region: label,
		Label:  a.labels[idx],
		Index:  idx,
		Scores: scores,
	}, nil
}

func (a *Adapter) ensure(ctx context.Context) (Network, error) {
	if a.net != nil {
		return a.net, nil
	}

	if err := a.fetch(ctx); err != nil {
		return nil, err
	}

	net, err := a.loader.Load(ctx, a.settings)
	if err != nil {
		if KindOf(err) == 0 {
			err = NewError(KindLoad, "load", err)
		}
		return nil, err
	}
	if size := net.OutputSize(); size != len(a.labels) {
		net.Close()
		return nil, NewError(KindLoad, "load",
			errors.Errorf("model has %d outputs but %d class labels were loaded", size, len(a.labels)))
	}

	a.net = net
	log.Info(log.Fields{
		"model_path": a.settings.ModelPath,
		"backend":    string(a.settings.Backend),
		"target":     string(a.settings.Target),
	}, "[model.Adapter] network loaded")
	return net, nil
}

func (a *Adapter) fetch(ctx context.Context) error {
	path := a.settings.ModelPath
	if a.fetcher == nil {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return NewError(KindNotFound, "fetch", errors.Wrapf(err, "model %s", path))
			}
			return NewError(KindLoad, "fetch", err)
		}
		return nil
	}

	if err := a.fetcher.Ensure(ctx, path); err != nil {
		if KindOf(err) == 0 {
			err = NewError(KindNotFound, "fetch", err)
		}
		return err
	}
	return nil
}

func (a *Adapter) discard() error {
	if a.net == nil {
		return nil
	}
	err := a.net.Close()
	a.net = nil
	return err
}

// Close releases the cached network and, when it owns resources, the loader.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.discard()
	if c, ok := a.loader.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}
