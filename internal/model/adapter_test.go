package model

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ferLabels = []string{"neutral", "happiness", "surprise", "sadness", "anger", "disgust", "fear", "contempt"}

// stubNetwork returns fixed scores, or scores derived from the input when
// weights are set so different inputs give different outputs.
type stubNetwork struct {
	scores  []float32
	weights []float32
	inputs  [][]float32
	closed  bool
	err     error
}

func (n *stubNetwork) Forward(input []float32) ([]float32, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.inputs = append(n.inputs, append([]float32(nil), input...))
	if n.weights == nil {
		return append([]float32(nil), n.scores...), nil
	}
	out := make([]float32, len(n.weights))
	for i, w := range n.weights {
		var sum float32
		for j, v := range input {
			sum += v * w * float32(j%7+1)
		}
		out[i] = sum
	}
	return out, nil
}

func (n *stubNetwork) OutputSize() int {
	if n.weights != nil {
		return len(n.weights)
	}
	return len(n.scores)
}

func (n *stubNetwork) Close() error {
	n.closed = true
	return nil
}

// countingLoader hands out a new network built by make on every Load.
type countingLoader struct {
	calls    int
	settings []Settings
	networks []*stubNetwork
	make     func() *stubNetwork
	err      error
}

func (l *countingLoader) Load(_ context.Context, s Settings) (Network, error) {
	l.calls++
	l.settings = append(l.settings, s)
	if l.err != nil {
		return nil, l.err
	}
	n := l.make()
	l.networks = append(l.networks, n)
	return n, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func labelsContent(labels []string) string {
	var s string
	for _, l := range labels {
		s += l + "\n"
	}
	return s
}

func newTestAdapter(t *testing.T, loader Loader, opts ...Option) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	labels := writeFile(t, dir, "class_names", labelsContent(ferLabels))
	weights := writeFile(t, dir, "model.onnx", "weights")

	all := append([]Option{
		WithSettings(Settings{ModelPath: weights, Backend: BackendDefault, Target: TargetCPU}),
		WithLoader(loader),
	}, opts...)
	a, err := NewAdapter(labels, all...)
	require.NoError(t, err)
	return a, weights
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestPredictOutputAlignedWithLabels(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: []float32{0.1, 2.5, -1, 0, 0.3, 0.2, 0.1, 0}}
	}}
	a, _ := newTestAdapter(t, loader)

	pred, err := a.Predict(context.Background(), uniformGray(48, 48, 90), "Face #1", nil)
	require.NoError(t, err)

	assert.Len(t, pred.Scores, len(ferLabels))
	assert.Contains(t, ferLabels, pred.Label)
	assert.Equal(t, "happiness", pred.Label)
	assert.Equal(t, 1, pred.Index)
	assert.Equal(t, "Face #1", pred.Region)
	assert.Equal(t, 1, loader.calls)
}

func TestPredictFeedsNormalizedBlob(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, _ := newTestAdapter(t, loader)

	_, err := a.Predict(context.Background(), uniformGray(100, 80, 255), "Full image", nil)
	require.NoError(t, err)

	net := loader.networks[0]
	require.Len(t, net.inputs, 1)
	require.Len(t, net.inputs[0], 64*64)
	for _, v := range net.inputs[0] {
		assert.InDelta(t, 1.0, v, 1e-3)
	}
}

func TestPredictDeterministic(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{weights: []float32{0.5, -0.25, 1, 2, -1, 0.1, 0.2, 0.3}}
	}}
	a, _ := newTestAdapter(t, loader)
	region := uniformGray(37, 59, 200)

	first, err := a.Predict(context.Background(), region, "Full image", nil)
	require.NoError(t, err)
	second, err := a.Predict(context.Background(), region, "Full image", nil)
	require.NoError(t, err)

	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, 1, loader.calls, "network must be loaded once and reused")
}

func TestPredictArgmaxTieBreaksToLowestIndex(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: []float32{0.1, 0.2, 0.9, 0.3, 0.9, 0, 0, 0}}
	}}
	a, _ := newTestAdapter(t, loader)

	pred, err := a.Predict(context.Background(), uniformGray(10, 10, 0), "Full image", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, pred.Index)
	assert.Equal(t, "surprise", pred.Label)
}

func TestPredictDoesNotNormalizeScores(t *testing.T) {
	raw := []float32{4, -3, 12.5, 0, 0, 1, 1, 1}
	loader := &countingLoader{make: func() *stubNetwork { return &stubNetwork{scores: raw} }}
	a, _ := newTestAdapter(t, loader)

	pred, err := a.Predict(context.Background(), uniformGray(10, 10, 0), "Full image", nil)
	require.NoError(t, err)
	assert.Equal(t, raw, pred.Scores)
}

func TestPredictReloadUsesNewSettings(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, weights := newTestAdapter(t, loader)
	ctx := context.Background()
	region := uniformGray(20, 20, 10)

	_, err := a.Predict(ctx, region, "Full image", nil)
	require.NoError(t, err)
	_, err = a.Predict(ctx, region, "Full image", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)

	reload := Settings{ModelPath: weights, Backend: BackendOpenVINO, Target: TargetOpenCLFP16}
	_, err = a.Predict(ctx, region, "Full image", &reload)
	require.NoError(t, err)

	assert.Equal(t, 2, loader.calls)
	assert.Equal(t, reload, loader.settings[1])
	assert.True(t, loader.networks[0].closed, "previous network must be released")
	assert.Len(t, loader.networks[1].inputs, 1)
	assert.Equal(t, reload, a.Settings())

	_, err = a.Predict(ctx, region, "Full image", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestPredictReloadRejectsInvalidPair(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, weights := newTestAdapter(t, loader)
	ctx := context.Background()

	_, err := a.Predict(ctx, uniformGray(8, 8, 1), "Full image", nil)
	require.NoError(t, err)

	bad := Settings{ModelPath: weights, Backend: BackendCUDA, Target: TargetCPU}
	_, err = a.Predict(ctx, uniformGray(8, 8, 1), "Full image", &bad)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, 1, loader.calls)
	assert.False(t, loader.networks[0].closed)
}

func TestNewAdapterRejectsInvalidPair(t *testing.T) {
	dir := t.TempDir()
	labels := writeFile(t, dir, "class_names", labelsContent(ferLabels))

	_, err := NewAdapter(labels, WithSettings(Settings{
		ModelPath: "model.onnx",
		Backend:   BackendTensorRT,
		Target:    TargetOpenCL,
	}))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestPredictOutputSizeMismatch(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: []float32{1, 2, 3}}
	}}
	a, _ := newTestAdapter(t, loader)

	_, err := a.Predict(context.Background(), uniformGray(8, 8, 1), "Full image", nil)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.True(t, loader.networks[0].closed)
	assert.False(t, a.Loaded())
}

func TestPredictMissingModel(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork { return &stubNetwork{} }}
	a, weights := newTestAdapter(t, loader)
	require.NoError(t, os.Remove(weights))

	_, err := a.Predict(context.Background(), uniformGray(8, 8, 1), "Full image", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, loader.calls)
}

func TestPredictFetchFailureIsNotFound(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork { return &stubNetwork{} }}
	a, _ := newTestAdapter(t, loader, WithFetcher(FetcherFunc(func(context.Context, string) error {
		return errors.New("hub unreachable")
	})))

	_, err := a.Predict(context.Background(), uniformGray(8, 8, 1), "Full image", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "hub unreachable")
}

func TestPredictLoaderFailureIsLoadError(t *testing.T) {
	loader := &countingLoader{err: errors.New("malformed protobuf")}
	a, _ := newTestAdapter(t, loader)

	_, err := a.Predict(context.Background(), uniformGray(8, 8, 1), "Full image", nil)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.Equal(t, KindLoad, KindOf(err))
}

func TestPredictEmptyRegion(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, _ := newTestAdapter(t, loader)

	_, err := a.Predict(context.Background(), image.NewGray(image.Rect(0, 0, 0, 5)), "Face #1", nil)
	assert.True(t, errors.Is(err, ErrInput))
	assert.Equal(t, 0, loader.calls)
}

func TestPredictColorRegion(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, _ := newTestAdapter(t, loader)

	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	_, err := a.Predict(context.Background(), img, "Full image", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, loader.networks[0].inputs[0][0], 1e-3)
}

func TestCloseReleasesNetwork(t *testing.T) {
	loader := &countingLoader{make: func() *stubNetwork {
		return &stubNetwork{scores: make([]float32, len(ferLabels))}
	}}
	a, _ := newTestAdapter(t, loader)

	require.NoError(t, a.Load(context.Background()))
	assert.True(t, a.Loaded())
	require.NoError(t, a.Close())
	assert.True(t, loader.networks[0].closed)
	assert.False(t, a.Loaded())
}
