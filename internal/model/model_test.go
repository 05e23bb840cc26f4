package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	t.Run("keeps order and strips newlines", func(t *testing.T) {
		path := writeFile(t, dir, "unix", "neutral\nhappiness\nsurprise\n")
		labels, err := LoadLabels(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"neutral", "happiness", "surprise"}, labels)
	})

	t.Run("windows line endings", func(t *testing.T) {
		path := writeFile(t, dir, "dos", "anger\r\nfear\r\n")
		labels, err := LoadLabels(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"anger", "fear"}, labels)
	})

	t.Run("no trailing newline", func(t *testing.T) {
		path := writeFile(t, dir, "bare", "contempt")
		labels, err := LoadLabels(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"contempt"}, labels)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty", "")
		_, err := LoadLabels(path)
		assert.True(t, errors.Is(err, ErrLoad))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadLabels(dir + "/nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestValidatePair(t *testing.T) {
	tests := []struct {
		backend Backend
		target  Target
		ok      bool
	}{
		{BackendDefault, TargetCPU, true},
		{BackendDefault, TargetCUDA, false},
		{BackendCPU, TargetCPU, true},
		{BackendOpenVINO, TargetOpenCL, true},
		{BackendOpenVINO, TargetOpenCLFP16, true},
		{BackendOpenVINO, TargetNPU, true},
		{BackendOpenVINO, TargetCUDA, false},
		{BackendCUDA, TargetCUDA, true},
		{BackendCUDA, TargetCUDAFP16, false},
		{BackendTensorRT, TargetCUDAFP16, true},
		{BackendTensorRT, TargetCPU, false},
		{Backend("halide"), TargetCPU, false},
	}

	for _, tt := range tests {
		err := ValidatePair(tt.backend, tt.target)
		if tt.ok {
			assert.NoError(t, err, "%s/%s", tt.backend, tt.target)
		} else {
			assert.True(t, errors.Is(err, ErrConfiguration), "%s/%s", tt.backend, tt.target)
		}
	}
}

func TestEveryBackendHasValidDefaultTarget(t *testing.T) {
	for _, b := range Backends() {
		targets := ValidTargets(b)
		require.NotEmpty(t, targets, b)
		assert.Equal(t, targets[0], DefaultTarget(b))
		assert.NoError(t, ValidatePair(b, DefaultTarget(b)))
	}
	assert.Nil(t, ValidTargets("unknown"))
}

func TestParseBackendAndTarget(t *testing.T) {
	b, err := ParseBackend(" OpenVINO ")
	require.NoError(t, err)
	assert.Equal(t, BackendOpenVINO, b)
	assert.Equal(t, "OpenVINO", b.String())

	b, err = ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendDefault, b)

	_, err = ParseBackend("vkcom")
	assert.True(t, errors.Is(err, ErrConfiguration))

	tg, err := ParseTarget("CUDA-FP16")
	require.NoError(t, err)
	assert.Equal(t, TargetCUDAFP16, tg)
	assert.Equal(t, "CUDA FP16", tg.String())

	_, err = ParseTarget("fpga")
	assert.Error(t, err)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 0, Argmax([]float32{3}))
	assert.Equal(t, 2, Argmax([]float32{-5, -2, -1, -3}))
	assert.Equal(t, 1, Argmax([]float32{0, 7, 7, 7}))
	assert.Equal(t, 0, Argmax([]float32{1, 1}))
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3, 1000})
	var sum float32
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, float32(0))
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Equal(t, 3, Argmax(probs))
	assert.Empty(t, Softmax(nil))
}

func TestErrorKinds(t *testing.T) {
	err := errors.Wrap(NewError(KindNotFound, "fetch", errors.New("404")), "run Face #2")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrLoad))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "fetch: not found: 404")
}

func TestSettingsValidate(t *testing.T) {
	assert.True(t, errors.Is(Settings{Backend: BackendDefault, Target: TargetCPU}.Validate(), ErrConfiguration))
	assert.NoError(t, Settings{ModelPath: "m.onnx", Backend: BackendCUDA, Target: TargetCUDA}.Validate())
}

func TestPredictionResponse(t *testing.T) {
	p := &Prediction{Label: "fear", Index: 1, Scores: []float32{0.5, 3}}
	resp := p.Response([]string{"anger", "fear"})
	assert.Equal(t, "fear", resp.Class)
	assert.Equal(t, float32(3), resp.Confidence)
	assert.Equal(t, map[string]float32{"anger": 0.5, "fear": 3}, resp.Predictions)
}

func TestPinShape(t *testing.T) {
	assert.EqualValues(t, []int64{1, 1, 64, 64}, pinShape([]int64{-1, 1, 64, 64}))
}
