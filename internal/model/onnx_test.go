package model

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestONNXLoaderRejectsInvalidSettings(t *testing.T) {
	l := &ONNXLoader{}

	_, err := l.Load(context.Background(), Settings{ModelPath: "model.onnx", Backend: BackendCUDA, Target: TargetNPU})
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, l.initialized, "runtime must not be touched for invalid settings")

	_, err = l.Load(context.Background(), Settings{Backend: BackendDefault, Target: TargetCPU})
	assert.True(t, errors.Is(err, ErrConfiguration))
}

// Without a model file Load fails before a session exists, either while
// initializing the runtime (no shared library) or while reading the model.
func TestONNXLoaderMissingModelIsLoadError(t *testing.T) {
	l := &ONNXLoader{LibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")}
	t.Cleanup(func() { l.Close() })

	net, err := l.Load(context.Background(), Settings{
		ModelPath: filepath.Join(t.TempDir(), "absent.onnx"),
		Backend:   BackendDefault,
		Target:    TargetCPU,
	})
	require.Error(t, err)
	assert.Nil(t, net)
	assert.Equal(t, KindLoad, KindOf(err))
	assert.Contains(t, err.Error(), "onnx load")
}

func TestONNXLoaderCloseWithoutLoad(t *testing.T) {
	assert.NoError(t, (&ONNXLoader{}).Close())
}

func TestOpenVINOOptions(t *testing.T) {
	cases := map[Target]map[string]string{
		TargetCPU:        {"device_type": "CPU"},
		TargetOpenCL:     {"device_type": "GPU", "precision": "FP32"},
		TargetOpenCLFP16: {"device_type": "GPU", "precision": "FP16"},
		TargetNPU:        {"device_type": "NPU"},
	}
	for target, want := range cases {
		assert.Equal(t, want, openVINOOptions(target), string(target))
	}
}
