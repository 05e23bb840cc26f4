package model

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// ONNXLoader creates onnxruntime sessions. The shared runtime environment is
// initialized on the first Load and torn down by Close.
type ONNXLoader struct {
	// LibraryPath points at the onnxruntime shared library; empty uses the
	// binding's platform default.
	LibraryPath string

	mu          sync.Mutex
	initialized bool
}

func (l *ONNXLoader) initEnvironment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized || ort.IsInitialized() {
		l.initialized = true
		return nil
	}
	if l.LibraryPath != "" {
		ort.SetSharedLibraryPath(l.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize ONNX environment")
	}
	l.initialized = true
	return nil
}

// Load opens the model at s.ModelPath. Input and output names and shapes are
// read from the model itself; dynamic dimensions are pinned to 1.
func (l *ONNXLoader) Load(_ context.Context, s Settings) (Network, error) {
	const op = "onnx load"

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := l.initEnvironment(); err != nil {
		return nil, NewError(KindLoad, op, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(s.ModelPath)
	if err != nil {
		return nil, loadError(op, err, "failed to read model io info")
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, NewError(KindLoad, op,
			errors.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs)))
	}
	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 {
		return nil, NewError(KindLoad, op, errors.Errorf("expected 4D input, got %dD", len(in.Dimensions)))
	}

	options, err := sessionOptions(s)
	if err != nil {
		return nil, NewError(KindLoad, op, err)
	}
	defer options.Destroy()

	inputTensor, err := ort.NewEmptyTensor[float32](pinShape(in.Dimensions))
	if err != nil {
		return nil, loadError(op, err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](pinShape(out.Dimensions))
	if err != nil {
		inputTensor.Destroy()
		return nil, loadError(op, err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(s.ModelPath,
		[]string{in.Name}, []string{out.Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, loadError(op, err, "failed to create ONNX session")
	}

	return &onnxNetwork{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Close releases the runtime environment.
func (l *ONNXLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.initialized = false
	return ort.DestroyEnvironment()
}

func pinShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func sessionOptions(s Settings) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	switch s.Backend {
	case BackendDefault:
	case BackendCPU:
		err = options.SetIntraOpNumThreads(runtime.NumCPU())
	case BackendOpenVINO:
		err = options.AppendExecutionProviderOpenVINO(openVINOOptions(s.Target))
	case BackendCUDA:
		err = appendCUDA(options)
	case BackendTensorRT:
		err = appendTensorRT(options, s.Target == TargetCUDAFP16)
	default:
		err = errors.Errorf("unsupported backend %q", string(s.Backend))
	}
	if err != nil {
		options.Destroy()
		return nil, errors.Wrapf(err, "backend %s / target %s", s.Backend, s.Target)
	}
	return options, nil
}

func openVINOOptions(t Target) map[string]string {
	switch t {
	case TargetOpenCL:
		return map[string]string{"device_type": "GPU", "precision": "FP32"}
	case TargetOpenCLFP16:
		return map[string]string{"device_type": "GPU", "precision": "FP16"}
	case TargetNPU:
		return map[string]string{"device_type": "NPU"}
	default:
		return map[string]string{"device_type": "CPU"}
	}
}

func appendCUDA(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}

func appendTensorRT(options *ort.SessionOptions, fp16 bool) error {
	trt, err := ort.NewTensorRTProviderOptions()
	if err != nil {
		return err
	}
	defer trt.Destroy()

	flag := "0"
	if fp16 {
		flag = "1"
	}
	if err := trt.Update(map[string]string{"device_id": "0", "trt_fp16_enable": flag}); err != nil {
		return err
	}
	return options.AppendExecutionProviderTensorRT(trt)
}

type onnxNetwork struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func (n *onnxNetwork) Forward(input []float32) ([]float32, error) {
	data := n.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, errors.Errorf("expected %d input values, got %d", len(data), len(input))
	}
	copy(data, input)

	if err := n.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	// the output tensor is reused by the next run
	out := n.outputTensor.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

func (n *onnxNetwork) OutputSize() int {
	return len(n.outputTensor.GetData())
}

func (n *onnxNetwork) Close() error {
	var err error
	if n.inputTensor != nil {
		err = multierr.Append(err, n.inputTensor.Destroy())
	}
	if n.outputTensor != nil {
		err = multierr.Append(err, n.outputTensor.Destroy())
	}
	if n.session != nil {
		err = multierr.Append(err, n.session.Destroy())
	}
	return err
}
