package model

import (
	"strings"
)

// Backend selects the onnxruntime execution provider.
type Backend string

const (
	BackendDefault  Backend = "default"
	BackendCPU      Backend = "cpu"
	BackendOpenVINO Backend = "openvino"
	BackendCUDA     Backend = "cuda"
	BackendTensorRT Backend = "tensorrt"
)

// Target selects the device (and precision) used by a backend.
type Target string

const (
	TargetCPU        Target = "cpu"
	TargetOpenCL     Target = "opencl"
	TargetOpenCLFP16 Target = "opencl-fp16"
	TargetNPU        Target = "npu"
	TargetCUDA       Target = "cuda"
	TargetCUDAFP16   Target = "cuda-fp16"
)

var backendNames = map[Backend]string{
	BackendDefault:  "Default",
	BackendCPU:      "CPU",
	BackendOpenVINO: "OpenVINO",
	BackendCUDA:     "CUDA",
	BackendTensorRT: "TensorRT",
}

var targetNames = map[Target]string{
	TargetCPU:        "CPU",
	TargetOpenCL:     "OpenCL FP32",
	TargetOpenCLFP16: "OpenCL FP16",
	TargetNPU:        "NPU",
	TargetCUDA:       "CUDA FP32",
	TargetCUDAFP16:   "CUDA FP16",
}

// backendOrder is the display order; the first target of each entry is its default.
var backendOrder = []Backend{BackendDefault, BackendCPU, BackendOpenVINO, BackendCUDA, BackendTensorRT}

var backendTargets = map[Backend][]Target{
	BackendDefault:  {TargetCPU},
	BackendCPU:      {TargetCPU},
	BackendOpenVINO: {TargetCPU, TargetOpenCL, TargetOpenCLFP16, TargetNPU},
	BackendCUDA:     {TargetCUDA},
	BackendTensorRT: {TargetCUDA, TargetCUDAFP16},
}

// Backends returns every supported backend in display order.
func Backends() []Backend {
	out := make([]Backend, len(backendOrder))
	copy(out, backendOrder)
	return out
}

// ValidTargets returns the targets a backend accepts, or nil for an unknown backend.
func ValidTargets(b Backend) []Target {
	targets, ok := backendTargets[b]
	if !ok {
		return nil
	}
	out := make([]Target, len(targets))
	copy(out, targets)
	return out
}

// DefaultTarget is the first valid target of b.
func DefaultTarget(b Backend) Target {
	if targets := backendTargets[b]; len(targets) > 0 {
		return targets[0]
	}
	return TargetCPU
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return string(b)
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return string(t)
}

// ParseBackend accepts the identifier case-insensitively. Empty means default.
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BackendDefault, nil
	}
	b := Backend(s)
	if _, ok := backendTargets[b]; !ok {
		return "", configErrorf("parse backend", "unknown backend %q", s)
	}
	return b, nil
}

// ParseTarget accepts the identifier case-insensitively. Empty means cpu.
func ParseTarget(s string) (Target, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TargetCPU, nil
	}
	t := Target(s)
	if _, ok := targetNames[t]; !ok {
		return "", configErrorf("parse target", "unknown target %q", s)
	}
	return t, nil
}

// ValidatePair fails with a configuration error when t is not offered by b.
func ValidatePair(b Backend, t Target) error {
	targets, ok := backendTargets[b]
	if !ok {
		return configErrorf("validate", "unknown backend %q", string(b))
	}
	for _, candidate := range targets {
		if candidate == t {
			return nil
		}
	}
	return configErrorf("validate", "target %q is not supported by backend %q", string(t), string(b))
}
