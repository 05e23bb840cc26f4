// Package plugin wires the FER+ adapter, the model hub and the task runner
// into a registry factory.
package plugin

import (
	"io"

	"github.com/Brownie44l1/ferplus/internal/hub"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/registry"
	"github.com/Brownie44l1/ferplus/internal/task"
)

// Name keys the plugin in the registry and on the model hub.
const Name = "infer_emotion_fer_plus"

func Info() registry.Info {
	return registry.Info{
		Name:               Name,
		ShortDescription:   "Facial emotion recognition using DNN trained from crowd-sourced label distribution.",
		Path:               "Plugins/Go/Face",
		Version:            "1.2.0",
		Authors:            "Emad Barsoum, Cha Zhang, Cristian Canton Ferrer and Zhengyou Zhang",
		Article:            "Training Deep Networks for Facial Expression Recognition with Crowd-Sourced Label Distribution",
		Journal:            "ACM ICMI",
		Year:               2016,
		License:            "MIT License",
		DocumentationLink:  "https://arxiv.org/pdf/1608.01041.pdf",
		Repository:         "https://github.com/Brownie44l1/ferplus",
		OriginalRepository: "https://github.com/microsoft/FERPlus",
		Keywords:           []string{"face", "expression", "emotion", "dnn"},
	}
}

type Factory struct {
	LabelsPath string
	HubURL     string
	// Loader defaults to an onnxruntime loader.
	Loader model.Loader
	// Progress receives model download progress; nil disables it.
	Progress io.Writer
}

func (f *Factory) Info() registry.Info { return Info() }

// NewAdapter builds an adapter that fetches missing weights from the hub.
func (f *Factory) NewAdapter(s model.Settings) (*model.Adapter, error) {
	client := hub.New(f.HubURL, Name)
	client.Progress = f.Progress

	opts := []model.Option{
		model.WithSettings(s),
		model.WithFetcher(client),
	}
	if f.Loader != nil {
		opts = append(opts, model.WithLoader(f.Loader))
	}
	return model.NewAdapter(f.LabelsPath, opts...)
}

// Create builds a task owning a fresh adapter; nil params means defaults.
func (f *Factory) Create(params *task.Params) (*task.Task, error) {
	p := task.DefaultParams()
	if params != nil {
		p = *params
	}
	adapter, err := f.NewAdapter(p.Settings())
	if err != nil {
		return nil, err
	}
	return task.New(adapter, p), nil
}
