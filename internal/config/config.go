// Package config reads runtime settings from the environment and an optional
// .env file.
package config

import (
	"os"
	"path/filepath"

	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvModelPath   = "FER_MODEL_PATH"
	EnvLabelsPath  = "FER_LABELS_PATH"
	EnvBackend     = "FER_BACKEND"
	EnvTarget      = "FER_TARGET"
	EnvHubURL      = "FER_HUB_URL"
	EnvLibraryPath = "FER_ORT_LIB"
	EnvPort        = "PORT"
)

type Config struct {
	ModelPath   string        `validate:"required"`
	LabelsPath  string        `validate:"required"`
	Backend     model.Backend `validate:"required"`
	Target      model.Target  `validate:"required"`
	HubURL      string        `validate:"omitempty,url"`
	LibraryPath string
	Port        string `validate:"required,numeric"`
}

// Load reads the configuration with FromEnv and validates it.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads .env when present, then the environment, without validating
// the result so callers can apply overrides first. Relative default paths are
// resolved against the project root.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	root := ProjectRoot()
	backend, err := model.ParseBackend(os.Getenv(EnvBackend))
	if err != nil {
		return nil, err
	}
	target := model.DefaultTarget(backend)
	if s := os.Getenv(EnvTarget); s != "" {
		if target, err = model.ParseTarget(s); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ModelPath:   getenv(EnvModelPath, filepath.Join(root, "models", "model.onnx")),
		LabelsPath:  getenv(EnvLabelsPath, filepath.Join(root, "models", "class_names")),
		Backend:     backend,
		Target:      target,
		HubURL:      os.Getenv(EnvHubURL),
		LibraryPath: os.Getenv(EnvLibraryPath),
		Port:        getenv(EnvPort, "8080"),
	}
	return cfg, nil
}

// ProjectRoot is the working directory, or two levels up when running from
// cmd/<binary>.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(filepath.Dir(wd)) == "cmd" {
		return filepath.Join(wd, "../..")
	}
	return wd
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if model.ValidatePair(c.Backend, c.Target) != nil {
			sl.ReportError(c.Target, "Target", "Target", "backendtarget", string(c.Backend))
		}
	}, Config{})
	return v
}

// Validate reports invalid fields, including a backend/target pairing the
// runtime cannot serve, as a configuration error.
func (c *Config) Validate() error {
	if err := validate.Struct(*c); err != nil {
		return model.NewError(model.KindConfiguration, "config", err)
	}
	return nil
}

func (c *Config) Settings() model.Settings {
	return model.Settings{
		ModelPath: c.ModelPath,
		Backend:   c.Backend,
		Target:    c.Target,
	}
}

func (c *Config) Params() task.Params {
	return task.Params{
		Backend:   c.Backend,
		Target:    c.Target,
		ModelPath: c.ModelPath,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
