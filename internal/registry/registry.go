// Package registry maps plugin names to the factories that build their tasks.
package registry

import (
	"sort"
	"sync"

	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/pkg/errors"
)

// Info describes a plugin for listings and documentation.
type Info struct {
	Name               string   `json:"name"`
	ShortDescription   string   `json:"short_description"`
	Path               string   `json:"path"`
	Version            string   `json:"version"`
	Authors            string   `json:"authors"`
	Article            string   `json:"article"`
	Journal            string   `json:"journal"`
	Year               int      `json:"year"`
	License            string   `json:"license"`
	DocumentationLink  string   `json:"documentation_link"`
	Repository         string   `json:"repository"`
	OriginalRepository string   `json:"original_repository"`
	Keywords           []string `json:"keywords"`
}

// Factory builds tasks for one plugin.
type Factory interface {
	Info() Info
	Create(params *task.Params) (*task.Task, error)
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func Register(f Factory) error {
	name := f.Info().Name
	if name == "" {
		return errors.New("factory has no name")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[name]; ok {
		return errors.Errorf("plugin %q already registered", name)
	}
	factories[name] = f
	return nil
}

func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names lists registered plugins alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create looks up name and builds a task with params, nil meaning defaults.
func Create(name string, params *task.Params) (*task.Task, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, errors.Errorf("plugin %q is not registered", name)
	}
	return f.Create(params)
}

func unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(factories, name)
}
