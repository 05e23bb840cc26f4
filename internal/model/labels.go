package model

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadLabels reads one class name per line, keeping file order.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(KindNotFound, "load labels", err)
		}
		return nil, NewError(KindLoad, "load labels", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, loadError("load labels", err, "read "+path)
	}

	// a trailing blank line is a missing final newline artefact, not a class
	for len(labels) > 0 && strings.TrimSpace(labels[len(labels)-1]) == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, NewError(KindLoad, "load labels", errors.Errorf("%s has no class names", path))
	}
	return labels, nil
}
