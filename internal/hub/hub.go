// Package hub fetches model weights from a remote model repository keyed by
// plugin name.
package hub

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/ferplus/internal/log"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// ModelFile is the weights file name stored under each plugin directory.
const ModelFile = "model.onnx"

// ErrNoHub is returned when a download is needed but no hub is configured.
var ErrNoHub = errors.New("model hub url is not configured")

type Client struct {
	BaseURL    string
	Name       string
	HTTPClient *http.Client
	// Progress receives a download progress bar; nil disables it.
	Progress io.Writer
}

func New(baseURL, name string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Name:       name,
		HTTPClient: http.DefaultClient,
	}
}

// ModelURL is <base>/<name>/model.onnx.
func (c *Client) ModelURL() (string, error) {
	if c.BaseURL == "" {
		return "", ErrNoHub
	}
	u, err := url.JoinPath(c.BaseURL, c.Name, ModelFile)
	if err != nil {
		return "", errors.Wrapf(err, "invalid hub url %q", c.BaseURL)
	}
	return u, nil
}

// Ensure downloads the model to path unless a file is already there.
func (c *Client) Ensure(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", path)
	}

	src, err := c.ModelURL()
	if err != nil {
		return errors.Wrapf(err, "model %s not found locally", path)
	}

	log.Info(log.Fields{"url": src, "path": path}, "[hub.Ensure] downloading model, please wait")
	return c.Download(ctx, src, path)
}

// Download writes src to dst through a temporary file so an interrupted
// transfer never leaves a truncated model behind.
func (c *Client) Download(ctx context.Context, src, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", src)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("get %s: unexpected status %s", src, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "create model directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	if c.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription("Downloading "+filepath.Base(dst)),
			progressbar.OptionSetWriter(c.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(tmp, bar)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		tmp.Close()
		return errors.Wrapf(err, "download %s", src)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary file")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Wrapf(err, "move model to %s", dst)
	}

	log.Info(log.Fields{"path": dst, "bytes": n}, "[hub.Download] model saved")
	return nil
}
