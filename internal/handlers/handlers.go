package handlers

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"

	"github.com/Brownie44l1/ferplus/internal/log"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/preprocess"
	"github.com/Brownie44l1/ferplus/internal/registry"
	"github.com/Brownie44l1/ferplus/internal/task"
)

const maxUploadSize = 10 << 20

type Handler struct {
	// serializes runs: the task's parameters change between requests
	mu      sync.Mutex
	adapter *model.Adapter
	task    *task.Task
	info    registry.Info
}

func NewHandler(adapter *model.Adapter, t *task.Task, info registry.Info) *Handler {
	return &Handler{
		adapter: adapter,
		task:    t,
		info:    info,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch model.KindOf(err) {
	case model.KindConfiguration, model.KindInput:
		status = http.StatusBadRequest
	case model.KindNotFound:
		status = http.StatusServiceUnavailable
	}
	log.Error(log.Fields{
		log.RequestIDKey: log.RequestID(r.Context()),
		"path":           r.URL.Path,
		"status":         status,
		"error":          err.Error(),
	}, "[handlers] request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": h.adapter.Loaded(),
	})
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plugin":   h.info,
		"classes":  h.adapter.Labels(),
		"settings": h.adapter.Settings(),
	})
}

type backendEntry struct {
	ID      model.Backend `json:"id"`
	Name    string        `json:"name"`
	Targets []targetEntry `json:"targets"`
}

type targetEntry struct {
	ID   model.Target `json:"id"`
	Name string       `json:"name"`
}

// Backends lists every backend with the targets it accepts.
func (h *Handler) Backends(w http.ResponseWriter, r *http.Request) {
	var out []backendEntry
	for _, b := range model.Backends() {
		entry := backendEntry{ID: b, Name: b.String()}
		for _, t := range model.ValidTargets(b) {
			entry.Targets = append(entry.Targets, targetEntry{ID: t, Name: t.String()})
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// Predict classifies a preprocessed 64x64 blob.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := preprocess.SampleSize * preprocess.SampleSize
	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	result, err := h.adapter.PredictBlob(r.Context(), req.Image, task.FullImageLabel, nil)
	h.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := result.Response(h.adapter.Labels())
	if r.URL.Query().Get("softmax") == "1" {
		probs := model.Softmax(result.Scores)
		resp = (&model.Prediction{Label: result.Label, Index: result.Index, Scores: probs}).Response(h.adapter.Labels())
	}
	writeJSON(w, http.StatusOK, resp)
}

// PredictFromImage runs the task on an uploaded image. Optional form fields:
// regions (JSON array of {x,y,width,height}), reload=1 with backend/target.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}

	logger := log.WithRequestID(r.Context())
	logger.WithField("file", header.Filename).
		WithField("format", format).
		WithField("size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy())).
		Info("image received")

	var regions []task.Rect
	if raw := r.FormValue("regions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &regions); err != nil {
			http.Error(w, "Invalid regions JSON", http.StatusBadRequest)
			return
		}
		for _, region := range regions {
			if err := region.Validate(); err != nil {
				writeError(w, r, err)
				return
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	in := task.Input{Image: img, Regions: regions}
	if r.FormValue("reload") == "1" {
		params, err := h.reloadParams(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.task.SetParams(params)
		in.Reload = true
	}

	out, err := h.task.Run(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) reloadParams(r *http.Request) (task.Params, error) {
	params := h.task.Params()
	if s := r.FormValue("backend"); s != "" {
		b, err := model.ParseBackend(s)
		if err != nil {
			return params, err
		}
		params.Backend = b
		params.Target = model.DefaultTarget(b)
	}
	if s := r.FormValue("target"); s != "" {
		t, err := model.ParseTarget(s)
		if err != nil {
			return params, err
		}
		params.Target = t
	}
	if err := model.ValidatePair(params.Backend, params.Target); err != nil {
		return params, err
	}
	return params, nil
}
