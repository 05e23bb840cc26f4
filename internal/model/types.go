package model

// Settings selects which weights to load and where to run them.
type Settings struct {
	ModelPath string  `json:"model_path"`
	Backend   Backend `json:"backend"`
	Target    Target  `json:"target"`
}

// Validate checks the backend/target pairing.
func (s Settings) Validate() error {
	if s.ModelPath == "" {
		return configErrorf("validate", "model path is empty")
	}
	return ValidatePair(s.Backend, s.Target)
}

// Prediction is the result for one region. Scores are raw network outputs,
// aligned with the adapter's class labels and not normalized.
type Prediction struct {
	Region string    `json:"region"`
	Label  string    `json:"label"`
	Index  int       `json:"index"`
	Scores []float32 `json:"scores"`
}

// PredictionRequest carries an already preprocessed 1x1x64x64 blob.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}

// Response maps a prediction onto the label-keyed JSON shape.
func (p *Prediction) Response(classes []string) *PredictionResponse {
	scores := make(map[string]float32, len(p.Scores))
	for i, v := range p.Scores {
		if i < len(classes) {
			scores[classes[i]] = v
		}
	}
	return &PredictionResponse{
		Class:       p.Label,
		Confidence:  p.Scores[p.Index],
		Predictions: scores,
	}
}
