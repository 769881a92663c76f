package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 512

	// maxResponseBody bounds how much of an inference response is read.
	maxResponseBody = 16 << 20
)

// InferenceClient calls a zero-shot-object-detection inference endpoint
// speaking the Hugging Face Inference API format:
//
//	POST {endpoint}/{model}
//	{"inputs": "<base64 image>", "parameters": {"candidate_labels": [...]}}
//
// answered by
//
//	[{"score": 0.97, "label": "cat", "box": {"xmin": 1, "ymin": 2, "xmax": 3, "ymax": 4}}]
//
// Calls are not retried; a failed inference surfaces to the caller.
type InferenceClient struct {
	endpoint string
	token    string
	client   *http.Client

	// maxResponse caps the response body in bytes.
	maxResponse int64

	// models caches one resolved endpoint URL per model id.
	models sync.Map
}

// NewInferenceClient returns a client for endpoint. A nil httpClient uses
// http.DefaultClient; request deadlines come from the caller's context.
func NewInferenceClient(endpoint, token string, httpClient *http.Client) *InferenceClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &InferenceClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		token:       token,
		client:      httpClient,
		maxResponse: maxResponseBody,
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
	Options    inferenceOptions    `json:"options"`
}

type inferenceParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// wireDetection accepts fractional box coordinates from servers that emit them.
type wireDetection struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Box   struct {
		XMin float64 `json:"xmin"`
		YMin float64 `json:"ymin"`
		XMax float64 `json:"xmax"`
		YMax float64 `json:"ymax"`
	} `json:"box"`
}

type inferenceError struct {
	Error string `json:"error"`
}

// Detect implements Detector.
func (c *InferenceClient) Detect(ctx context.Context, img image.Image, labels []string, model string) ([]Detection, error) {
	if model == "" {
		return nil, errors.New("no detection model specified")
	}
	if len(labels) == 0 {
		return nil, errors.New("no candidate labels")
	}

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode image for inference: %w", err)
	}

	body, err := json.Marshal(inferenceRequest{
		Inputs:     base64.StdEncoding.EncodeToString(encoded.Bytes()),
		Parameters: inferenceParameters{CandidateLabels: labels},
		Options:    inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request for %s failed: %w", model, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if int64(len(data)) > c.maxResponse {
		return nil, fmt.Errorf("inference response for %s exceeds %d bytes", model, c.maxResponse)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference for %s returned HTTP %d: %s", model, resp.StatusCode, errorMessage(data))
	}

	var wire []wireDetection
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("malformed inference response: %w", err)
	}
	dets := make([]Detection, 0, len(wire))
	for _, w := range wire {
		if w.Score < 0 || w.Score > 1 {
			return nil, fmt.Errorf("inference returned score %v outside [0,1]", w.Score)
		}
		dets = append(dets, Detection{
			Label: w.Label,
			Score: w.Score,
			Box: Box{
				XMin: int(math.Round(w.Box.XMin)),
				YMin: int(math.Round(w.Box.YMin)),
				XMax: int(math.Round(w.Box.XMax)),
				YMax: int(math.Round(w.Box.YMax)),
			},
		})
	}
	return dets, nil
}

// modelURL resolves and memoizes the request URL for a model id.
func (c *InferenceClient) modelURL(model string) string {
	if u, ok := c.models.Load(model); ok {
		return u.(string)
	}
	segments := strings.Split(model, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := c.endpoint + "/" + strings.Join(segments, "/")
	actual, _ := c.models.LoadOrStore(model, u)
	return actual.(string)
}

func errorMessage(body []byte) string {
	var e inferenceError
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response"
	}
	return s
}
