package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"posescope/apperr"
	"posescope/keypoints"
)

// Client calls a keypoint inference server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a model client. Construction fails on an empty base URL so
// callers can fall back to the Unavailable predictor.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("predictor: base URL required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type predictResponse struct {
	Keypoints [][]float64 `json:"keypoints"`
	BBox      []float64   `json:"bbox"`
	BBoxN     []float64   `json:"bbox_n"`
	Error     string      `json:"error"`
}

// Predict uploads the image at imagePath and returns the model's keypoint
// guesses. All failure modes surface as PredictionError; the client timeout
// bounds a slow model, so the call never hangs.
func (c *Client) Predict(ctx context.Context, imagePath string) (Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Result{}, &apperr.PredictionError{Msg: fmt.Sprintf("cannot read image %s", imagePath), Err: err}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return Result{}, &apperr.PredictionError{Msg: "build request", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, &apperr.PredictionError{Msg: "build request", Err: err}
	}
	if err := writer.Close(); err != nil {
		return Result{}, &apperr.PredictionError{Msg: "build request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", body)
	if err != nil {
		return Result{}, &apperr.PredictionError{Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &apperr.PredictionError{Msg: "inference call failed", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &apperr.PredictionError{Msg: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, &apperr.PredictionError{Msg: fmt.Sprintf("model returned status %d", resp.StatusCode)}
	}

	var decoded predictResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{}, &apperr.PredictionError{Msg: "malformed model response", Err: err}
	}
	if decoded.Error != "" {
		return Result{}, &apperr.PredictionError{Msg: decoded.Error}
	}
	if len(decoded.Keypoints) == 0 {
		return Result{}, &apperr.PredictionError{Msg: "no keypoints detected"}
	}

	result := Result{BBox: decoded.BBox, BBoxN: decoded.BBoxN}
	for _, kp := range decoded.Keypoints {
		if len(kp) < 2 {
			return Result{}, &apperr.PredictionError{Msg: "malformed keypoint in model response"}
		}
		result.Keypoints = append(result.Keypoints, keypoints.Point{X: kp[0], Y: kp[1]})
	}
	return result, nil
}
