// Package vision labels images through the Cloud Vision REST API.
// It is independent of the game.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	Scope           = "https://www.googleapis.com/auth/cloud-vision"
	DefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

	maxLabels       = 10
	maxResponseSize = 1 << 20
)

// ErrEmptyImage is returned for zero-length input.
var ErrEmptyImage = errors.New("empty image")

// Label is one detected label with its confidence in [0, 1].
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Labeler calls images:annotate with LABEL_DETECTION.
type Labeler struct {
	client   *http.Client
	endpoint string
}

// New uses client as-is; it must already attach credentials.
func New(client *http.Client, endpoint string) *Labeler {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Labeler{client: client, endpoint: endpoint}
}

// NewFromCredentialsFile builds an authenticated Labeler from a service
// account JSON key.
func NewFromCredentialsFile(ctx context.Context, path string) (*Labeler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return New(oauth2.NewClient(ctx, creds.TokenSource), DefaultEndpoint), nil
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Labels returns the detected labels ordered by descending score.
func (l *Labeler) Labels(ctx context.Context, image []byte) ([]Label, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	body, err := json.Marshal(annotateRequest{Requests: []imageRequest{{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{{Type: "LABEL_DETECTION", MaxResults: maxLabels}},
	}}})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("annotate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out annotateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Responses) == 0 {
		return []Label{}, nil
	}
	r := out.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, fmt.Errorf("annotate: %s (code %d)", r.Error.Message, r.Error.Code)
	}

	labels := make([]Label, 0, len(r.LabelAnnotations))
	for _, a := range r.LabelAnnotations {
		labels = append(labels, Label{Label: a.Description, Score: a.Score})
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	log.Debug().Int("bytes", len(image)).Int("labels", len(labels)).Msg("image labelled")
	return labels, nil
}
