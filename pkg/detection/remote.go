package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teslashibe/go-hud/internal/httpc"
)

// maxResponseSize bounds the JSON body accepted from a remote detector
const maxResponseSize = 1 << 20

// RemoteSource posts JPEG frames to an HTTP detection service and decodes
// a JSON array of detections from the response.
type RemoteSource struct {
	URL    string
	Client *http.Client // nil uses httpc.Client
}

// NewRemote creates a remote detection source for url
func NewRemote(url string) *RemoteSource {
	return &RemoteSource{URL: url}
}

type remoteResponse struct {
	Detections []Detection `json:"detections"`
}

// Detect sends the frame and returns the service's detections
func (r *RemoteSource) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	resp, err := httpc.PostContext(ctx, r.Client, r.URL, "image/jpeg", frame)
	if err != nil {
		return nil, fmt.Errorf("remote detect: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("remote detect: response exceeds %d bytes", maxResponseSize)
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return out.Detections, nil
}
