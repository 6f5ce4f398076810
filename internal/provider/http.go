package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	jpegQuality         = 90
	requestTimeout      = 30 * time.Second
	maxResponseBytes    = 8 << 20
	maxErrorBodyBytes   = 512
)

// APIError is a non-200 answer from the embedding server.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding server %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// HTTPClient uses an embedding server exposing POST /detect/face and
// POST /embed/face. Both take a multipart "file" JPEG plus form fields.
type HTTPClient struct {
	baseURL string
	model   string
	client  *http.Client

	// DetectFaces and ComputeEmbeddings run back to back on one frame; the
	// JPEG of the last frame is reused.
	mu       sync.Mutex
	lastSeen *imaging.Frame
	lastJPEG []byte
}

// NewHTTPClient creates a client for baseURL, defaulting to localhost:8000 and
// the hog detection model.
func NewHTTPClient(baseURL, model string) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if model == "" {
		model = constants.DefaultDetectionModel
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *HTTPClient) Name() string { return "http" }

// ChannelOrder is RGB since frames travel as JPEG.
func (c *HTTPClient) ChannelOrder() imaging.ChannelOrder { return imaging.RGB }

func (c *HTTPClient) Model() string { return c.model }

// FaceDetection is one face in a server answer.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse is the body of both endpoints.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

func (c *HTTPClient) jpegFor(frame *imaging.Frame) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSeen == frame && c.lastJPEG != nil {
		return c.lastJPEG, nil
	}
	data, err := imaging.JPEGBytes(frame, jpegQuality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	c.lastSeen, c.lastJPEG = frame, data
	return data, nil
}

// formBody builds the multipart upload for one frame.
func formBody(jpeg []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// call uploads frame to endpoint and decodes the FaceResponse.
func (c *HTTPClient) call(ctx context.Context, endpoint string, frame *imaging.Frame, fields map[string]string) (*FaceResponse, error) {
	jpeg, err := c.jpegFor(frame)
	if err != nil {
		return nil, err
	}
	fields["model"] = c.model
	body, contentType, err := formBody(jpeg, fields)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding server %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out FaceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return &out, nil
}

// DetectFaces returns face boxes clipped to the frame.
func (c *HTTPClient) DetectFaces(ctx context.Context, frame *imaging.Frame) ([]image.Rectangle, error) {
	resp, err := c.call(ctx, "/detect/face", frame, map[string]string{})
	if err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	boxes := make([]image.Rectangle, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		box := facematch.BBoxToRect(f.BBox).Intersect(bounds)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// ComputeEmbeddings asks the server to embed exactly the given boxes. Answers
// are put back into box order by face_index.
func (c *HTTPClient) ComputeEmbeddings(ctx context.Context, frame *imaging.Frame, boxes []image.Rectangle) ([]facematch.Embedding, error) {
	if len(boxes) == 0 {
		return nil, nil
	}

	wire := make([][]float64, len(boxes))
	for i, b := range boxes {
		wire[i] = facematch.RectToBBox(b)
	}
	boxesJSON, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode boxes: %w", err)
	}

	resp, err := c.call(ctx, "/embed/face", frame, map[string]string{"boxes": string(boxesJSON)})
	if err != nil {
		return nil, err
	}
	if len(resp.Faces) != len(boxes) {
		return nil, fmt.Errorf("embedding server returned %d embeddings for %d boxes", len(resp.Faces), len(boxes))
	}

	faces := slices.Clone(resp.Faces)
	slices.SortStableFunc(faces, func(a, b FaceDetection) int { return a.FaceIndex - b.FaceIndex })

	embeddings := make([]facematch.Embedding, len(faces))
	for i, f := range faces {
		if len(f.Embedding) == 0 {
			return nil, errors.New("embedding server returned an empty embedding")
		}
		embeddings[i] = facematch.Embedding(f.Embedding)
	}
	return embeddings, nil
}
