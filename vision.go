package photohistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// LabelPrompt is the default instruction for label classification.
const LabelPrompt = `You are a scene classifier for a personal photo library.

List the semantic labels that describe this photograph. Answer with a single
JSON object and nothing else:

{"labels": [{"name": "<label>", "confidence": <number between 0 and 1>}]}

Rules:
- Labels are lowercase English nouns or short noun phrases.
- Always decide on these labels when they apply: outdoor, indoor, people,
  document, screenshot, building, street, landscape, sky, vehicle, animal.
- "people" applies whenever a human figure is visible, recognizable or not.
- "document" applies to paper, receipts, whiteboards, slides or text-dominant images.
- Confidence is the probability the label is correct. Omit labels below 0.5.`

// FacePrompt is the default instruction for face detection.
const FacePrompt = `You are a face detector.

Count the human faces visible in this photograph whose features could be used
to recognize the person (eyes, nose and mouth region visible, not blurred, not
a tiny distant figure). Answer with a single JSON object and nothing else:

{"faces": <integer>}`

const (
	defaultVisionModel     = openai.GPT4oMini
	defaultVisionTimeout   = 45 * time.Second
	defaultVisionMaxTokens = 400
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// ErrUnexpectedResponse is returned when a vision reply cannot be parsed.
var ErrUnexpectedResponse = errors.New("photohistory: unexpected vision response")

// VisionConfig configures a VisionClassifier.
type VisionConfig struct {
	APIKey  string // required
	BaseURL string // optional: any OpenAI-compatible endpoint
	Model   string // default: gpt-4o-mini

	Timeout   time.Duration // per-request timeout (default: 45s)
	MaxTokens int           // default: 400

	// RequestsPerSecond limits vision calls across both capabilities
	// (0 = unlimited). Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive failures open the circuit for
	// BreakerCooldown (defaults: 5, 30s).
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Cache  Cache        // optional: caches parsed results by image content
	Logger *slog.Logger // default: slog.Default()

	LabelPrompt string // default: LabelPrompt
	FacePrompt  string // default: FacePrompt
}

func (c *VisionConfig) defaults() {
	if c.Model == "" {
		c.Model = defaultVisionModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultVisionTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultVisionMaxTokens
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = defaultBreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = defaultBreakerCooldown
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.LabelPrompt == "" {
		c.LabelPrompt = LabelPrompt
	}
	if c.FacePrompt == "" {
		c.FacePrompt = FacePrompt
	}
}

// VisionClassifier implements Labeler and FaceDetector with an
// OpenAI-compatible multimodal chat model.
type VisionClassifier struct {
	cfg     VisionConfig
	client  *openai.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
}

// NewVisionClassifier creates a classifier from cfg.
func NewVisionClassifier(cfg VisionConfig) (*VisionClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("photohistory: vision API key is required")
	}
	cfg.defaults()

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	logger := cfg.Logger
	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "vision",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the endpoint's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("photohistory: circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &VisionClassifier{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientConfig),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,
	}, nil
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (v *VisionClassifier) BreakerState() string {
	return v.breaker.State().String()
}

// ClassifyLabels asks the model for scene labels. Confidence filtering is
// left to the caller.
func (v *VisionClassifier) ClassifyLabels(ctx context.Context, data []byte, orientation Orientation) ([]Label, error) {
	var labels []Label
	key := v.cacheKey("vision_labels", data, orientation)
	if v.cfg.Cache != nil && v.cfg.Cache.Get(ctx, key, &labels) {
		return labels, nil
	}

	resp, err := v.complete(ctx, v.cfg.LabelPrompt, data, orientation)
	if err != nil {
		return nil, err
	}
	labels, err = ParseLabelResponse(resp)
	if err != nil {
		v.cfg.Logger.Debug("photohistory: unparseable label response", "response", resp)
		return nil, err
	}

	if v.cfg.Cache != nil {
		v.cfg.Cache.Set(ctx, key, labels)
	}
	return labels, nil
}

// DetectFaces asks the model how many recognizable faces are visible.
func (v *VisionClassifier) DetectFaces(ctx context.Context, data []byte, orientation Orientation) (int, error) {
	var faces int
	key := v.cacheKey("vision_faces", data, orientation)
	if v.cfg.Cache != nil && v.cfg.Cache.Get(ctx, key, &faces) {
		return faces, nil
	}

	resp, err := v.complete(ctx, v.cfg.FacePrompt, data, orientation)
	if err != nil {
		return 0, err
	}
	faces, err = ParseFaceResponse(resp)
	if err != nil {
		v.cfg.Logger.Debug("photohistory: unparseable face response", "response", resp)
		return 0, err
	}

	if v.cfg.Cache != nil {
		v.cfg.Cache.Set(ctx, key, faces)
	}
	return faces, nil
}

func (v *VisionClassifier) cacheKey(prefix string, data []byte, orientation Orientation) string {
	if v.cfg.Cache == nil {
		return ""
	}
	return v.cfg.Cache.Key(prefix, fmt.Sprintf("%s:%d", ContentKey(data), orientation))
}

func (v *VisionClassifier) complete(ctx context.Context, prompt string, data []byte, orientation Orientation) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("vision rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: v.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: orientationHint(orientation),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    EncodeDataURL(data, DetectMIME(data, "")),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   v.cfg.MaxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	return v.breaker.Execute(func() (string, error) {
		resp, err := v.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("vision API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices", ErrUnexpectedResponse)
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

func orientationHint(o Orientation) string {
	if !o.Valid() || o == OrientationUp {
		return "Classify the attached photograph."
	}
	return fmt.Sprintf("Classify the attached photograph. Its EXIF orientation is %q (%d); judge the scene as displayed upright.", o.String(), o)
}

// ParseLabelResponse extracts labels from a vision reply. It tolerates code
// fences and prose around the JSON object, and "label"/"score" aliases.
func ParseLabelResponse(resp string) ([]Label, error) {
	obj, ok := extractJSONObject(resp)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object", ErrUnexpectedResponse)
	}

	var parsed struct {
		Labels []struct {
			Name       string   `json:"name"`
			Label      string   `json:"label"`
			Confidence *float64 `json:"confidence"`
			Score      *float64 `json:"score"`
		} `json:"labels"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if parsed.Labels == nil {
		return nil, fmt.Errorf("%w: missing labels", ErrUnexpectedResponse)
	}

	labels := make([]Label, 0, len(parsed.Labels))
	for _, l := range parsed.Labels {
		name := l.Name
		if name == "" {
			name = l.Label
		}
		conf := l.Confidence
		if conf == nil {
			conf = l.Score
		}
		if name == "" || conf == nil {
			continue
		}
		labels = append(labels, Label{Name: name, Confidence: *conf})
	}
	return labels, nil
}

// ParseFaceResponse extracts a face count from a vision reply. "faces" may
// be a number or a list of regions.
func ParseFaceResponse(resp string) (int, error) {
	obj, ok := extractJSONObject(resp)
	if !ok {
		return 0, fmt.Errorf("%w: no JSON object", ErrUnexpectedResponse)
	}

	var parsed struct {
		Faces json.RawMessage `json:"faces"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if len(parsed.Faces) == 0 {
		return 0, fmt.Errorf("%w: missing faces", ErrUnexpectedResponse)
	}

	var n float64
	if err := json.Unmarshal(parsed.Faces, &n); err == nil {
		if n < 0 || n != float64(int(n)) {
			return 0, fmt.Errorf("%w: faces=%v", ErrUnexpectedResponse, n)
		}
		return int(n), nil
	}

	var regions []json.RawMessage
	if err := json.Unmarshal(parsed.Faces, &regions); err == nil {
		return len(regions), nil
	}
	return 0, fmt.Errorf("%w: faces has unexpected shape", ErrUnexpectedResponse)
}

// extractJSONObject returns the outermost {...} span of s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
