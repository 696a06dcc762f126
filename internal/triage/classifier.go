package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"propcare_backend/platform/logger"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	// classifyTimeout bounds the external classification call. When it
	// elapses the pipeline proceeds with the fallback result.
	classifyTimeout = 15 * time.Second

	// photoTimeout bounds the vision sub-call. Photo analysis failing or
	// timing out never aborts the main classification.
	photoTimeout = 8 * time.Second
)

// Classifier turns a raw report into a triage result. Implementations must
// not return errors; failures degrade to FallbackResult.
type Classifier interface {
	Classify(ctx context.Context, report Report) Result
}

// generator abstracts the model calls so the degradation paths can be
// exercised in tests without a live model.
type generator interface {
	generateJSON(ctx context.Context, prompt string) (string, error)
	describePhotos(ctx context.Context, photos []Photo) (string, error)
}

// GeminiClassifier classifies reports with the Gemini API.
type GeminiClassifier struct {
	gen   generator
	model string
	log   *logger.Logger
}

// Config holds the settings for constructing a GeminiClassifier.
type Config struct {
	APIKey string
	Model  string
}

// NewGeminiClassifier creates a classifier backed by the Gemini API.
// An empty API key is allowed; every call then degrades to the fallback.
func NewGeminiClassifier(ctx context.Context, cfg Config, log *logger.Logger) (*GeminiClassifier, error) {
	c := &GeminiClassifier{model: cfg.Model, log: log}

	if cfg.APIKey == "" {
		log.Warn("GEMINI_API_KEY not configured; triage will use fallback results")
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c.gen = &geminiGenerator{client: client, model: cfg.Model}
	return c, nil
}

// Classify runs the triage model on the report. It never returns an error:
// on any failure it returns the deterministic fallback result.
func (c *GeminiClassifier) Classify(ctx context.Context, report Report) Result {
	if c.gen == nil {
		return FallbackResult(report)
	}

	var (
		result        Result
		classifyErr   error
		photoAnalysis string
	)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, classifyTimeout)
		defer cancel()

		raw, err := c.gen.generateJSON(callCtx, buildClassifyPrompt(report))
		if err != nil {
			classifyErr = err
			return nil
		}
		parsed, err := parseModelResult(raw)
		if err != nil {
			classifyErr = err
			return nil
		}
		result = parsed
		return nil
	})

	if len(report.Photos) > 0 {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, photoTimeout)
			defer cancel()

			analysis, err := c.gen.describePhotos(callCtx, report.Photos)
			if err != nil {
				// Independent fallback: empty analysis.
				c.log.Warn("photo analysis failed", "error", err)
				return nil
			}
			photoAnalysis = analysis
			return nil
		})
	}

	_ = g.Wait()

	if classifyErr != nil {
		c.log.Warn("classification failed, using fallback", "error", classifyErr)
		fallback := FallbackResult(report)
		fallback.PhotoAnalysis = photoAnalysis
		return fallback
	}

	result.PhotoAnalysis = photoAnalysis
	return result
}

// parseModelResult decodes the model's JSON answer into a normalized Result.
func parseModelResult(raw string) (Result, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var r Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &r); err != nil {
		return Result{}, fmt.Errorf("malformed model response: %w", err)
	}

	r.Fallback = false
	return normalize(r), nil
}

func buildClassifyPrompt(report Report) string {
	var b strings.Builder
	b.WriteString("You are a maintenance triage assistant for a property-management platform.\n")
	b.WriteString("Classify the following maintenance report. Respond with a single JSON object using exactly these keys:\n")
	b.WriteString(`{"category", "subcategory", "urgency", "complexity", "requiredSkills", "estimatedDurationMinutes", "suggestedTimeWindow", "safetyRisk", "diagnosis", "troubleshootingSteps", "modelVersion"}` + "\n")
	b.WriteString("urgency is one of Low|Medium|High|Urgent. safetyRisk is one of None|Low|Medium|High.\n\n")
	b.WriteString("Title: " + report.Title + "\n")
	b.WriteString("Description: " + report.Description + "\n")
	if report.CategoryHint != "" {
		b.WriteString("Reporter category hint: " + report.CategoryHint + "\n")
	}
	return b.String()
}

// geminiGenerator is the production generator backed by the Gemini API.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) generateJSON(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

func (g *geminiGenerator) describePhotos(ctx context.Context, photos []Photo) (string, error) {
	parts := []*genai.Part{{
		Text: "Describe the maintenance problem visible in these photos in two or three sentences. Mention anything that affects scope or safety.",
	}}
	for _, photo := range photos {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: photo.MIMEType, Data: photo.Data},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Text()), nil
}
