package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Jj0520/FileWise-sub000/internal/ratelimit"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

const (
	// DefaultGenerationModel is used when no model is configured
	DefaultGenerationModel = "gemini-2.0-flash"

	defaultPollInterval  = 2 * time.Second
	defaultUploadTimeout = 2 * time.Minute
)

// GeminiConfig configures the Gemini generator
type GeminiConfig struct {
	APIKey string
	Model  string
	Gate   *ratelimit.Gate // Required: shared process gate
	Logger *zap.Logger
}

// Gemini implements Generator on the Gemini API
type Gemini struct {
	client  *genai.Client
	model   string
	gate    *ratelimit.Gate
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	pollInterval  time.Duration
	uploadTimeout time.Duration
}

// NewGemini creates a Gemini generator. The API key is required.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key not configured", types.ErrAuth)
	}
	if cfg.Gate == nil {
		return nil, errors.New("gemini generator requires a rate gate")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenerationModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:        client,
		model:         cfg.Model,
		gate:          cfg.Gate,
		breaker:       NewBreaker("gemini-generate", logger),
		logger:        logger,
		pollInterval:  defaultPollInterval,
		uploadTimeout: defaultUploadTimeout,
	}, nil
}

// NewBreaker builds the circuit breaker wrapped around provider calls
func NewBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Auth failures and cancellations say nothing about provider health
			return err == nil || errors.Is(err, types.ErrAuth) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Execute runs fn through the breaker and maps an open breaker to a transient error
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", types.ErrTransientProvider, err)
		}
		return zero, err
	}
	return result.(T), nil
}

// Generate answers a plain prompt
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("filewise/llm").Start(ctx, "gemini.generate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", g.model))

	text, err := g.generate(ctx, nil, genai.Text(prompt))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}
	return text, nil
}

// GenerateWithInline sends data as an inline blob alongside the prompt
func (g *Gemini) GenerateWithInline(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	ctx, span := otel.Tracer("filewise/llm").Start(ctx, "gemini.generate_inline", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.Int("gemini.inline_bytes", len(data)),
	)

	text, err := g.generate(ctx, extractInstruction(), genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(prompt))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}
	return text, nil
}

// GenerateWithUpload uploads r, waits for the file to become active, then
// references it from the prompt. The upload is deleted before returning.
func (g *Gemini) GenerateWithUpload(ctx context.Context, r io.Reader, mimeType, prompt string) (string, error) {
	ctx, span := otel.Tracer("filewise/llm").Start(ctx, "gemini.generate_upload", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", g.model))

	file, err := ratelimit.Call(ctx, g.gate, func(ctx context.Context) (*genai.File, error) {
		f, err := g.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{MIMEType: mimeType})
		return f, ClassifyError(err)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer g.deleteUpload(file.Name)

	file, err = g.waitActive(ctx, file)
	if err != nil {
		return "", err
	}

	text, err := g.generate(ctx, extractInstruction(), genai.FileData{URI: file.URI, MIMEType: file.MIMEType}, genai.Text(prompt))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}
	return text, nil
}

// Close closes the client
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) generate(ctx context.Context, system *genai.Content, parts ...genai.Part) (string, error) {
	return ratelimit.Call(ctx, g.gate, func(ctx context.Context) (string, error) {
		return Execute(g.breaker, func() (string, error) {
			model := g.client.GenerativeModel(g.model)
			if system != nil {
				model.SetTemperature(0.1)
				model.SystemInstruction = system
			}
			resp, err := model.GenerateContent(ctx, parts...)
			if err != nil {
				return "", ClassifyError(err)
			}
			return responseText(resp)
		})
	})
}

// waitActive polls until the uploaded file leaves the processing state
func (g *Gemini) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	ctx, cancel := context.WithTimeout(ctx, g.uploadTimeout)
	defer cancel()

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for upload %s: %w", file.Name, ctx.Err())
		case <-time.After(g.pollInterval):
		}

		var err error
		file, err = g.client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check file status: %w", ClassifyError(err))
		}
	}

	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("%w: upload %s ended in state %v", types.ErrMalformedInput, file.Name, file.State)
	}
	return file, nil
}

// deleteUpload removes an uploaded file. It runs on its own context so a
// cancelled request still cleans up.
func (g *Gemini) deleteUpload(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := g.gate.Do(ctx, func(ctx context.Context) error {
		return g.client.DeleteFile(ctx, name)
	})
	if err != nil {
		g.logger.Warn("failed to delete uploaded file", zap.String("file", name), zap.Error(err))
	}
}

func extractInstruction() *genai.Content {
	return &genai.Content{Parts: []genai.Part{genai.Text(extractSystemInstruction)}}
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty generation response", types.ErrMalformedInput)
	}

	var out strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if text, ok := p.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}
