package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// Provider configuration
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultGeminiModel = "text-embedding-004"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashing"

	// Dimensions
	GeminiDimension = 768
	OpenAIDimension = 1536
	LocalDimension  = 384

	// DefaultOpenAIBaseURL is used when no base URL is configured
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// GeminiProvider implements Embedder using the Gemini embedding API
type GeminiProvider struct {
	client *genai.Client
	model  string
	dim    int
	cache  *Cache
	caller *caller

	// embed performs one API call; replaced in tests
	embed func(ctx context.Context, text string) ([]float32, error)
}

// NewGeminiProvider creates a new Gemini embedder
func NewGeminiProvider(ctx context.Context, cfg Config, cache *Cache) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key not set", ErrNoProviderEnabled)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	g := newGeminiProvider(cfg, cache)
	g.client = client
	g.embed = func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, llm.ClassifyError(err)
		}
		if resp == nil || resp.Embedding == nil {
			return nil, fmt.Errorf("%w: no embedding returned", types.ErrMalformedInput)
		}
		return resp.Embedding.Values, nil
	}
	return g, nil
}

func newGeminiProvider(cfg Config, cache *Cache) *GeminiProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = GeminiDimension
	}
	return &GeminiProvider{
		model:  model,
		dim:    dim,
		cache:  cache,
		caller: newCaller(cfg.Gate, cfg.Backoff, cfg.Logger, ProviderGemini),
	}
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if IsBlank(req.Text) {
		return ZeroEmbedding(g.dim, ProviderGemini, g.model), nil
	}

	// Check cache
	hash := ComputeHash(req.Text)
	if g.cache != nil {
		if emb, ok := g.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector, err := g.caller.call(ctx, func(ctx context.Context) ([]float32, error) {
		v, err := g.embed(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		return v, checkVector(v, g.dim)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderGemini,
		Model:     g.model,
		Hash:      hash,
	}
	if g.cache != nil {
		g.cache.Set(hash, emb)
	}
	return emb, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dim
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// OpenAIProvider implements Embedder against any OpenAI-compatible embeddings endpoint
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dim        int
	httpClient *http.Client
	cache      *Cache
	caller     *caller
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg Config, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrNoProviderEnabled)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = OpenAIDimension
	}

	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		caller: newCaller(cfg.Gate, cfg.Backoff, cfg.Logger, ProviderOpenAI),
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if IsBlank(req.Text) {
		return ZeroEmbedding(o.dim, ProviderOpenAI, o.model), nil
	}

	// Check cache
	hash := ComputeHash(req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector, err := o.caller.call(ctx, func(ctx context.Context) ([]float32, error) {
		return o.callAPI(ctx, req.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderOpenAI,
		Model:     o.model,
		Hash:      hash,
	}
	if o.cache != nil {
		o.cache.Set(hash, emb)
	}
	return emb, nil
}

// openAIResponse is the subset of the embeddings response we read
type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": text,
		"model": o.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: api call: %w", types.ErrTransientProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, llm.ClassifyStatus(resp.StatusCode, string(bodyBytes))
	}

	var apiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", types.ErrMalformedInput, err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", types.ErrMalformedInput)
	}

	vector := apiResp.Data[0].Embedding
	if err := checkVector(vector, o.dim); err != nil {
		return nil, err
	}
	return vector, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dim
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds offline with feature hashing: every lower-cased word
// adds a signed unit to one bucket, then the vector is L2-normalized. Texts
// sharing words score higher, which is enough for offline use and tests.
type LocalProvider struct {
	model string
	dim   int
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cfg Config, cache *Cache) (*LocalProvider, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{
		model: DefaultLocalModel,
		dim:   dim,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsBlank(req.Text) {
		return ZeroEmbedding(l.dim, ProviderLocal, l.model), nil
	}

	// Check cache
	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    HashVector(req.Text, l.dim),
		Dimension: l.dim,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

// HashVector builds the normalized feature-hashing vector of text
func HashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		if sum>>63 == 1 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return l.dim
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
