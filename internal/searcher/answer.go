package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// NoContextAnswer is returned without calling the model when nothing matches
const NoContextAnswer = "No indexed document contains content related to this question."

// DefaultAnswerContext is the number of chunks given to the model
const DefaultAnswerContext = 5

// Answer is a generated reply grounded on retrieved chunks
type Answer struct {
	Question string
	Text     string
	Sources  []types.SearchResult
}

// Answerer retrieves the best chunks for a question and asks the generation
// provider to answer from them only
type Answerer struct {
	searcher  *Searcher
	generator llm.Generator
	topK      int
	logger    *zap.Logger
}

// NewAnswerer creates an Answerer. topK <= 0 selects DefaultAnswerContext.
func NewAnswerer(s *Searcher, gen llm.Generator, topK int, logger *zap.Logger) *Answerer {
	if topK <= 0 {
		topK = DefaultAnswerContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{searcher: s, generator: gen, topK: topK, logger: logger}
}

// Ask answers question from the indexed documents
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuery
	}
	if a.generator == nil {
		return nil, errors.New("no generation provider configured")
	}

	resp, err := a.searcher.Search(ctx, SearchRequest{Query: question, Limit: a.topK})
	if err != nil {
		return nil, err
	}

	answer := &Answer{Question: question, Sources: resp.Results}
	if len(resp.Results) == 0 {
		answer.Text = NoContextAnswer
		return answer, nil
	}

	passages := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		passages[i] = fmt.Sprintf("[%s] %s", r.File.Name, r.Content)
	}

	text, err := a.generator.Generate(ctx, llm.BuildAnswerPrompt(question, passages))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer.Text = strings.TrimSpace(text)
	a.logger.Debug("answered question", zap.Int("sources", len(resp.Results)))
	return answer, nil
}
