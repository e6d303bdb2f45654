// Package summarize hands an assembled article to a chat model through a
// prompt template.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/gosift/internal/cache"
	"github.com/hyperifyio/gosift/internal/llm"
)

// Placeholder marks where the article text goes in a prompt template.
const Placeholder = "{data}"

var (
	// ErrEmptyCompletion indicates the model returned no usable content.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrCacheMiss is returned in cache-only mode when nothing is cached.
	ErrCacheMiss = errors.New("completion not cached")
)

// ValidateTemplate checks that tpl has a substitution point.
func ValidateTemplate(tpl string) error {
	if strings.TrimSpace(tpl) == "" {
		return errors.New("prompt template is empty")
	}
	if !strings.Contains(tpl, Placeholder) {
		return fmt.Errorf("prompt template has no %s placeholder", Placeholder)
	}
	return nil
}

// Summarizer sends one user message per article and returns the raw
// completion; interpreting it is the caller's business.
type Summarizer struct {
	Client   llm.Client
	Model    string
	Template string
	Cache    *cache.LLMCache
	// CacheOnly returns from cache and fails fast if missing.
	CacheOnly bool

	sleep func(context.Context, time.Duration) error
}

// Prompt renders the template for article.
func (s *Summarizer) Prompt(article string) string {
	return strings.ReplaceAll(s.Template, Placeholder, article)
}

// Summarize returns the model's answer for article. A failed call is
// retried once after a short pause.
func (s *Summarizer) Summarize(ctx context.Context, article string) (string, error) {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return "", errors.New("summarizer not configured")
	}
	if err := ValidateTemplate(s.Template); err != nil {
		return "", err
	}
	prompt := s.Prompt(article)
	key := cache.KeyFrom(s.Model, prompt)
	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Completion string `json:"completion"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Completion) != "" {
				return out.Completion, nil
			}
		}
	}
	if s.CacheOnly {
		return "", ErrCacheMiss
	}

	req := openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		N:        1,
	}
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		if werr := s.wait(ctx, 100*time.Millisecond); werr != nil {
			return "", werr
		}
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("summarize call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"completion": out})
		_ = s.Cache.Save(ctx, key, payload)
	}
	return out, nil
}

func (s *Summarizer) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
