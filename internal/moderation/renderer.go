package moderation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

const (
	PlaceholderName = "name"
	PlaceholderWord = "word"

	// WordSeparator joins several matched words into the {word} placeholder.
	WordSeparator = ", "
)

var errUnknownPlaceholder = errors.New("unknown placeholder")

// Renderer builds the warning reply for a violation. It never fails: any problem
// with the chat's templates falls back to the default template.
type Renderer struct {
	store           TemplateStore
	defaultTemplate string
	logger          *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRenderer(store TemplateStore, defaultTemplate string, logger *zap.Logger) *Renderer {
	return &Renderer{
		store:           store,
		defaultTemplate: defaultTemplate,
		logger:          logger,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the template picker's random source.
func (r *Renderer) WithRand(rng *rand.Rand) *Renderer {
	r.mu.Lock()
	r.rng = rng
	r.mu.Unlock()
	return r
}

// Render returns the warning text for words matched in chatID, addressed to name.
func (r *Renderer) Render(ctx context.Context, chatID int64, words []string, name string) string {
	joined := strings.Join(words, WordSeparator)

	templates, err := r.store.Templates(ctx, chatID)
	if err != nil {
		r.logger.Warn("Failed to load templates, using default",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return r.renderDefault(joined, name)
	}
	if len(templates) == 0 {
		return r.renderDefault(joined, name)
	}

	chosen := templates[r.pick(len(templates))]

	vars := make(map[string]string, 2)
	if strings.Contains(chosen.Text, "{"+PlaceholderName+"}") {
		vars[PlaceholderName] = name
	}
	if strings.Contains(chosen.Text, "{"+PlaceholderWord+"}") {
		vars[PlaceholderWord] = joined
	}

	text, err := formatTemplate(chosen.Text, vars)
	if err != nil {
		r.logger.Debug("Template render failed, using default",
			zap.Int64("chat_id", chatID),
			zap.Int("template_id", chosen.TemplateID),
			zap.Error(err))
		return r.renderDefault(joined, name)
	}
	return text
}

func (r *Renderer) renderDefault(words, name string) string {
	vars := map[string]string{PlaceholderName: name, PlaceholderWord: words}
	text, err := formatTemplate(r.defaultTemplate, vars)
	if err != nil {
		// misconfigured default: substitute what we know and keep the rest verbatim
		return fasttemplate.ExecuteStringStd(r.defaultTemplate, "{", "}", map[string]interface{}{
			PlaceholderName: name,
			PlaceholderWord: words,
		})
	}
	return text
}

func (r *Renderer) pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// ValidateTemplate rejects template text that Render could not substitute:
// unbalanced braces or placeholders other than {name} and {word}.
//
// Braces are always placeholder delimiters. There is no escape for a literal
// brace, so "{{" and "}}" are rejected like any other unknown tag.
func ValidateTemplate(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("template.add.usage", "empty template")
	}
	if strings.Count(text, "{") != strings.Count(text, "}") {
		return NewValidationError("template.add.invalid", "unbalanced braces")
	}
	vars := map[string]string{PlaceholderName: "", PlaceholderWord: ""}
	if _, err := formatTemplate(text, vars); err != nil {
		return NewValidationError("template.add.invalid", err.Error())
	}
	return nil
}

func formatTemplate(text string, vars map[string]string) (string, error) {
	t, err := fasttemplate.NewTemplate(text, "{", "}")
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	return t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		value, ok := vars[tag]
		if !ok {
			return 0, fmt.Errorf("%w {%s}", errUnknownPlaceholder, tag)
		}
		return w.Write([]byte(value))
	})
}
