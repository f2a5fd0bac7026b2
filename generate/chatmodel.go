package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultSystemPromptTemplate is the default system prompt used by
// ChatModelGenerator. The template may contain a single "%s" placeholder for
// the language.
const DefaultSystemPromptTemplate = `You are a friendly travel planning assistant speaking with a caller over the phone.

- Keep every reply short enough to be spoken aloud comfortably.
- When asked to answer in a tagged format such as "BUDGET: <number>", always use exactly that format and the tags you were given.
- Never invent tags that were not requested.
- Reply in %s.
`

type ChatModelGenerator struct {
	Lang         string
	systemPrompt string
	timeout      time.Duration
	chatModel    model.BaseChatModel
	logger       *slog.Logger
}

type generatorOptions struct {
	lang                 string
	systemPrompt         string
	systemPromptTemplate string
	timeout              time.Duration
	logger               *slog.Logger
}

type Option func(*generatorOptions)

// WithLang sets the language used by the default system prompt template.
func WithLang(lang string) Option {
	return func(o *generatorOptions) {
		o.lang = lang
	}
}

// WithSystemPrompt overrides the system prompt entirely.
func WithSystemPrompt(systemPrompt string) Option {
	return func(o *generatorOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithSystemPromptTemplate overrides the system prompt template. If the
// template contains "%s", it will be formatted with the language.
func WithSystemPromptTemplate(systemPromptTemplate string) Option {
	return func(o *generatorOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

// WithTimeout bounds every model call. An expired call is reported as a
// GenerationError like any other failure.
func WithTimeout(timeout time.Duration) Option {
	return func(o *generatorOptions) {
		o.timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *generatorOptions) {
		o.logger = logger
	}
}

func NewChatModelGenerator(chatModel model.BaseChatModel, opts ...Option) *ChatModelGenerator {
	options := generatorOptions{
		lang:                 "English",
		systemPromptTemplate: DefaultSystemPromptTemplate,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.lang == "" {
		options.lang = "English"
	}
	systemPrompt := options.systemPrompt
	if systemPrompt == "" {
		tpl := options.systemPromptTemplate
		if tpl == "" {
			tpl = DefaultSystemPromptTemplate
		}
		if strings.Contains(tpl, "%s") {
			systemPrompt = fmt.Sprintf(tpl, options.lang)
		} else {
			systemPrompt = tpl
		}
	}
	return &ChatModelGenerator{
		Lang:         options.lang,
		systemPrompt: systemPrompt,
		timeout:      options.timeout,
		chatModel:    chatModel,
		logger:       options.logger,
	}
}

func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	messages := []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(prompt),
	}
	started := time.Now()
	response, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		g.logger.Debug("Model call failed", "err", err, "elapsed", time.Since(started))
		return "", &GenerationError{Op: "chat model", Err: err}
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", &GenerationError{Op: "chat model", Err: ErrEmptyResponse}
	}
	g.logger.Debug("Model call finished", "elapsed", time.Since(started), "chars", len(response.Content))
	return strings.TrimSpace(response.Content), nil
}
