package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/tripvoice/session"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps every system message plus the last N other
// messages, in their original order. N <= 0 keeps system messages only.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	others := 0
	for _, m := range history {
		if m != nil && m.Role != schema.System {
			others++
		}
	}
	drop := others - max(t.N, 0)
	if drop <= 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history)-drop)
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role != schema.System && drop > 0 {
			drop--
			continue
		}
		out = append(out, m)
	}
	return out
}

type HistoryReadWriter interface {
	Load(ctx context.Context) ([]*schema.Message, error)
	Save(ctx context.Context, history []*schema.Message) error
	Clear(ctx context.Context) error

	// Append adds msgs, skipping exact repeats of the previous message, trims
	// and saves. It returns the saved transcript, ready for runner input.
	Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error)
}

// HistoryStore keeps the chat transcript of the conversation named by the
// context (see session.WithConversationID).
type HistoryStore struct {
	store   session.Scoped[[]*schema.Message]
	trimmer Trimmer
}

func NewHistoryStore(core session.Cache[[]*schema.Message], trimmer Trimmer) *HistoryStore {
	return &HistoryStore{
		store:   session.NewScoped(core, "agent:history"),
		trimmer: trimmer,
	}
}

func NewMemoryHistoryStore(trimmer Trimmer) *HistoryStore {
	return NewHistoryStore(session.NewMemoryCache[[]*schema.Message](), trimmer)
}

func (s *HistoryStore) Load(ctx context.Context) ([]*schema.Message, error) {
	history, _, err := s.store.Get(ctx)
	return history, err
}

func (s *HistoryStore) Save(ctx context.Context, history []*schema.Message) error {
	kept := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m != nil {
			kept = append(kept, m)
		}
	}
	if s.trimmer != nil {
		kept = s.trimmer.Trim(kept)
	}
	return s.store.Set(ctx, kept)
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

func (s *HistoryStore) Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	history, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if n := len(history); n > 0 && history[n-1] != nil &&
			history[n-1].Role == m.Role && history[n-1].Content == m.Content {
			continue
		}
		history = append(history, m)
	}
	if err := s.Save(ctx, history); err != nil {
		return nil, err
	}
	return s.Load(ctx)
}

var _ HistoryReadWriter = (*HistoryStore)(nil)
