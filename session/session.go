package session

import (
	"context"
	"errors"
	"time"

	"github.com/tbxark/tripvoice/types"
)

var ErrNotFound = errors.New("conversation not found")

// Store persists conversation records by ID. Implementations return copies so
// callers never share a record with the store.
type Store interface {
	Load(ctx context.Context, id string) (*types.Record, error)
	Save(ctx context.Context, id string, rec *types.Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// Locker coordinates access to one conversation across replicas. Lock blocks
// until the lock is held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type conversationIDContext struct{}

// WithConversationID routes ctx to a conversation.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDContext{}, id)
}

func ConversationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(conversationIDContext{}).(string)
	return id, ok && id != ""
}
