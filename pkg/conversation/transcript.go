package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/store"
)

const transcriptKeyPrefix = "conversation:"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type transcript struct {
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TranscriptStoreOpts struct {
	TimeProvider func() time.Time
}

// TranscriptStore persists per-user conversation history through the
// same key-value capability as the rate limit counters. Transcripts
// are trimmed to the newest maxMessages entries on every append.
type TranscriptStore struct {
	store        store.Store
	maxMessages  int
	logger       *logrus.Logger
	timeProvider func() time.Time
}

func NewTranscriptStore(
	s store.Store,
	maxMessages int,
	logger *logrus.Logger,
	opts *TranscriptStoreOpts,
) *TranscriptStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &TranscriptStore{
		store:        s,
		maxMessages:  maxMessages,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Append records one exchange turn. A corrupt or missing transcript
// restarts empty rather than failing the request.
func (t *TranscriptStore) Append(ctx context.Context, userID string, messages ...Message) {
	current := t.load(ctx, userID)
	current.Messages = append(current.Messages, messages...)

	if overflow := len(current.Messages) - t.maxMessages; overflow > 0 {
		current.Messages = current.Messages[overflow:]
	}
	current.UpdatedAt = t.timeProvider()

	data, err := json.Marshal(current)
	if err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to encode transcript")
		return
	}
	if err := t.store.Put(ctx, transcriptKey(userID), data); err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to persist transcript")
	}
}

func (t *TranscriptStore) History(ctx context.Context, userID string) []Message {
	return t.load(ctx, userID).Messages
}

func (t *TranscriptStore) Purge(ctx context.Context, userID string) error {
	return t.store.Delete(ctx, transcriptKey(userID))
}

func (t *TranscriptStore) NewMessage(role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: t.timeProvider()}
}

func (t *TranscriptStore) load(ctx context.Context, userID string) transcript {
	data, ok := t.store.Get(ctx, transcriptKey(userID))
	if !ok {
		return transcript{}
	}

	var tr transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return transcript{}
	}
	return tr
}

func transcriptKey(userID string) string {
	return transcriptKeyPrefix + userID
}
