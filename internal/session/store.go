// Package session holds the chat session log and the user's in-progress inputs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"legalchat/internal/domain"
	"legalchat/internal/historystore"
)

var (
	// ErrIndexOutOfRange is returned by Update when no message exists at the index.
	ErrIndexOutOfRange = errors.New("message index out of range")
	// ErrStale is returned by UpdateAt when the log was cleared or reloaded after the generation was read.
	ErrStale = errors.New("session log was replaced")
)

// MessagePatch lists the fields Update merges into an existing message. Nil fields are left alone.
type MessagePatch struct {
	Text           *string
	TranslatedText *string
}

// Store is the ordered session log. Every mutation rewrites the full log to storage.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
	gen      uint64
	storage  historystore.Storage
	key      string
	log      *zap.Logger
}

func NewStore(storage historystore.Storage, key string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{storage: storage, key: key, log: log}
}

// Load replaces the in-memory log with the persisted one. Missing or unreadable state yields an empty log.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.gen++

	data, err := s.storage.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, historystore.ErrNotFound) {
			s.log.Warn("history unreadable, starting empty", zap.String("key", s.key), zap.Error(err))
		}
		return
	}
	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.log.Warn("history malformed, starting empty", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.messages = msgs
	s.log.Debug("history loaded", zap.String("key", s.key), zap.Int("messages", len(msgs)))
}

// Append adds msg to the end of the log and returns its index.
// The message is kept even when persisting fails; the error reports the failed write.
func (s *Store) Append(ctx context.Context, msg domain.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg.Clone())
	return len(s.messages) - 1, s.persistLocked(ctx)
}

// Generation identifies the current log. It changes whenever the log is cleared or reloaded,
// so an index read under one generation never addresses a message of another.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Update merges patch into the message at index.
func (s *Store) Update(ctx context.Context, index int, patch MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, index, patch)
}

// UpdateAt is Update guarded by gen: it fails with ErrStale, changing nothing, once the log has moved on.
func (s *Store) UpdateAt(ctx context.Context, gen uint64, index int, patch MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fmt.Errorf("%w: generation %d, now %d", ErrStale, gen, s.gen)
	}
	return s.updateLocked(ctx, index, patch)
}

func (s *Store) updateLocked(ctx context.Context, index int, patch MessagePatch) error {
	if index < 0 || index >= len(s.messages) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.messages))
	}
	m := &s.messages[index]
	if patch.Text != nil {
		m.Text = *patch.Text
	}
	if patch.TranslatedText != nil {
		m.TranslatedText = *patch.TranslatedText
	}
	return s.persistLocked(ctx)
}

// Clear empties the log.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.gen++
	return s.persistLocked(ctx)
}

// Purge empties the log and removes the stored key altogether.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.gen++
	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.log.Error("history delete failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Messages returns a copy of the log.
func (s *Store) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// At returns the message at index.
func (s *Store) At(index int) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.messages) {
		return domain.Message{}, false
	}
	return s.messages[index].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// persistLocked serializes the whole log. An empty log is written as [] so a cleared history stays cleared.
func (s *Store) persistLocked(ctx context.Context) error {
	msgs := s.messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		s.log.Error("history save failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
