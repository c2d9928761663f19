package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalchat/internal/domain"
	"legalchat/internal/historystore"
	"legalchat/internal/historystore/memory"
)

const key = "chatMessages"

func persisted(t *testing.T, st *memory.Storage) string {
	t.Helper()
	data, err := st.Load(context.Background(), key)
	require.NoError(t, err)
	return string(data)
}

func inMemory(t *testing.T, s *Store) string {
	t.Helper()
	msgs := s.Messages()
	if msgs == nil {
		msgs = []domain.Message{}
	}
	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	return string(data)
}

func ptr(s string) *string { return &s }

func TestStorePersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)

	steps := []func() error{
		func() error {
			_, err := s.Append(ctx, domain.UserMessage(domain.KindQuery, "What is the Code of Civil Procedure, 1908 about?"))
			return err
		},
		func() error {
			m := domain.BotMessage(domain.KindQueryResponse, "It consolidates civil procedure.")
			m.SourceDocuments = []string{"CPC s.1", "CPC s.2"}
			_, err := s.Append(ctx, m)
			return err
		},
		func() error { return s.Update(ctx, 1, MessagePatch{TranslatedText: ptr(domain.TranslatingPlaceholder)}) },
		func() error { return s.Update(ctx, 1, MessagePatch{TranslatedText: ptr("Consolida el procedimiento civil.")}) },
		func() error {
			_, err := s.Append(ctx, domain.ErrorMessage("Error: backend unreachable"))
			return err
		},
		func() error { return s.Clear(ctx) },
		func() error {
			_, err := s.Append(ctx, domain.UserMessage(domain.KindQuery, "again"))
			return err
		},
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.JSONEq(t, inMemory(t, s), persisted(t, st), "step %d", i)
	}
	assert.Equal(t, len(steps), st.Saves())
}

func TestStoreClearPersistsEmptyLog(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)
	_, err := s.Append(ctx, domain.UserMessage(domain.KindQuery, "q"))
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "[]", persisted(t, st))

	reloaded := NewStore(st, key, nil)
	reloaded.Load(ctx)
	assert.Equal(t, 0, reloaded.Len())
}

func TestStoreLoadRestoresLog(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)
	_, _ = s.Append(ctx, domain.UserMessage(domain.KindQuery, "first"))
	_, _ = s.Append(ctx, domain.BotMessage(domain.KindQueryResponse, "second"))

	reloaded := NewStore(st, key, nil)
	reloaded.Load(ctx)
	require.Equal(t, 2, reloaded.Len())
	m, ok := reloaded.At(1)
	require.True(t, ok)
	assert.Equal(t, "second", m.Text)
	assert.Equal(t, domain.SenderBot, m.Sender)
}

func TestStoreLoadToleratesMalformedState(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	require.NoError(t, st.Save(ctx, key, []byte("{not json")))

	s := NewStore(st, key, nil)
	s.Load(ctx)
	assert.Equal(t, 0, s.Len())
}

func TestStoreLoadToleratesAbsentState(t *testing.T) {
	s := NewStore(memory.NewStorage(), key, nil)
	s.Load(context.Background())
	assert.Equal(t, 0, s.Len())
}

type failingStorage struct{ historystore.Storage }

func (failingStorage) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}
func (failingStorage) Save(context.Context, string, []byte) error { return errors.New("disk on fire") }

func TestStoreKeepsMutationWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	s := NewStore(failingStorage{}, key, nil)
	s.Load(ctx)
	assert.Equal(t, 0, s.Len())

	idx, err := s.Append(ctx, domain.UserMessage(domain.KindQuery, "q"))
	assert.Error(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, s.Len())
}

func TestStoreUpdateOutOfRange(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)
	_, _ = s.Append(ctx, domain.UserMessage(domain.KindQuery, "q"))

	err := s.Update(ctx, 5, MessagePatch{TranslatedText: ptr("x")})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	err = s.Update(ctx, -1, MessagePatch{TranslatedText: ptr("x")})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 1, st.Saves())
}

func TestStoreUpdateOnlyTouchesTarget(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.NewStorage(), key, nil)
	for _, txt := range []string{"a", "b", "c"} {
		_, _ = s.Append(ctx, domain.BotMessage(domain.KindQueryResponse, txt))
	}
	before := s.Messages()
	require.NoError(t, s.Update(ctx, 2, MessagePatch{TranslatedText: ptr("ce")}))
	after := s.Messages()

	assert.Equal(t, before[:2], after[:2])
	assert.Equal(t, "c", after[2].Text)
	assert.Equal(t, "ce", after[2].TranslatedText)
}

func TestStoreMessagesIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.NewStorage(), key, nil)
	m := domain.BotMessage(domain.KindQueryResponse, "a")
	m.SourceDocuments = []string{"doc"}
	_, _ = s.Append(ctx, m)

	got := s.Messages()
	got[0].SourceDocuments[0] = "mutated"
	again, _ := s.At(0)
	assert.Equal(t, "doc", again.SourceDocuments[0])
}

func TestStoreUpdateAtRejectsClearedLog(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)
	for _, txt := range []string{"a", "b", "c"} {
		_, _ = s.Append(ctx, domain.BotMessage(domain.KindQueryResponse, txt))
	}
	gen := s.Generation()
	require.NoError(t, s.UpdateAt(ctx, gen, 2, MessagePatch{TranslatedText: ptr("c!")}))

	require.NoError(t, s.Clear(ctx))
	for _, txt := range []string{"x", "y", "z"} {
		_, _ = s.Append(ctx, domain.BotMessage(domain.KindQueryResponse, txt))
	}
	saves := st.Saves()

	err := s.UpdateAt(ctx, gen, 2, MessagePatch{TranslatedText: ptr("late")})
	assert.ErrorIs(t, err, ErrStale)
	z, _ := s.At(2)
	assert.Equal(t, "z", z.Text)
	assert.Empty(t, z.TranslatedText)
	assert.Equal(t, saves, st.Saves())
	assert.NotContains(t, persisted(t, st), "late")
}

func TestStoreLoadStartsNewGeneration(t *testing.T) {
	s := NewStore(memory.NewStorage(), key, nil)
	gen := s.Generation()
	s.Load(context.Background())
	assert.NotEqual(t, gen, s.Generation())
}

func TestStorePurgeRemovesKey(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStorage()
	s := NewStore(st, key, nil)
	_, err := s.Append(ctx, domain.UserMessage(domain.KindQuery, "q"))
	require.NoError(t, err)

	require.NoError(t, s.Purge(ctx))
	assert.Equal(t, 0, s.Len())
	_, err = st.Load(ctx, key)
	assert.ErrorIs(t, err, historystore.ErrNotFound)

	reloaded := NewStore(st, key, nil)
	reloaded.Load(ctx)
	assert.Equal(t, 0, reloaded.Len())
}
