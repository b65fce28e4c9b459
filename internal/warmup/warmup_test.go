package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/anan-assistant-go/internal/rag"
)

type fakeLibrary struct {
	mu      sync.Mutex
	docs    map[string][]string
	fail    map[string]error
	cleared []string
	built   []string
}

func (f *fakeLibrary) Store(_ context.Context, topic string) (*rag.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[topic]; err != nil {
		return nil, err
	}
	f.built = append(f.built, topic)
	var chunks []rag.Chunk
	for i, text := range f.docs[topic] {
		chunks = append(chunks, rag.Chunk{Index: i, Text: text, Vector: []float32{1}})
	}
	return rag.NewStore("test:fake", chunks), nil
}

func (f *fakeLibrary) ClearCache(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, topic)
	return nil
}

func TestRun_BuildsAllTopics(t *testing.T) {
	lib := &fakeLibrary{docs: map[string][]string{
		"dormitory": {"門限は22時", "外泊届"},
		"money":     {"奨学金"},
	}}

	stats, err := Run(t.Context(), lib, Options{Topics: []string{"dormitory", "money", "clab"}})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Topics.Load())
	assert.Equal(t, int64(3), stats.Chunks.Load())
	assert.Equal(t, int64(1), stats.Empty.Load())
	assert.Zero(t, stats.Failed.Load())
	assert.ElementsMatch(t, []string{"dormitory", "money", "clab"}, lib.built)
	assert.Empty(t, lib.cleared)
}

func TestRun_FailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("embedding endpoint down")
	lib := &fakeLibrary{
		docs: map[string][]string{"money": {"奨学金"}},
		fail: map[string]error{"sinro": boom},
	}

	stats, err := Run(t.Context(), lib, Options{Topics: []string{"sinro", "money"}, Concurrency: 1})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "sinro")
	assert.Equal(t, int64(1), stats.Topics.Load())
	assert.Equal(t, int64(1), stats.Failed.Load())
}

func TestRun_Reset(t *testing.T) {
	lib := &fakeLibrary{}

	_, err := Run(t.Context(), lib, Options{Topics: []string{"a", "b"}, Reset: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lib.cleared)
}

func TestRun_CanceledContext(t *testing.T) {
	lib := &fakeLibrary{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, lib, Options{Topics: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lib.built)
}

func TestParseTopics(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"dormitory", []string{"dormitory"}},
		{"dormitory, money ,sinro", []string{"dormitory", "money", "sinro"}},
		{"a,,b", []string{"a", "b"}},
		{"money,sinro,money", []string{"money", "sinro"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTopics(tt.input))
		})
	}
}
