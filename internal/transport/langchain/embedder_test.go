package langchain

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type fakeEmbedder struct {
	vecs  [][]float32
	err   error
	texts []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	return f.vecs, f.err
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1}, nil
}

func TestEmbed(t *testing.T) {
	fake := &fakeEmbedder{vecs: [][]float32{{0.5, 0.25}}}
	e := Wrap(fake, "nomic-embed-text", "ollama", nil)

	res, err := e.Embed(context.Background(), "kubernetes operator")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, res.Embedding)
	assert.Zero(t, res.TotalTokens)
	assert.Equal(t, []string{"kubernetes operator"}, fake.texts)
}

func TestEmbed_Error(t *testing.T) {
	e := Wrap(&fakeEmbedder{err: errors.New("connection refused")}, "m", "ollama", nil)

	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbed_Empty(t *testing.T) {
	e := Wrap(&fakeEmbedder{vecs: [][]float32{{}}}, "m", "ollama", nil)

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, Wrap(&fakeEmbedder{}, "m", "p", nil).HealthCheck(context.Background()))
	assert.Error(t, Wrap(&fakeEmbedder{err: errors.New("down")}, "m", "p", nil).HealthCheck(context.Background()))
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(Config{BaseURL: "http://localhost:11434/v1", Model: "nomic-embed-text", Provider: "ollama"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
