package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"call-classifier/internal/chain"
	"call-classifier/internal/classification"
	"call-classifier/internal/config"
	"call-classifier/internal/pipeline"
	"call-classifier/pkg/logger"
	"call-classifier/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop().Sugar())
	os.Exit(m.Run())
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		RepositoryBackend: backend,
		ClassifierBackend: "static",
		StaticCategory:    "COMMERCIAL",
		WorkerCount:       2,
		QueueSize:         10,
	}
}

func TestInitMemoryAndHandle(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, err := Init(context.Background(), testConfig("memory"))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	out, err := a.Handle(context.Background(), chain.Event{
		"type":    "newcall",
		"call_id": "call_1",
		"text":    "Customer called to inquire about pricing for bulk orders.",
	})
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, pipeline.StepClassifyCall, out.Step)

	res := out.Result.(*classification.Result)
	assert.Equal(t, int64(1), res.Classification.ID)
	assert.Equal(t, classification.CategoryCommercial, res.Classification.Category)

	_, err = a.Handle(context.Background(), chain.Event{"type": 3, "text": "numeric type"})
	assert.ErrorIs(t, err, validator.ErrInvalidEvent)
}

func TestHandleReturnsUnmatchedEventUnchanged(t *testing.T) {
	a, err := Init(context.Background(), testConfig("memory"))
	require.NoError(t, err)
	defer a.Close()

	for _, in := range []chain.Event{
		{"x": 1},
		{"type": "hangup"},
		{"source": "ivr", "call_id": "call_3", "meta": map[string]any{"lang": "en"}},
	} {
		out, err := a.Handle(context.Background(), in)
		require.NoError(t, err)
		assert.False(t, out.Matched)
		assert.NotEmpty(t, out.EventID)
		assert.Equal(t, in, out.Result)
		assert.NotContains(t, in, "event_id")
	}
}

func TestInitSQLite(t *testing.T) {
	cfg := testConfig("sqlite")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "app.db")

	a, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	_, err = a.Handle(context.Background(), chain.Event{"type": "newcall", "call_id": "c", "text": "follow-up"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// the data survives a restart
	again, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer again.Close()

	got, err := again.Repository.FindByCallID(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, classification.CategoryFollowing, got[0].Category)
}

func TestInitErrors(t *testing.T) {
	cfg := testConfig("postgres")
	_, err := Init(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig("memory")
	cfg.ClassifierBackend = "anthropic"
	_, err = Init(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHandleUninitialized(t *testing.T) {
	var a *App
	_, err := a.Handle(context.Background(), chain.Event{"type": "newcall"})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, a.Close())

	_, err = (&App{}).Handle(context.Background(), chain.Event{"type": "newcall"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	a, err := Init(context.Background(), testConfig("memory"))
	require.NoError(t, err)
	defer a.Close()

	ts := httptest.NewServer(a.HTTPHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
