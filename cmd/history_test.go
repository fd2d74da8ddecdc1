// File: cmd/history_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/reporting"
)

var runStarted = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewDefaultConfig()

	t.Run("lists runs as markdown", func(t *testing.T) {
		st := new(mockHistoryStore)
		st.On("ListRuns", mock.Anything, 5).Return([]schemas.RunRecord{{
			ID:          "run-1",
			Requirement: "users can log in",
			StartedAt:   runStarted,
			Summary:     schemas.ValidationSummary{Total: 2, Validated: 1, SuccessRate: 0.5},
		}}, nil).Once()
		provider := &mockStoreProvider{store: st}

		var out bytes.Buffer
		err := runHistory(ctx, zaptest.NewLogger(t), cfg, &out, provider, "", 5, reporting.FormatMarkdown)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "| `run-1` | 2026-03-14T09:00:00Z | users can log in | 1/2 | 50% |")
		assert.True(t, provider.cleaned, "the store is released")
		assert.Same(t, cfg, provider.received)
		st.AssertExpectations(t)
	})

	t.Run("shows one run as json", func(t *testing.T) {
		st := new(mockHistoryStore)
		st.On("ScenarioResults", mock.Anything, "run-1").Return([]schemas.ScenarioRecord{
			{Name: "Login", Validated: true, Attempts: 1},
		}, nil).Once()

		var out bytes.Buffer
		err := runHistory(ctx, zaptest.NewLogger(t), cfg, &out, &mockStoreProvider{store: st}, "run-1", 20, reporting.FormatJSON)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"name": "Login", "validated": true, "attempts": 1}]`, out.String())
	})

	t.Run("unknown run", func(t *testing.T) {
		st := new(mockHistoryStore)
		st.On("ScenarioResults", mock.Anything, "nope").Return([]schemas.ScenarioRecord{}, nil).Once()

		err := runHistory(ctx, zaptest.NewLogger(t), cfg, &bytes.Buffer{}, &mockStoreProvider{store: st}, "nope", 20, reporting.FormatMarkdown)
		assert.EqualError(t, err, "run nope not found")
	})

	t.Run("store failures", func(t *testing.T) {
		err := runHistory(ctx, zaptest.NewLogger(t), cfg, &bytes.Buffer{}, &mockStoreProvider{err: errors.New("no db")}, "", 20, reporting.FormatMarkdown)
		assert.EqualError(t, err, "failed to initialize store: no db")

		st := new(mockHistoryStore)
		st.On("ListRuns", mock.Anything, 20).Return(nil, errors.New("relation runs does not exist")).Once()
		err = runHistory(ctx, zaptest.NewLogger(t), cfg, &bytes.Buffer{}, &mockStoreProvider{store: st}, "", 20, reporting.FormatMarkdown)
		assert.EqualError(t, err, "failed to list runs: relation runs does not exist")
	})

	t.Run("unsupported format", func(t *testing.T) {
		provider := &mockStoreProvider{}
		err := runHistory(ctx, zaptest.NewLogger(t), cfg, &bytes.Buffer{}, provider, "", 20, "sarif")
		assert.EqualError(t, err, "unsupported output format: sarif")
		assert.Nil(t, provider.received, "the store is not opened")
	})
}

func TestDefaultStoreProvider_RequiresURL(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.DatabaseCfg.URL = ""
	_, _, err := NewStoreProvider().Create(context.Background(), cfg)
	assert.EqualError(t, err, "database URL is not configured (UIFORGE_DATABASE_URL)")
}
