// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/service"
)

// -- Mocks --

type mockFactory struct{ mock.Mock }

var _ service.ComponentFactory = (*mockFactory)(nil)

func (m *mockFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	args := m.Called(ctx, cfg, logger)
	c, _ := args.Get(0).(*service.Components)
	return c, args.Error(1)
}

type mockHistoryStore struct{ mock.Mock }

func (m *mockHistoryStore) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]schemas.RunRecord)
	return runs, args.Error(1)
}

func (m *mockHistoryStore) ScenarioResults(ctx context.Context, runID string) ([]schemas.ScenarioRecord, error) {
	args := m.Called(ctx, runID)
	sc, _ := args.Get(0).([]schemas.ScenarioRecord)
	return sc, args.Error(1)
}

type mockStoreProvider struct {
	store    historyStore
	err      error
	cleaned  bool
	received config.Interface
}

func (p *mockStoreProvider) Create(ctx context.Context, cfg config.Interface) (historyStore, func(), error) {
	p.received = cfg
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleaned = true }, nil
}

// -- Helpers --

// executeCommand runs a fresh command tree with args and returns its output.
func executeCommand(t *testing.T, factory service.ComponentFactory, stores storeProvider, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	t.Cleanup(func() { cfgFile = "" })

	root := newRootCmd(factory, stores)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// createTempConfig writes content to a uiforge config file in a temp dir.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uiforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
