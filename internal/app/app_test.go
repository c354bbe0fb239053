package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.SecretsFile = filepath.Join(t.TempDir(), "missing.env")
	cfg.LLM.Ollama.BaseURL = "http://127.0.0.1:1"
	return cfg
}

func TestNew_InMemoryLedger(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	a.Reports.Workspace().NewDocument(ctx, "r.pdf", "text", 1)

	n, err := a.SessionRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNew_ResearchFollowsConfig(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	a.Reports.Workspace().NewDocument(ctx, "r.pdf", "text", 1)
	_, err = a.Reports.Workspace().EnableResearch(ctx, "Acme")
	assert.ErrorIs(t, err, analysis.ErrResearchDisabled)
	require.NoError(t, a.Close())

	cfg.Research.Enabled = true
	a, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	a.Reports.Workspace().NewDocument(ctx, "r.pdf", "text", 1)
	company, err := a.Reports.Workspace().EnableResearch(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", company)
}

func TestNew_PromptsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.PromptsFile = filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(cfg.Analysis.PromptsFile, []byte("sections: [}"), 0644))

	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_FileLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "data", "ledger.db")

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.FileExists(t, cfg.Storage.DatabasePath)
}

func TestConnectDefault_UnavailableLeavesNoProvider(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	a.ConnectDefault(context.Background(), "ollama")
	assert.Nil(t, a.Reports.Workspace().Provider())

	a.ConnectDefault(context.Background(), "")
	assert.Nil(t, a.Reports.Workspace().Provider())
}
