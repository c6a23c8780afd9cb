package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultLubricantConfigIsValid(t *testing.T) {
	cfg := DefaultLubricantConfig()
	require.NoError(t, ValidateLubricantConfig(cfg))
	assert.Len(t, cfg.Grease, 2)
	assert.Len(t, cfg.Oil, 6)
}

func TestValidateLubricantConfigRejectsDuplicates(t *testing.T) {
	cfg := LubricantConfig{
		Grease: []LubricantEntry{{Name: "A", AnnualTarget: 1}},
		Oil:    []LubricantEntry{{Name: "A", AnnualTarget: 2}},
	}
	assert.Error(t, ValidateLubricantConfig(cfg))
}

func TestValidateLubricantConfigRejectsNegativeTarget(t *testing.T) {
	cfg := LubricantConfig{Oil: []LubricantEntry{{Name: "B", AnnualTarget: -1}}}
	assert.Error(t, ValidateLubricantConfig(cfg))
}

func TestNewLubricantConfigHolderFallsBackToDefaults(t *testing.T) {
	holder, err := NewLubricantConfigHolder(Config{LubricantsPath: filepath.Join(t.TempDir(), "missing.yml")}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultLubricantConfig(), holder.Get())
}

func TestNewLubricantConfigHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lubricants.yml")
	content := `lubricants:
  grease:
    - name: TEST GREASE
      annualTarget: 1200
  oil:
    - name: TEST OIL
      annualTarget: 36
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewLubricantConfigHolder(Config{LubricantsPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	require.Len(t, cfg.Grease, 1)
	assert.Equal(t, "TEST GREASE", cfg.Grease[0].Name)
	assert.Equal(t, 1200.0, cfg.Grease[0].AnnualTarget)
	require.Len(t, cfg.Oil, 1)
	assert.Equal(t, 36.0, cfg.Oil[0].AnnualTarget)
}
