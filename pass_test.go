package memshare

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	ran := false
	require.NoError(t, r.Register("demo", "demo help", func(*rtlil.Design, []string, Config) error {
		ran = true
		return nil
	}))
	require.Error(t, r.Register("demo", "again", nil), "duplicate names must be rejected")

	help, ok := r.Help("demo")
	require.True(t, ok)
	require.Equal(t, "demo help", help)

	require.NoError(t, r.Run("demo", rtlil.NewDesign(), nil, Config{}))
	require.True(t, ran)

	require.Error(t, r.Run("missing", rtlil.NewDesign(), nil, Config{}))
}

func TestRegisterMemoryShare(t *testing.T) {
	require.NoError(t, RegisterMemoryShare())

	design := rtlil.NewDesign()
	design.AddModule("empty")
	require.NoError(t, DefaultRegistry.Run("memory_share", design, nil, Config{}))

	// A second registration from another entry point is refused.
	require.Error(t, RegisterMemoryShare())
}
