package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// asJSON round-trips a value through JSON so SDK union params can be
// asserted on their wire shape instead of their internals.
func asJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestNew_Dispatch(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		p, err := New(Config{Type: TypeOpenAI, APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("anthropic", func(t *testing.T) {
		p, err := New(Config{Type: TypeAnthropic, APIKey: "sk-ant-test"})
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("ollama", func(t *testing.T) {
		p, err := New(Config{Type: TypeOllama})
		require.NoError(t, err)
		assert.Equal(t, "ollama", p.Name())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(Config{Type: "mystery"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider type")
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{Type: TypeOpenAI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	_, err = New(Config{Type: TypeAnthropic})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewOllama_InvalidURL(t *testing.T) {
	_, err := NewOllama("://not-a-url", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Ollama URL")
}
