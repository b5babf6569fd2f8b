package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

var _ model.Provider = (*Model)(nil)

func TestModel_Complete(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "4"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 1, "totalTokenCount": 4}
		}`)
	}))
	defer srv.Close()

	m, err := NewModel(context.Background(), func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.Model = "gemini-test"
	})
	require.NoError(t, err)

	resp, err := m.Complete(context.Background(), model.Request{Messages: []core.Message{
		core.NewMessage(core.RoleSystem, "be terse"),
		core.NewMessage(core.RoleUser, "2+2"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.True(t, strings.HasSuffix(path, "gemini-test:generateContent"), path)
}

func TestBuildContents(t *testing.T) {
	contents := buildContents([]core.Message{
		core.NewMessage(core.RoleUser, "hi"),
		core.NewMessage(core.RoleAssistant, "hello"),
		core.NewMessage(core.RoleUser, ""),
	})
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
}

func TestModel_Info(t *testing.T) {
	m, err := NewModel(context.Background(), func(o *Options) { o.APIKey = "k" })
	require.NoError(t, err)
	assert.Equal(t, model.Info{Name: "gemini-2.0-flash", Provider: "gemini"}, m.Info())
}
