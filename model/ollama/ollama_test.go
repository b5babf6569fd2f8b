package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/v1/", endpoint("http://localhost:11434"))
	assert.Equal(t, "http://host:1/v1/", endpoint("http://host:1/v1/"))
}

func TestNewModel_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"llama3","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"local answer"}}]}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) { o.BaseURL = srv.URL })
	assert.Equal(t, model.Info{Name: "llama3", Provider: "ollama"}, m.Info())

	resp, err := m.Complete(context.Background(), model.Request{Messages: []core.Message{core.NewMessage(core.RoleUser, "hi")}})
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Text)
}

func TestNewModel_DaemonDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewModel(func(o *Options) { o.BaseURL = url })
	_, err := m.Complete(context.Background(), model.Request{Messages: []core.Message{core.NewMessage(core.RoleUser, "hi")}})
	require.Error(t, err)
	assert.Equal(t, model.KindTransport, model.KindOf(err))
}
