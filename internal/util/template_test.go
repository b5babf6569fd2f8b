package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Session {{.session_id}} can use: {{join ", " .capabilities}}`, map[string]any{
		"session_id":   "s1",
		"capabilities": []string{"echo", "shell"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Session s1 can use: echo, shell", out)

	out, err = RenderTemplate(`{{default "anon" .user | upper}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ANON", out)
}

func TestParseTemplate_Invalid(t *testing.T) {
	_, err := ParseTemplate("bad", "{{.unterminated")
	assert.Error(t, err)
}

func TestTemplate_NoEscaping(t *testing.T) {
	out, err := RenderTemplate(`{{.v}}`, map[string]any{"v": "<a & b>"})
	require.NoError(t, err)
	assert.Equal(t, "<a & b>", out)
}
