package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgagent/companion/internal/providers/llm"
	"github.com/mgagent/companion/internal/utils"
)

func TestBuildInitial(t *testing.T) {
	subs := map[string]string{
		"assistant_name": "Companion",
		"user_memory":    "[interests] enjoys coffee",
	}

	msg, err := Build(TemplateInitial, subs)
	require.NoError(t, err)
	assert.Equal(t, llm.RoleSystem, msg.Role)
	assert.Contains(t, msg.Content, "Companion")
	assert.Contains(t, msg.Content, "[interests] enjoys coffee")
	assert.NotContains(t, msg.Content, "{assistant_name}")
	assert.NotContains(t, msg.Content, "{user_memory}")
}

func TestBuildIsDeterministic(t *testing.T) {
	subs := map[string]string{"assistant_name": "A", "user_memory": "m", "tool_result": "r"}

	first, err := Build(TemplatePostTool, subs)
	require.NoError(t, err)
	second, err := Build(TemplatePostTool, subs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildMissingKeyFails(t *testing.T) {
	_, err := Build(TemplatePostTool, map[string]string{"assistant_name": "A", "user_memory": ""})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeTemplate))
	assert.Contains(t, err.Error(), "tool_result")
}

func TestBuildUnknownTemplateFails(t *testing.T) {
	_, err := Build(TemplateID("nope"), nil)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeTemplate))
}

func TestMemoryExtractTemplateHasNoPlaceholders(t *testing.T) {
	msg, err := Build(TemplateMemoryExtract, nil)
	require.NoError(t, err)
	assert.Contains(t, msg.Content, NoMemorySentinel)
}
