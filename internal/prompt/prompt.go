// Package prompt holds the static system prompt templates and their
// substitution logic. Build is a pure function so prompt assembly stays
// testable independent of wording.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mgagent/companion/internal/providers/llm"
	"github.com/mgagent/companion/internal/utils"
)

type TemplateID string

const (
	// TemplateInitial is the system prompt for the first completion call of
	// a turn, with retrieved memory injected.
	TemplateInitial TemplateID = "initial"
	// TemplatePostTool is the system prompt for the follow-up call after a
	// tool round-trip, with the tool output injected.
	TemplatePostTool TemplateID = "post_tool"
	// TemplateMemoryExtract drives the profile-memory extraction call made
	// after the reply has been delivered.
	TemplateMemoryExtract TemplateID = "memory_extract"
)

// NoMemorySentinel is the literal token the extraction prompt instructs the
// model to return when a conversation holds nothing profile-worthy.
const NoMemorySentinel = "no extractable content"

var templates = map[TemplateID]string{
	TemplateInitial: `You are {assistant_name}, a warm conversational companion.
You know the following long-term facts about this user:
{user_memory}

When the user asks about your identity, capabilities, usage or limits, call the
query_manual tool to look the answer up in the product documentation instead of
guessing. Respond with empathy first, then concrete suggestions, then a gentle
follow-up question. Keep replies about half the usual length. No emoji.`,

	TemplatePostTool: `You are {assistant_name}, a warm conversational companion.
You know the following long-term facts about this user:
{user_memory}

Reference material returned by your tools:
{tool_result}

Ground your answer in the reference material above. Respond with empathy first,
then concrete suggestions, then a gentle follow-up question. Keep replies about
half the usual length. No emoji.`,

	TemplateMemoryExtract: `You are a user-profiling assistant. From the conversation
below, extract statements that describe the user's traits, habits, preferences,
identity or current situation. Output a JSON array where each element is an
object with exactly one key, the category, mapped to the extracted content, e.g.
[{"interests": "enjoys coffee"}, {"habits": "runs every morning"}].
Never invent content. If there is nothing to extract, return exactly the string
"` + NoMemorySentinel + `".`,
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Build selects a template and substitutes every {placeholder} from subs,
// returning a system-role message. A placeholder with no matching key is an
// error; this indicates a programming mistake, not bad input.
func Build(id TemplateID, subs map[string]string) (llm.Message, error) {
	const op = "prompt.Build"

	tmpl, ok := templates[id]
	if !ok {
		return llm.Message{}, utils.E(utils.CodeTemplate, op, fmt.Sprintf("unknown template %q", id), nil)
	}

	var missing []string
	content := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := subs[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return llm.Message{}, utils.E(utils.CodeTemplate, op,
			fmt.Sprintf("template %q missing substitutions: %s", id, strings.Join(missing, ", ")), nil)
	}

	return llm.Message{Role: llm.RoleSystem, Content: content}, nil
}
