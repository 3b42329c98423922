package services

import (
	"strings"

	"rag-server/internal/config"
	"rag-server/internal/models"
)

// Placeholder replaced by the merged context in a custom RAG prompt
const contextPlaceholder = "{context}"

// Injector weaves merged context chunks into a chat message sequence
// according to the configured merge policy. The policy is fixed at startup;
// any downgrade for models without a system role already happened in config.
type Injector struct {
	policy    config.MergePolicy
	ragPrompt string
}

// NewInjector creates an injector for the given policy and optional prompt
func NewInjector(policy config.MergePolicy, ragPrompt string) *Injector {
	return &Injector{policy: policy, ragPrompt: ragPrompt}
}

// Inject returns a new message sequence with the context block applied. With
// zero chunks the input is returned untouched.
func (in *Injector) Inject(messages []models.ChatMessage, chunks []models.RetrievedChunk) []models.ChatMessage {
	if len(chunks) == 0 {
		return messages
	}

	block := in.contextBlock(chunks)

	switch in.policy {
	case config.MergePolicySystemMessage:
		return injectSystemMessage(messages, block)
	default:
		return injectLastUserMessage(messages, block)
	}
}

// contextBlock concatenates chunk texts, wrapped in the custom RAG prompt
// when one is configured.
func (in *Injector) contextBlock(chunks []models.RetrievedChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	joined := strings.Join(texts, "\n\n")

	if in.ragPrompt == "" {
		return joined
	}
	if strings.Contains(in.ragPrompt, contextPlaceholder) {
		return strings.ReplaceAll(in.ragPrompt, contextPlaceholder, joined)
	}
	return in.ragPrompt + "\n" + joined
}

// injectSystemMessage replaces the first system message's content wherever
// it sits, or inserts a new leading system message when none exists.
func injectSystemMessage(messages []models.ChatMessage, block string) []models.ChatMessage {
	for i, m := range messages {
		if m.Role == models.RoleSystem {
			out := make([]models.ChatMessage, len(messages))
			copy(out, messages)
			out[i] = models.ChatMessage{Role: models.RoleSystem, Content: block}
			return out
		}
	}

	out := make([]models.ChatMessage, 0, len(messages)+1)
	out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: block})
	out = append(out, messages...)
	return out
}

// injectLastUserMessage appends the context block to the most recent user
// message, leaving all other messages untouched.
func injectLastUserMessage(messages []models.ChatMessage, block string) []models.ChatMessage {
	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)

	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == models.RoleUser {
			out[i].Content = out[i].Content + "\n\n" + block
			return out
		}
	}
	return out
}
