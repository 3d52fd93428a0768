package pipeline

import "fmt"

const systemPromptTemplate = `You are a helpful assistant.

Rules:
- Use BOTH the previous chat context and the search results.
- If the answer is not in the context or search results, say "I don't know".
- Be concise and accurate.
- Cite sources using filenames when possible.

Previous Chat Context:
%s

Search Results:
%s`

// BuildSystemPrompt embeds the truncated conversation history and the
// retrieved context into the answering instructions.
func BuildSystemPrompt(chatContext, searchResults string) string {
	return fmt.Sprintf(systemPromptTemplate, chatContext, searchResults)
}
