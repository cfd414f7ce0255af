package pipeline

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/mohammad-safakhou/askweb/tools/corpus"
)

// DocSeparator sits between retrieved chunks in the prompt context.
const DocSeparator = "\n-------------separator--------------\n"

// FormatDocs joins the non-empty chunk texts with DocSeparator.
func FormatDocs(chunks []corpus.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, DocSeparator)
}

// ComposePrompt wraps question with the retrieved context. Without context
// the question is sent as is.
func ComposePrompt(question, context string) string {
	if strings.TrimSpace(context) == "" {
		return question
	}
	return fmt.Sprintf("Using your own knowledge, supported by the documents found by a web search:\n%s\nAnswer the question:\n%s\nCover as much of the documents as you can.", context, question)
}

const condenseInstruction = `You rewrite the user's latest message into a standalone web search query.
Use the conversation only to resolve references such as pronouns or "it".
If the message asks several unrelated things, separate the queries with ";".
Reply with the query only, in the language of the user's message.`

// condenseMessages builds the request that turns question plus history into
// a standalone search query.
func condenseMessages(question string, history []models.Message) []models.Message {
	var b strings.Builder
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return []models.Message{
		{Role: models.RoleSystem, Content: condenseInstruction},
		{Role: models.RoleUser, Content: fmt.Sprintf("Conversation:\n%s\nLatest message: %s", b.String(), question)},
	}
}

// cleanQuery strips the decoration models like to add around a one-line answer.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, "Query:")
	return strings.Trim(strings.TrimSpace(s), "\"'`“”")
}
