package booking

import (
	"fmt"

	"github.com/docchat/docchat/internal/llm"
)

const extractionPrompt = `Extract name, email, date, time from this booking request.
Return ONLY JSON: {"name": "...", "email": "...", "date": "YYYY-MM-DD", "time": "HH:MM"}
If missing, use null.
Request: %s`

// BuildPrompt constructs the single-turn extraction prompt for a user query.
func BuildPrompt(query string) []llm.Message {
	return []llm.Message{
		{Role: "user", Content: fmt.Sprintf(extractionPrompt, query)},
	}
}
