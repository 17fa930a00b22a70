package llm

import (
	"fmt"
	"time"
)

// Enricher rewrites a copy of the outbound history before it is handed to
// the provider. Persisted messages are never touched; enrichment applies
// to the request only.
type Enricher func(history []Message) []Message

// ChainEnrichers applies enrichers left to right.
func ChainEnrichers(enrichers ...Enricher) Enricher {
	return func(history []Message) []Message {
		for _, e := range enrichers {
			history = e(history)
		}
		return history
	}
}

// TimestampEnricher appends the current time to the leading system turn so
// the model can reason about "today" without the stored prompt changing.
func TimestampEnricher(now func() time.Time) Enricher {
	return func(history []Message) []Message {
		if len(history) == 0 || history[0].Role != "system" {
			return history
		}
		out := make([]Message, len(history))
		copy(out, history)
		out[0].Content = fmt.Sprintf("%s\n\nCurrent date and time: %s",
			out[0].Content, now().Format("Monday, 2 January 2006, 15:04 MST"))
		return out
	}
}
