package application

import (
	"fmt"
	"strings"
	"time"
)

// PromptBuilder produces the system message sent at the start of every model
// round. It is never stored in the transcript.
type PromptBuilder interface {
	SystemPrompt(now time.Time, registry *Registry) string
}

type DefaultPrompt struct {
	Preamble string
}

const defaultPreamble = `You are askdb, an assistant that answers questions about the user's local record store.
Use the tools to look things up instead of guessing. Prefer read tools; only call a write tool when the user asked for a change.
Some tools return a memory_id instead of data. Pass that id to other tools rather than asking for the data again.
When you have enough information, answer in plain text without calling more tools.`

func (p DefaultPrompt) SystemPrompt(now time.Time, registry *Registry) string {
	preamble := p.Preamble
	if strings.TrimSpace(preamble) == "" {
		preamble = defaultPreamble
	}

	var b strings.Builder
	b.WriteString(preamble)
	fmt.Fprintf(&b, "\n\nCurrent time: %s.", now.UTC().Format(time.RFC3339))

	if registry != nil {
		var writes []string
		for _, name := range registry.Names() {
			if tool, _ := registry.Lookup(name); tool.Write {
				writes = append(writes, name)
			}
		}
		if len(writes) > 0 {
			fmt.Fprintf(&b, "\nThese tools change data and take a backup first: %s.", strings.Join(writes, ", "))
		}
	}
	return b.String()
}
