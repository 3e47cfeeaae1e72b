package repository

import "evconsole/backend/services/console-api/internal/lifecycle"

func nonTerminalStatuses() []string {
	statuses := lifecycle.NonTerminal()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
