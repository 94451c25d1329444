package router

import (
	"strings"

	"cinebot/pkg/tgui"
)

// HelpText renders the command list in Telegram HTML. Owner-only commands
// are listed only for owners.
func (m *Manager) HelpText(owner bool) string {
	lines := []string{"📚 <b>Commands</b>", ""}
	for _, c := range m.Commands() {
		if c.Access == AccessOwnerOnly && !owner {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		line := tgui.Code(usage).String()
		if c.Description != "" {
			line += " - " + tgui.Esc(c.Description).String()
		}
		if c.Access == AccessOwnerOnly {
			line += " 🔒"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Or just send a movie title.")
	return strings.Join(lines, "\n")
}
