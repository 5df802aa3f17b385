package plugins

import (
	"context"
	"strings"

	"meshbot/internal/message"
)

// Ping answers a bare "ping" with "Pong!" — the bot's liveness probe and the
// simplest possible Command (spec.md §8 seed scenarios 1 and 2).
type Ping struct {
	Base
}

func NewPing() *Ping {
	p := &Ping{}
	p.Base = Base{
		CmdName:             "ping",
		CmdKeywords:         []string{"ping"},
		CmdCategory:         "utility",
		CmdDescription:      "Replies Pong! to check the bot is alive and reachable.",
		CmdShortDescription: "ping - liveness check",
		CmdUsage:            "ping",
	}
	return p
}

func (p *Ping) ShouldExecute(msg message.MeshMessage) bool {
	return strings.EqualFold(strings.TrimSpace(msg.Content), "ping")
}

func (p *Ping) Execute(context.Context, message.MeshMessage) (bool, error) {
	return true, nil
}

func (p *Ping) ResponseFormat(message.MeshMessage) (string, bool) {
	return "Pong!", true
}

func (p *Ping) HelpText(*message.MeshMessage) string {
	return "ping - replies Pong! to check the bot is alive."
}
