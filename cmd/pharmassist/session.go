package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	callStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// session is one terminal conversation. History lives here and is handed to
// the orchestrator on every turn.
type session struct {
	orch     *orchestrator.Orchestrator
	out      io.Writer
	callerID string
	identity models.Identity
	events   bool
	history  []models.Message
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := scanner.Text()
		if cmd := strings.TrimSpace(line); cmd == "exit" || cmd == "quit" {
			return nil
		}
		s.turn(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// turn streams one answer to out and records the exchange.
func (s *session) turn(ctx context.Context, message string) {
	var answer strings.Builder
	req := orchestrator.Request{
		Message:        message,
		History:        s.history,
		CallerID:       s.callerID,
		Identity:       s.identity,
		EmitToolEvents: s.events,
	}
	for fragment := range s.orch.Respond(ctx, req) {
		if rendered, ok := renderMarker(fragment); ok {
			fmt.Fprintln(s.out, rendered)
			continue
		}
		answer.WriteString(fragment)
		fmt.Fprint(s.out, fragment)
	}
	fmt.Fprintln(s.out)

	s.history = append(s.history,
		models.Message{Role: models.RoleUser, Content: message},
		models.Message{Role: models.RoleAssistant, Content: answer.String()},
	)
}

// renderMarker styles a tool event fragment for the terminal. ok is false
// for answer text.
func renderMarker(fragment string) (string, bool) {
	prefix, body, ok := orchestrator.ParseMarker(fragment)
	if !ok {
		return "", false
	}
	switch prefix {
	case orchestrator.MarkerToolCallStart:
		start := body.(orchestrator.ToolCallStart)
		args, _ := json.Marshal(start.Arguments)
		return callStyle.Render(fmt.Sprintf("  -> %s %s", start.Name, args)), true
	default:
		result := body.(orchestrator.ToolCallResult)
		label := "cached"
		if !result.Cached {
			label = "done"
		}
		if !result.Success {
			msg, _ := result.Result["error"].(string)
			return failStyle.Render(fmt.Sprintf("  <- %s failed: %s", result.Name, msg)), true
		}
		return okStyle.Render(fmt.Sprintf("  <- %s %s", result.Name, label)), true
	}
}
