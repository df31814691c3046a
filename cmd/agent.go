package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/agent"
	"github.com/bookrag/bookrag/internal/config"
	"github.com/bookrag/bookrag/internal/dependency"
	"github.com/bookrag/bookrag/internal/schema"
	"github.com/bookrag/bookrag/internal/session"
	"github.com/bookrag/bookrag/internal/shared/cmdutils"
)

var (
	agentMessage string
	agentSession string
	agentWindow  int
	agentFilters string
	agentTrace   bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the bookstore assistant",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
	agentCmd.Flags().StringVarP(&agentSession, "session", "s", "cli:direct", "Session ID")
	agentCmd.Flags().IntVarP(&agentWindow, "window", "w", 0, "History turns sent with each query (default agent.historyWindow)")
	agentCmd.Flags().StringVarP(&agentFilters, "filters", "f", "", `Structured filters as JSON, e.g. '{"maxPrice":20000}'`)
	agentCmd.Flags().BoolVar(&agentTrace, "trace", false, "Print the tool calls made for each answer")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// chat holds what one CLI run needs to answer and persist turns.
type chat struct {
	assistant *agent.Assistant
	sessions  *session.Manager
	sess      *session.Session
	window    int
	filters   map[string]any
	out       io.Writer
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filters, err := parseFilters(agentFilters)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	assistant, err := container.Assistant()
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(cfg.SessionDir())
	if err != nil {
		return err
	}

	c := &chat{
		assistant: assistant,
		sessions:  sessions,
		sess:      sessions.GetOrCreate(agentSession),
		window:    historyWindow(cfg),
		filters:   filters,
		out:       os.Stdout,
	}

	if agentMessage != "" {
		tctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
		return c.send(tctx, agentMessage)
	}
	return c.interactive(ctx, os.Stdin)
}

func historyWindow(cfg *config.Config) int {
	if agentWindow > 0 {
		return agentWindow
	}
	return cfg.Agent.HistoryWindow
}

func parseFilters(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var f map[string]any
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("parse --filters: %w", err)
	}
	return f, nil
}

// send answers one query, prints the reply and appends the exchange to the
// session file.
func (c *chat) send(ctx context.Context, query string) error {
	res := c.assistant.Respond(ctx, agent.Request{
		Query:   query,
		History: c.sess.History(c.window),
		Filters: c.filters,
	})
	if agentTrace {
		printTrace(c.out, res.Conversation)
	}
	cmdutils.PrintResponse(c.out, res.Response)

	// Keep failed turns out of the history so a retry starts clean.
	if res.Err != nil {
		return nil
	}
	c.sess.AddExchange(query, res.Response)
	return c.sessions.Save(c.sess)
}

// interactive reads queries from in until EOF, an exit command or ctx is
// cancelled.
func (c *chat) interactive(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "%s Interactive mode, session %s (%d earlier turns). Type 'exit' to quit, '/new' to start over.\n\n",
		logo, c.sess.Key, c.sess.Len())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "You: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\nGoodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch {
		case line == "":
			continue
		case exitCommands[strings.ToLower(line)]:
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		case line == "/new":
			c.sess.Clear()
			if err := c.sessions.Save(c.sess); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "New conversation started.")
			continue
		}

		if err := c.send(ctx, line); err != nil {
			return err
		}
	}
}

func printTrace(w io.Writer, conv schema.Messages) {
	for _, m := range conv.Messages {
		for _, tc := range m.ToolCalls {
			wire, _ := json.Marshal(tc.ToWireMap())
			fmt.Fprintf(w, "  ↳ %s\n", wire)
		}
	}
}
