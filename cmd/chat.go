package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/askdb/internal/adapters/diagnostics"
	"github.com/bnema/askdb/internal/application"
	"github.com/bnema/askdb/internal/logger"
	"github.com/spf13/cobra"
)

const (
	thinkingLabel  = "Thinking..."
	maxInputLine   = 1 << 20
	exitCommand    = "/exit"
	quitCommand    = "/quit"
	sessionCommand = "/session"
)

func newChatCmd(state *cliState) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			app.startBackground(ctx)

			session, err := app.orchestrator.Session(ctx, sessionID)
			if err != nil {
				return err
			}
			defer app.orchestrator.CloseSession(session.ID())

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "askdb chat (session %s). Type %s to quit.\n", session.ID(), exitCommand)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
			for {
				_, _ = fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}

				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case exitCommand, quitCommand:
					return nil
				case sessionCommand:
					_, _ = fmt.Fprintln(out, session.ID())
					continue
				}

				answer, err := sendWithSpinner(ctx, cmd, session, line)
				if err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					continue
				}
				_, _ = fmt.Fprintln(out, answer.Content)
			}

			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume the session with this id")
	return cmd
}

func newAskCmd(state *cliState) *cobra.Command {
	var (
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			session, err := app.orchestrator.Session(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			defer app.orchestrator.CloseSession(session.ID())

			answer, err := sendWithSpinner(cmd.Context(), cmd, session, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"session":    session.ID(),
					"answer":     answer.Content,
					"rounds":     answer.Rounds,
					"tool_calls": answer.ToolCalls,
				})
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer.Content)
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue the session with this id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func sendWithSpinner(ctx context.Context, cmd *cobra.Command, session *application.Session, text string) (application.Answer, error) {
	var answer application.Answer
	err := runWithSpinner(ctx, cmd.ErrOrStderr(), thinkingLabel, func(ctx context.Context) error {
		var sendErr error
		answer, sendErr = session.Send(ctx, text)
		return sendErr
	})
	if err != nil {
		return application.Answer{}, err
	}
	return answer, nil
}

// startBackground runs the memory janitor and, when configured, the
// diagnostics server until ctx is done.
func (a *app) startBackground(ctx context.Context) {
	if a.cfg.Memory.SweepInterval > 0 {
		go a.cache.RunJanitor(ctx, a.cfg.Memory.SweepInterval)
	}

	if a.cfg.Diagnostics.Addr == "" {
		return
	}
	server := diagnostics.NewServer(a.cfg.Diagnostics.Addr, a.registry, a.backend.Ping, logger.Component(a.logger, "diagnostics"))
	go func() {
		if err := server.Run(ctx); err != nil {
			a.logger.Error().Err(err).Msg("diagnostics server stopped")
		}
	}()
}
