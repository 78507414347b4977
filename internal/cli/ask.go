package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/addanuj/mcp-client/internal/chat"
)

var errTurnFailed = errors.New("turn failed")

func newAskCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one turn and print its events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.quiet()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			app, err := Build(ctx, opts.loadConfig(), opts.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			printer := newEventPrinter(cmd.OutOrStdout(), opts.noColor)
			return runTurn(ctx, app.Orchestrator, printer, sessionID, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: a new session)")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation in one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.quiet()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			app, err := Build(ctx, opts.loadConfig(), opts.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "session %s (%d tools). Type /exit to quit.\n", sessionID, len(app.Orchestrator.Tools()))
			printer := newEventPrinter(cmd.OutOrStdout(), opts.noColor)
			return repl(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), func(message string) error {
				err := runTurn(ctx, app.Orchestrator, printer, sessionID, message)
				if errors.Is(err, errTurnFailed) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (default: a new session)")
	return cmd
}

// runner is the part of the orchestrator the terminal commands use.
type runner interface {
	Run(ctx context.Context, req chat.Request, sink chat.Sink) error
}

func runTurn(ctx context.Context, r runner, printer *eventPrinter, sessionID, message string) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	printer.reset()
	if err := r.Run(ctx, chat.Request{SessionID: sessionID, Message: message}, printer); err != nil {
		var reqErr *chat.RequestError
		if errors.As(err, &reqErr) {
			return reqErr
		}
		if _, failed := printer.Failed(); failed {
			return errTurnFailed
		}
		return err
	}
	if _, failed := printer.Failed(); failed {
		return errTurnFailed
	}
	return nil
}

// repl feeds each non-empty input line to turn until EOF, /exit or ctx ends.
func repl(ctx context.Context, in io.Reader, prompt io.Writer, turn func(message string) error) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(prompt, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := turn(line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var reqErr *chat.RequestError
			if errors.As(err, &reqErr) {
				fmt.Fprintln(prompt, reqErr.Error())
				continue
			}
			return err
		}
	}
}
