package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/esg-research/internal/chat"
	"github.com/sells-group/esg-research/internal/config"
)

const (
	chatPrompt     = "> "
	maxChatLineLen = 64 * 1024
)

// chatHandler answers one chat turn.
type chatHandler interface {
	Handle(ctx context.Context, sess *chat.Session, text string) ([]chat.Message, error)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive research conversation",
	Long:  "Reads messages from stdin and answers them until exit, quit or end of input.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, config.ModeChat)
		if err != nil {
			return err
		}
		defer env.Close()

		return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), env.Chat, chat.NewSession())
	},
}

// runREPL prints the session greeting, then answers each input line until
// exit, quit, end of input or ctx cancellation. Turn errors are printed and
// the loop continues.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, h chatHandler, sess *chat.Session) error {
	for _, m := range sess.Messages() {
		printMessage(out, m)
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxChatLineLen)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(out, chatPrompt) //nolint:errcheck
		if !sc.Scan() {
			fmt.Fprintln(out) //nolint:errcheck
			return eris.Wrap(sc.Err(), "chat: read input")
		}

		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye! 👋") //nolint:errcheck
			return nil
		}

		replies, err := h.Handle(ctx, sess, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n\n", err) //nolint:errcheck
			continue
		}
		for _, m := range replies {
			printMessage(out, m)
		}
	}
}

func printMessage(w io.Writer, m chat.Message) {
	fmt.Fprintf(w, "%s\n\n", m.Content) //nolint:errcheck
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
