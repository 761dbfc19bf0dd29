// Command leadchat runs the lead capture conversation in a terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/figures-solutions/leadchat/internal/app/bootstrap"
	"github.com/figures-solutions/leadchat/internal/chat"
	appconfig "github.com/figures-solutions/leadchat/internal/config"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	script := flag.String("script", cfg.ChatScript, "conversation script (service_first or contact_first)")
	endpoint := flag.String("endpoint", cfg.ContactEndpointURL, "base URL of a running contact endpoint; empty submits to Airtable directly")
	flag.Parse()

	cfg.ChatScript = *script
	cfg.ContactEndpointURL = strings.TrimRight(*endpoint, "/")

	logger := logging.NewWithOptions(logging.Options{Level: "error", Format: "text", Output: os.Stderr})
	stack := bootstrap.BuildLeadStack(cfg, nil, nil, nil, logger)
	engines, err := bootstrap.BuildEngines(cfg, stack.Chat, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(context.Background(), engines[0], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run reads one visitor message per line until EOF or "quit".
func run(ctx context.Context, engine *chat.Engine, in io.Reader, out io.Writer) error {
	s := engine.NewSession()
	printTurn(out, engine.Start(s))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		turn, err := engine.Handle(ctx, s, line)
		if err != nil {
			return err
		}
		printTurn(out, turn)
	}
}

func printTurn(out io.Writer, turn *chat.Turn) {
	if turn == nil {
		return
	}
	if turn.FieldError != nil {
		fmt.Fprintf(out, "! %s\n", turn.FieldError.Message)
	}
	for _, msg := range turn.Messages {
		if msg.Origin != chat.OriginBot {
			continue
		}
		if msg.IsLink {
			fmt.Fprintf(out, "bot: %s <%s>\n", msg.Text, msg.LinkURL)
			continue
		}
		fmt.Fprintf(out, "bot: %s\n", msg.Text)
	}
}
