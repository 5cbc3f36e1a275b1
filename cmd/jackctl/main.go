// Command jackctl is the operator CLI for the jackbot API: it reads and
// replaces the bot status and tails stored chat messages.
//
// Usage:
//
//	jackctl [--api-url URL] status
//	jackctl [--api-url URL] set-status [--channels a,b] [--mode MODE] [--control-target HOST:PORT]
//	jackctl [--api-url URL] messages [--seconds N] [--channel NAME]... [--no-dedup] [--json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/onnwee/jackbot/apiclient"
	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/config"
)

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := pflag.NewFlagSet("jackctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	apiURL := global.String("api-url", envOr("API_URL", config.DefaultAPIURL), "jackbot API base URL")
	adminToken := global.String("admin-token", os.Getenv("ADMIN_TOKEN"), "token sent as X-Admin-Token on writes")
	timeout := global.Duration("timeout", 10*time.Second, "request timeout")
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return errors.New("missing command: status, set-status or messages")
	}

	client := apiclient.New(*apiURL, *timeout)
	client.AdminToken = *adminToken

	switch rest[0] {
	case "status":
		return cmdStatus(ctx, client, out)
	case "set-status":
		return cmdSetStatus(ctx, client, rest[1:], out)
	case "messages":
		return cmdMessages(ctx, client, rest[1:], out)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func cmdStatus(ctx context.Context, c *apiclient.Client, out io.Writer) error {
	s, err := c.Status(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// cmdSetStatus replaces the status, starting from the current one so that
// only flags given on the command line change.
func cmdSetStatus(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("set-status", pflag.ContinueOnError)
	channels := fs.StringSlice("channels", nil, "channels to watch (comma separated; empty clears)")
	mode := fs.String("mode", "", "bot mode")
	target := fs.String("control-target", "", "control bridge target host:port (empty disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	next, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}
	if fs.Changed("channels") {
		next.Channels = next.Channels[:0]
		for _, ch := range *channels {
			if ch = strings.ToLower(strings.TrimSpace(ch)); ch != "" {
				next.Channels = append(next.Channels, ch)
			}
		}
	}
	if fs.Changed("mode") {
		next.Mode = *mode
	}
	if fs.Changed("control-target") {
		next.ControlTarget = *target
	}
	if err := c.SetStatus(ctx, next); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "status updated: channels=%s mode=%s control_target=%s\n",
		strings.Join(next.Channels, ","), next.Mode, next.ControlTarget)
	return err
}

func cmdMessages(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("messages", pflag.ContinueOnError)
	seconds := fs.Int("seconds", 0, "only messages received in the last N seconds (0 for all)")
	channels := fs.StringArray("channel", nil, "restrict to a channel (repeatable)")
	noDedup := fs.Bool("no-dedup", false, "keep repeated messages")
	asJSON := fs.Bool("json", false, "print JSON instead of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seconds < 0 {
		return errors.New("--seconds must not be negative")
	}

	msgs, err := c.Messages(ctx, *seconds, *channels)
	if err != nil {
		return err
	}
	if !*noDedup {
		msgs = chat.Dedup(msgs)
	}
	if *asJSON {
		return json.NewEncoder(out).Encode(msgs)
	}
	for _, m := range msgs {
		marker := ""
		if m.IsCommand {
			marker = " [" + m.CommandType + "]"
		}
		if _, err := fmt.Fprintf(out, "%s #%s %s%s: %s\n",
			m.ReceiptTime.Format(time.RFC3339), m.Channel, m.AuthorName, marker, m.Text); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
