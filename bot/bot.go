// Package bot runs the Twitch chat bot: it forwards chat to the API, answers
// a few prefixed commands and keeps its channel membership in line with the
// bot status held by the API.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/jackbot/chat"
)

// CommandPrefix marks a chat message as a bot command.
const CommandPrefix = "?"

// Command types forwarded to the API.
const (
	CommandGreeting = "greeting"
	CommandTalk     = "talk"
	CommandDonate   = "donate"
)

// MessageSink receives chat events forwarded by the bot.
type MessageSink interface {
	PostMessage(ctx context.Context, ev chat.Event) (time.Time, error)
}

// Sayer posts a message into a channel. *twitch.Client satisfies it.
type Sayer interface {
	Say(channel, text string)
}

// Bot handles chat messages from the IRC client.
type Bot struct {
	username       string
	client         *twitch.Client
	say            Sayer
	sink           MessageSink
	forwardTimeout time.Duration
}

// New returns a Bot logged in as username. The client is created but not
// connected until Run.
func New(username, oauthToken string, sink MessageSink) *Bot {
	client := twitch.NewClient(username, oauthToken)
	b := &Bot{
		username:       strings.ToLower(username),
		client:         client,
		say:            client,
		sink:           sink,
		forwardTimeout: 5 * time.Second,
	}
	client.OnPrivateMessage(b.HandleMessage)
	client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("nick", username), slog.String("component", "bot"))
	})
	return b
}

// Client exposes the underlying IRC client for channel membership.
func (b *Bot) Client() *twitch.Client { return b.client }

// Run joins channels and blocks on the IRC connection until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, channels []string) error {
	if len(channels) > 0 {
		b.client.Join(channels...)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.client.Disconnect()
		case <-done:
		}
	}()
	if ctx.Err() != nil {
		return nil
	}
	err := b.client.Connect()
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		return nil
	}
	return err
}

// Command is a parsed chat command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a prefixed message into its name and arguments.
// ok is false for ordinary chat. A bare prefix is a command with no name.
func ParseCommand(text string) (cmd Command, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(text), CommandPrefix)
	if !found {
		return Command{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Command{}, true
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// Donation is the payload of a donate command.
type Donation struct {
	Amount float64
	Token  string
}

// ParseDonation reads "<amount> <token>" arguments.
func ParseDonation(args []string) (Donation, error) {
	if len(args) < 2 {
		return Donation{}, errors.New("donate needs an amount and a token name")
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return Donation{}, err
	}
	if amount <= 0 {
		return Donation{}, errors.New("donation amount must be positive")
	}
	return Donation{Amount: amount, Token: args[1]}, nil
}

// HandleMessage processes one chat message. Messages sent by the bot itself
// are ignored. Unknown commands are dropped.
func (b *Bot) HandleMessage(msg twitch.PrivateMessage) {
	if strings.EqualFold(msg.User.Name, b.username) {
		return
	}
	logger := slog.With(slog.String("channel", msg.Channel), slog.String("author", msg.User.Name), slog.String("component", "bot"))
	logger.Debug("chat message", slog.String("text", msg.Message))

	cmd, isCmd := ParseCommand(msg.Message)
	if !isCmd {
		b.forward(msg, "")
		return
	}
	switch cmd.Name {
	case "hello":
		logger.Info("hello command")
		b.say.Say(msg.Channel, "Hello "+msg.User.Name+"!")
		b.forward(msg, CommandGreeting)
	case "talk":
		b.forward(msg, CommandTalk)
	case "donate":
		d, err := ParseDonation(cmd.Args)
		if err != nil {
			logger.Warn("invalid donate command", slog.Any("err", err), slog.String("text", msg.Message))
			return
		}
		logger.Info("donation", slog.Float64("amount", d.Amount), slog.String("token", d.Token))
		b.forward(msg, CommandDonate)
	default:
		logger.Debug("unknown command", slog.String("command", cmd.Name))
	}
}

// EventFromMessage converts an IRC message to a chat event.
func EventFromMessage(msg twitch.PrivateMessage, commandType string) chat.Event {
	return chat.Event{
		Channel:     strings.ToLower(msg.Channel),
		AuthorName:  msg.User.Name,
		AuthorID:    msg.User.ID,
		Text:        msg.Message,
		IsCommand:   commandType != "",
		CommandType: commandType,
		SourceTime:  msg.Time,
	}
}

func (b *Bot) forward(msg twitch.PrivateMessage, commandType string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.forwardTimeout)
	defer cancel()
	if _, err := b.sink.PostMessage(ctx, EventFromMessage(msg, commandType)); err != nil {
		slog.Warn("failed sending message to api", slog.Any("err", err),
			slog.String("channel", msg.Channel), slog.String("command_type", commandType), slog.String("component", "bot"))
	}
}
