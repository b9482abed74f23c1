package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nidhogg/nuka-commands/internal/command"
	"github.com/nidhogg/nuka-commands/internal/gateway"
	"go.uber.org/zap"
)

// MessageRouter turns prefixed chat messages into command dispatches and
// replies with the outcome on the originating channel.
type MessageRouter struct {
	dispatcher *command.Dispatcher
	gw         *gateway.Gateway
	prefix     string
	logger     *zap.Logger
}

// New creates a new MessageRouter.
func New(dispatcher *command.Dispatcher, gw *gateway.Gateway, prefix string, logger *zap.Logger) *MessageRouter {
	if prefix == "" {
		prefix = "/"
	}
	return &MessageRouter{
		dispatcher: dispatcher,
		gw:         gw,
		prefix:     prefix,
		logger:     logger,
	}
}

// Handle routes an inbound message. It returns once the command has
// finished and every reply has been sent.
// Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()

	name, argv, ok := mr.parse(msg.Content)
	if !ok {
		mr.logger.Debug("ignoring non-command message",
			zap.String("platform", msg.Platform),
			zap.String("channel", msg.ChannelID))
		return
	}
	mr.logger.Info("routing command",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
		zap.String("command", name),
	)

	sender := NewChatSender(ctx, msg, mr.gw, mr.dispatcher, mr.logger)
	res := sender.RunCommand(name, argv).Result()
	if reply := mr.replyFor(res, name, sender.Sent()); reply != "" {
		sender.reply(reply)
	}
}

// parse splits "/name a b" into the command name and its argv.
func (mr *MessageRouter) parse(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, mr.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, mr.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

func (mr *MessageRouter) replyFor(res *command.Result, name string, sent bool) string {
	switch res.Outcome {
	case command.OutcomeSuccess:
		if sent {
			return ""
		}
		return "Done."
	case command.OutcomeFailure:
		return failureMessage(res.Err)
	case command.OutcomeInvalidFlags:
		return res.Err.Error()
	case command.OutcomeUnknownCommand:
		return mr.unknownCommand(name)
	case command.OutcomeCancelled:
		return "Command was cancelled."
	case command.OutcomeException:
		return fmt.Sprintf("An internal error occurred while running %s%s.", mr.prefix, name)
	default:
		if res.Err != nil {
			return "Command could not run: " + res.Err.Error()
		}
		return "Command could not run."
	}
}

func (mr *MessageRouter) unknownCommand(name string) string {
	defs := mr.dispatcher.Registry().Resolve(name)
	if len(defs) == 0 {
		return fmt.Sprintf("Unknown command: %s%s. Try %shelp.", mr.prefix, name, mr.prefix)
	}
	var b strings.Builder
	b.WriteString("Usage:")
	for _, d := range defs {
		b.WriteString("\n  ")
		b.WriteString(d.Usage(mr.prefix))
	}
	return b.String()
}

// failureMessage strips the generic failure marker so only the handler's
// own text reaches the user.
func failureMessage(err error) string {
	if err == nil {
		return "Command failed."
	}
	msg := err.Error()
	if errors.Is(err, command.ErrFailed) {
		msg = strings.TrimPrefix(msg, command.ErrFailed.Error()+": ")
	}
	return msg
}

// ChatSender is the command.Sender for a chat message: replies go back to
// the channel the message came from.
type ChatSender struct {
	ctx        context.Context
	msg        *gateway.InboundMessage
	gw         *gateway.Gateway
	dispatcher *command.Dispatcher
	logger     *zap.Logger
	sent       atomic.Bool
}

// NewChatSender creates a sender bound to msg's channel.
func NewChatSender(ctx context.Context, msg *gateway.InboundMessage, gw *gateway.Gateway, dispatcher *command.Dispatcher, logger *zap.Logger) *ChatSender {
	return &ChatSender{ctx: ctx, msg: msg, gw: gw, dispatcher: dispatcher, logger: logger}
}

// Name returns "platform:user", preferring the display name over the ID.
func (s *ChatSender) Name() string {
	if s.msg.UserName != "" {
		return s.msg.Platform + ":" + s.msg.UserName
	}
	return s.msg.Platform + ":" + s.msg.UserID
}

// SendMessage replies in the channel the message came from.
func (s *ChatSender) SendMessage(text string) error {
	s.sent.Store(true)
	return s.gw.Send(s.ctx, &gateway.OutboundMessage{
		Platform:  s.msg.Platform,
		ChannelID: s.msg.ChannelID,
		Content:   text,
		ReplyTo:   s.msg.ReplyTo,
	})
}

// RunCommand dispatches name on behalf of the chat user.
func (s *ChatSender) RunCommand(name string, args []string) *command.Future {
	return s.dispatcher.Execute(s, name, args)
}

// Sent reports whether anything was sent through this sender.
func (s *ChatSender) Sent() bool { return s.sent.Load() }

func (s *ChatSender) reply(text string) {
	if err := s.SendMessage(text); err != nil {
		s.logger.Error("send reply failed", zap.Error(err))
	}
}
