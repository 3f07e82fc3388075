package handler

import (
	"context"
	"errors"
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

var errNoURL = errors.New("missing image url")

// Telegram answers "<command> <url>" messages with the shrunk image as a document, and
// "<statsCommand>" with the chat's usage of the day.
type Telegram struct {
	orchestrator port.Orchestrator
	textSender   port.TextSender
	imageSender  port.ImageSender
	usage        port.UsageRecorder
	command      string
	statsCommand string
	budget       time.Duration
}

func NewTelegram(orchestrator port.Orchestrator, textSender port.TextSender, imageSender port.ImageSender,
	usage port.UsageRecorder, command, statsCommand string, budget time.Duration) *Telegram {
	return &Telegram{
		orchestrator: orchestrator,
		textSender:   textSender,
		imageSender:  imageSender,
		usage:        usage,
		command:      command,
		statsCommand: statsCommand,
		budget:       budget,
	}
}

func (t *Telegram) GetCommand() string {
	return t.command
}

func (t *Telegram) GetStatsCommand() string {
	return t.statsCommand
}

// Handle has the signature of bot.HandlerFunc. The response runs in its own goroutine so the
// update loop is never blocked by a slow orchestration.
func (t *Telegram) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	msg := &domain.ChatMessage{
		ID:       update.Message.ID,
		ChatID:   update.Message.Chat.ID,
		Username: getUserNameOrFirstName(update.Message.From),
		Text:     update.Message.Text,
	}

	log.Debug().Str("message", msg.Text).Str("user", msg.Username).Msg("received command")

	go func() {
		if err := t.Respond(context.WithoutCancel(ctx), msg); err != nil {
			log.Err(err).Str("command", t.command).Msg("failed to respond to command")
		}
	}()
}

// HandleStats has the signature of bot.HandlerFunc.
func (t *Telegram) HandleStats(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	msg := &domain.ChatMessage{ID: update.Message.ID, ChatID: update.Message.Chat.ID, Text: update.Message.Text}
	if err := t.RespondStats(ctx, msg); err != nil {
		log.Err(err).Str("command", t.statsCommand).Msg("failed to respond to command")
	}
}

const statsMessage = "Today in this chat: %d images, %d bytes delivered, %d transcoded locally. Resets in %s."

func (t *Telegram) RespondStats(ctx context.Context, msg *domain.ChatMessage) error {
	u, reset := t.usage.Usage(msg.ChatID)

	_, err := t.textSender.SendMessageReply(ctx, msg, fmt.Sprintf(statsMessage,
		u.Images, u.Bytes, u.Local, time.Until(reset).Truncate(time.Minute)))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (t *Telegram) Respond(ctx context.Context, msg *domain.ChatMessage) error {
	arg := parseArgument(msg.Text)
	if arg == "" {
		return t.textSender.NotifyAndReturnError(ctx, fmt.Errorf("%w, usage: %s <url>", errNoURL, t.command), msg)
	}

	target, err := ExtractTarget(arg)
	if err != nil {
		return t.textSender.NotifyAndReturnError(ctx, err, msg)
	}

	actionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.textSender.SendChatAction(actionCtx, msg.ChatID, domain.UploadDocument)

	req := domain.NewRequestContext(target, t.budget, false)
	res := t.orchestrator.Run(ctx, req)
	if res.Exhausted() {
		log.Warn().Str("requestId", req.ID).Err(res.Err()).Msg("no tier produced an image")
		_, err := t.textSender.SendMessageReply(ctx, msg,
			fmt.Sprintf("Could not shrink that image, here is the original: %s", res.RedirectURL))
		return err
	}

	winner := res.Winner
	filename := fmt.Sprintf("%d%s", msg.ID, extension(winner.MIMEType()))

	if err := t.imageSender.SendImageFileReply(ctx, msg, winner.Bytes(), filename); err != nil {
		return t.textSender.NotifyAndReturnError(ctx, err, msg)
	}
	t.usage.Record(msg.ChatID, *winner)

	log.Info().
		Str("requestId", req.ID).
		Str("source", string(winner.Source())).
		Int("bytes", winner.Size()).
		Msg("sent shrunk image")

	return nil
}

// parseArgument drops the command word, including a "@botname" suffix, and returns the rest.
func parseArgument(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}

	return strings.Join(fields[1:], " ")
}

func extension(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}

	return ".img"
}

func getUserNameOrFirstName(user *models.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return "@" + user.Username
	}

	return user.FirstName
}
