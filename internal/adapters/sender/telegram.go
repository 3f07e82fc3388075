package sender

import (
	"bytes"
	"context"
	"fmt"
	"pixrelay/internal/core/domain"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const (
	TelegramMessageLimit = 4096
	ChatActionRepeat     = 5 * time.Second
)

// TelegramBot is the part of *bot.Bot the sender uses.
type TelegramBot interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

type Telegram struct {
	bot            TelegramBot
	actionInterval time.Duration
}

func NewTelegram(bot TelegramBot) *Telegram {
	return &Telegram{bot: bot, actionInterval: ChatActionRepeat}
}

// SendMessageReply splits text into chunks Telegram accepts and returns the ID of the last one sent.
func (s *Telegram) SendMessageReply(ctx context.Context, message *domain.ChatMessage, text string) (int, error) {
	var lastID int

	for _, chunk := range chunk(text, TelegramMessageLimit) {
		msg, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.ChatID,
			Text:   chunk,
			ReplyParameters: &models.ReplyParameters{
				MessageID: message.ID,
				ChatID:    message.ChatID,
			},
		})
		if err != nil {
			log.Error().Err(err).Int64("chatID", message.ChatID).Msg("failed to send message")
			return lastID, err
		}
		lastID = msg.ID
	}

	return lastID, nil
}

func chunk(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}

	return chunks
}

// SendImageFileReply uploads the image as a document so Telegram does not recompress it.
func (s *Telegram) SendImageFileReply(ctx context.Context, message *domain.ChatMessage, file []byte,
	filename string) error {
	params := &bot.SendDocumentParams{
		ChatID:   message.ChatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(file)},
		ReplyParameters: &models.ReplyParameters{
			MessageID: message.ID,
			ChatID:    message.ChatID,
		},
	}

	_, err := s.bot.SendDocument(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("failed to send document response")
		return err
	}

	return nil
}

func (s *Telegram) NotifyAndReturnError(ctx context.Context, err error, message *domain.ChatMessage) error {
	if _, sendErr := s.SendMessageReply(ctx, message, fmt.Sprintf("Error: %v", err)); sendErr != nil {
		return fmt.Errorf("%w (notification failed: %w)", err, sendErr)
	}

	return err
}

// SendChatAction repeats action until ctx is done, since Telegram clears it after a few seconds.
func (s *Telegram) SendChatAction(ctx context.Context, chatID int64, action domain.Action) {
	log.Debug().Int64("chatID", chatID).Msg("starting action routine")

	chatAction := models.ChatActionTyping
	if action == domain.UploadDocument {
		chatAction = models.ChatActionUploadDocument
	}

	ticker := time.NewTicker(s.actionInterval)
	defer ticker.Stop()

	for {
		_, err := s.bot.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: chatAction,
		})
		if err != nil {
			log.Err(err).Msg("error sending chat action")
			return
		}

		select {
		case <-ctx.Done():
			log.Debug().Int64("chatID", chatID).Msg("done, stopping action routine")
			return
		case <-ticker.C:
		}
	}
}
