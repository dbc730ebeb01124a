package telegram

import (
	"context"

	"github.com/sandevgo/cnapse/pkg/conv"
	"github.com/sandevgo/cnapse/pkg/log"
	tele "gopkg.in/telebot.v3"
)

type sender struct {
	bot *tele.Bot
}

func newSender(bot *tele.Bot) *sender {
	return &sender{bot: bot}
}

// sendMarkdown converts md to Telegram HTML and sends it in as many messages
// as the size limit requires.
func (s *sender) sendMarkdown(ctx context.Context, to tele.Recipient, md string) error {
	logger := log.FromCtx(ctx)

	for i, chunk := range conv.MarkdownToTelegramChunks(md) {
		if _, err := s.bot.Send(to, chunk, tele.ModeHTML); err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}
