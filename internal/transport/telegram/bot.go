package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/sandevgo/cnapse/internal/service/ui"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/srv"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// TurnRunner runs one conversation turn, waiting for any turn in progress.
type TurnRunner interface {
	Run(ctx context.Context, input string, opts agent.Options) (agent.TurnResult, error)
}

type Bot struct {
	bot      *tele.Bot
	sender   *sender
	turns    TurnRunner
	commands core.CmdRouter
	ownerID  int64
}

var _ srv.Service = (*Bot)(nil)

func NewBot(
	ctx context.Context,
	cfg core.TelegramConfig,
	turns TurnRunner,
	commands core.CmdRouter,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.GetTelegramToken(),
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram handler failed")
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		sender:   newSender(b),
		turns:    turns,
		commands: commands,
		ownerID:  cfg.GetTelegramOwnerID(),
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Use(ownerOnly(bot.ownerID))

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

// ownerOnly drops updates from anyone but the owner.
func ownerOnly(ownerID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != ownerID {
				return nil
			}
			return next(c)
		}
	}
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	_ = c.Notify(tele.Typing)
	reply := b.respond(ctx, c.Text())

	return b.sender.sendMarkdown(ctx, c.Recipient(), reply)
}

// respond turns an incoming text into the Markdown reply for the owner.
func (b *Bot) respond(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "/start" {
		text = "/help"
	}

	if out, ok := b.commands.Execute(ctx, text); ok {
		return out
	}

	res, err := b.turns.Run(ctx, text, agent.Options{})
	if err != nil {
		if core.KindOf(err) == core.Cancelled {
			return "_cancelled_"
		}
		log.FromCtx(ctx).Error().Err(err).Msg("turn failed")
		return fmt.Sprintf("❌ **Error**: %v", err)
	}

	var sb strings.Builder
	if err := ui.RenderTurn(&sb, res, ui.FormatMarkdown); err != nil {
		return res.Reply
	}
	return sb.String()
}
