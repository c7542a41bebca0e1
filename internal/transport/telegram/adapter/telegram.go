package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (empty means api.telegram.org).
	APIURL string
	// Timeout bounds each Bot API HTTP call.
	Timeout time.Duration
}

// Adapter is a send-only Telegram client. The bot never reads updates,
// so no poller is started.
type Adapter struct {
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{log: log, bot: b}, nil
}

// chatRecipient lets telebot address chats by numeric id or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks Telegram accepts,
// preferring newline boundaries.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Skip tiny chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// SendText delivers text, split into several messages when it is too long.
// The returned ref points at the first message. ctx bounds the whole call:
// telebot has no context support, so a send still in flight when ctx ends
// is abandoned and reported as ctx.Err().
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if strings.TrimSpace(to.ChatID) == "" {
		return kit.MessageRef{}, errors.New("telegram: chat id is empty")
	}

	chat := chatRecipient(strings.TrimSpace(to.ChatID))
	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.send(ctx, chat, chunk, &tele.SendOptions{
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
		a.log.Debug("telegram message sent", logx.Int("chunk", i), logx.Int("message_id", msg.ID))
	}
	return first, nil
}

type sendResult struct {
	msg *tele.Message
	err error
}

func (a *Adapter) send(ctx context.Context, to tele.Recipient, text string, opt *tele.SendOptions) (*tele.Message, error) {
	done := make(chan sendResult, 1)
	go func() {
		msg, err := a.bot.Send(to, text, opt)
		done <- sendResult{msg: msg, err: err}
	}()
	select {
	case <-ctx.Done():
		a.log.Warn("telegram send abandoned", logx.Err(ctx.Err()))
		return nil, ctx.Err()
	case r := <-done:
		return r.msg, r.err
	}
}
