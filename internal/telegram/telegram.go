// Package telegram adapts the Telegram Bot API to the bot router.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gastos/internal/bot"
	"gastos/internal/dialog"
)

const (
	pollTimeout = 60 // seconds
	// pollMargin is added to the long-poll wait to bound a getUpdates call.
	pollMargin            = 15 * time.Second
	defaultRequestTimeout = 15 * time.Second
)

// menu is the inline keyboard attached to MarkupMenu replies. Each button
// sends its command back as callback data.
var menu = [][]struct{ label, command string }{
	{{"Nuevo Gasto", "/gasto"}, {"Gasto Rápido", "/rapido"}},
	{{"Ver Resumen", "/resumen"}, {"Cambiar Modo", "/modo"}},
}

type Client struct {
	api *tgbotapi.BotAPI
}

type Options struct {
	// Endpoint overrides the API URL format (see tgbotapi.APIEndpoint).
	Endpoint string
	// RequestTimeout bounds every call except the long poll; defaults to 15s.
	RequestTimeout time.Duration
}

// New authenticates with the token. Every Bot API call runs with a deadline,
// so a stalled API surfaces as an error instead of blocking the caller.
func New(token string, opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	client := &deadlineClient{
		client:      newHTTPClient(),
		timeout:     opts.RequestTimeout,
		pollTimeout: pollTimeout*time.Second + pollMargin,
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, opts.Endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("Authorized on Telegram",
		"username", api.Self.UserName,
		"request_timeout", opts.RequestTimeout)
	return &Client{api: api}, nil
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport}
}

// deadlineClient gives each request its own deadline: getUpdates waits up
// to the long-poll timeout plus a margin, every other method gets timeout.
// The deadline covers reading the body, which the bot library does after Do.
type deadlineClient struct {
	client      tgbotapi.HTTPClient
	timeout     time.Duration
	pollTimeout time.Duration
}

func (c *deadlineClient) Do(req *http.Request) (*http.Response, error) {
	timeout := c.timeout
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		timeout = c.pollTimeout
	}
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Username is the bot's @name without the at sign.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send delivers reply. A Markdown reply Telegram cannot parse is resent as
// plain text.
func (c *Client) Send(ctx context.Context, chatID int64, reply dialog.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(chatID, reply)
	err := c.send(ctx, msg)
	if err != nil && msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		slog.WarnContext(ctx, "Markdown rejected, resending as plain text", "chat_id", chatID, "error", err)
		msg.ParseMode = ""
		err = c.send(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// send returns when the request finishes or ctx is done, whichever comes
// first. An abandoned request still ends at the client deadline.
func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := c.api.Send(msg)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Notify sends a Markdown text without markup.
func (c *Client) Notify(ctx context.Context, chatID int64, text string) error {
	return c.Send(ctx, chatID, dialog.Reply{Text: text, Markdown: true})
}

// Run long-polls for updates and hands them to handle one at a time until
// ctx is done.
func (c *Client) Run(ctx context.Context, handle func(context.Context, bot.Update) error) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	slog.InfoContext(ctx, "Polling Telegram updates", "username", c.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping Telegram polling", "reason", ctx.Err())
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if update.CallbackQuery != nil {
				c.answerCallback(ctx, update.CallbackQuery.ID)
			}
			in, ok := toUpdate(update, c.api.Self.UserName)
			if !ok {
				continue
			}
			if err := handle(ctx, in); err != nil {
				slog.ErrorContext(ctx, "Failed to handle update",
					"chat_id", in.ChatID,
					"update_id", update.UpdateID,
					"error", err)
			}
		}
	}
}

func (c *Client) answerCallback(ctx context.Context, id string) {
	if _, err := c.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		slog.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// toUpdate keeps text messages and callback queries. In groups the bot
// mention is removed from the text.
func toUpdate(u tgbotapi.Update, username string) (bot.Update, bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.Message == nil || q.Message.Chat == nil || q.Data == "" {
			return bot.Update{}, false
		}
		var userID int64
		if q.From != nil {
			userID = q.From.ID
		}
		return bot.Update{ChatID: q.Message.Chat.ID, UserID: userID, Text: q.Data, Callback: true}, true

	case u.Message != nil:
		m := u.Message
		if m.Chat == nil || m.Text == "" {
			return bot.Update{}, false
		}
		text := m.Text
		if username != "" && (m.Chat.IsGroup() || m.Chat.IsSuperGroup()) {
			text = strings.TrimSpace(strings.ReplaceAll(text, "@"+username, ""))
		}
		userID := m.Chat.ID
		if m.From != nil {
			userID = m.From.ID
		}
		return bot.Update{ChatID: m.Chat.ID, UserID: userID, Text: text}, true
	}
	return bot.Update{}, false
}

func buildMessage(chatID int64, reply dialog.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	switch reply.Markup {
	case dialog.MarkupKeyboard:
		msg.ReplyMarkup = replyKeyboard(reply.Keyboard)
	case dialog.MarkupRemove:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	case dialog.MarkupMenu:
		msg.ReplyMarkup = menuKeyboard()
	}
	return msg
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	out := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, len(row))
		for i, label := range row {
			buttons[i] = tgbotapi.NewKeyboardButton(label)
		}
		out = append(out, buttons)
	}
	kb := tgbotapi.NewReplyKeyboard(out...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu))
	for _, row := range menu {
		buttons := make([]tgbotapi.InlineKeyboardButton, len(row))
		for i, b := range row {
			buttons[i] = tgbotapi.NewInlineKeyboardButtonData(b.label, b.command)
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
