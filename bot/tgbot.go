package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"BotFlow/bot/whatsapp/socket"
	"BotFlow/internal/lib/sl"
)

// ConnectionLister reports the WhatsApp connections for the /status command.
type ConnectionLister interface {
	ListConnections() []socket.ConnectionInfo
}

// TgBot sends operator alerts and answers admin commands.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
	connections ConnectionLister
	updater     *ext.Updater
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetConnectionLister(l ConnectionLister) {
	t.connections = l
}

// Start polls for updates and blocks until Stop.
func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.With(sl.Err(err)).Warn("handling update")
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(handlers.NewCommand("status", t.status))

	t.updater = ext.NewUpdater(dispatcher, nil)
	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		_ = t.updater.Stop()
	}
}

func (t *TgBot) status(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveUser.Id != t.adminId {
		return nil
	}
	var list []socket.ConnectionInfo
	if t.connections != nil {
		list = t.connections.ListConnections()
	}
	t.plainResponse(ctx.EffectiveChat.Id, formatConnections(list))
	return nil
}

// SendMessage alerts the admin.
func (t *TgBot) SendMessage(msg string) {
	t.plainResponse(t.adminId, msg)
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text)
	if sanitized == "" {
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err == nil {
		return
	}
	// plain text fallback
	t.log.With(slog.Int64("id", chatId)).Debug("markdown message rejected", sl.Err(err))
	if _, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{}); err != nil {
		t.log.With(slog.Int64("id", chatId)).Debug("sending plain message", sl.Err(err))
	}
}

func formatConnections(list []socket.ConnectionInfo) string {
	if len(list) == 0 {
		return "No WhatsApp connections"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("WhatsApp connections: %d\n", len(list)))
	for _, c := range list {
		sb.WriteString(fmt.Sprintf("%s %s", c.ClientID, c.Status))
		if c.Phone != "" {
			sb.WriteString(" " + c.Phone)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sanitize escapes the MarkdownV2 reserved characters.
func sanitize(input string) string {
	const reserved = "\\`_*[]()~>#+-=|{}.!"
	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reserved, char) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}
