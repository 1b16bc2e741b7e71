package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cyclopcam/logs"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "chip-counter/internal/application"
	"chip-counter/internal/domain/entity"
)

// maxDownloadBytes bounds a photo download from Telegram.
const maxDownloadBytes = 20 << 20

// Bot is the Telegram front end of the chip counter.
type Bot struct {
	api     *tgbotapi.BotAPI
	log     logs.Log
	users   *app.UserService
	counter *app.CountingService
	http    *http.Client

	// fileURL turns a Telegram file path into a download URL
	fileURL func(filePath string) string
}

// NewBot logs in to Telegram with token.
func NewBot(log logs.Log, token string, users *app.UserService, counter *app.CountingService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(log, api, users, counter), nil
}

func newBot(log logs.Log, api *tgbotapi.BotAPI, users *app.UserService, counter *app.CountingService) *Bot {
	log.Infof("Authorized on account %s", api.Self.UserName)
	return &Bot{
		api:     api,
		log:     log,
		users:   users,
		counter: counter,
		http:    http.DefaultClient,
		fileURL: func(filePath string) string {
			return fmt.Sprintf(tgbotapi.FileEndpoint, api.Token, filePath)
		},
	}
}

// Run processes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Errorf("Error getting user: %v", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if len(msg.Photo) > 0 {
		// the last size is the largest
		b.handleImage(ctx, msg, msg.Photo[len(msg.Photo)-1].FileID)
		return
	}

	// photos sent "as file" arrive uncompressed
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		b.handleImage(ctx, msg, msg.Document.FileID)
		return
	}

	if user.State == entity.StateAwaitingPhoto {
		b.sendMessage(msg.Chat.ID, msgSendPhoto)
		return
	}
	b.sendMessage(msg.Chat.ID, msgIdleHint)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
			b.log.Errorf("Error saving user %v: %v", user.ID, err)
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "count":
		if _, err := b.users.BeginCount(ctx, user.ID, user.ChatID); err != nil {
			b.log.Errorf("Error saving user %v: %v", user.ID, err)
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
			b.log.Errorf("Error saving user %v: %v", user.ID, err)
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "stats":
		b.sendMessage(msg.Chat.ID, statsText(user, b.counter.Stats()))

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleImage counts the chips in a photo and answers with the annotated picture.
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	if _, err := b.users.SetState(ctx, userID, chatID, entity.StateCounting); err != nil {
		b.log.Errorf("Error saving user %v: %v", userID, err)
	}
	b.sendMessage(chatID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Errorf("Error downloading photo: %v", err)
		b.fail(ctx, userID, chatID, msgProcessingError)
		return
	}

	out, err := b.counter.Count(ctx, app.CountRequest{Image: imageData, Source: "telegram", Annotate: true})
	if err != nil {
		if errors.Is(err, entity.ErrDecodeFailed) {
			b.fail(ctx, userID, chatID, msgDecodeError)
		} else {
			b.log.Errorf("Counting photo from user %v failed: %v", userID, err)
			b.fail(ctx, userID, chatID, msgProcessingError)
		}
		return
	}

	if _, err := b.users.FinishCount(ctx, userID, chatID, out.Result.TotalCount); err != nil {
		b.log.Errorf("Error saving user %v: %v", userID, err)
	}

	text := caption(out)
	if len(out.Annotated) == 0 {
		b.sendMessage(chatID, text)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chips.jpg", Bytes: out.Annotated})
	photo.Caption = text
	if _, err := b.api.Send(photo); err != nil {
		b.log.Errorf("Error sending photo: %v", err)
		b.sendMessage(chatID, text)
	}
}

func (b *Bot) fail(ctx context.Context, userID, chatID int64, text string) {
	b.sendMessage(chatID, text)
	if _, err := b.users.SetState(ctx, userID, chatID, entity.StateIdle); err != nil {
		b.log.Errorf("Error saving user %v: %v", userID, err)
	}
}

// downloadFile fetches a file from Telegram.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.fileURL(file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorf("Error sending message: %v", err)
	}
}
