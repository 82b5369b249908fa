package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/eats"
	"github.com/raine/cheapeats-bot/internal/location"
	"github.com/raine/cheapeats-bot/internal/observability"
	"github.com/raine/cheapeats-bot/internal/storage"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options tunes search behavior.
type Options struct {
	MinRating       float64
	LocationTimeout time.Duration
	Metrics         *observability.Metrics
	Clock           clockwork.Clock
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg        BotAPI
	state     BotState
	store     storage.Store
	searcher  eats.Searcher
	extractor eats.PriceExtractor
	adminID   int64

	minRating       float64
	locationTimeout time.Duration
	metrics         *observability.Metrics
	clock           clockwork.Clock
	downloader      *ImageDownloader

	// goAsync runs provider calls off the session worker.
	goAsync func(func())
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.Store, adminID int64, opts Options) *Bot {
	if opts.MinRating <= 0 {
		opts.MinRating = 4.3
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = location.DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	bot := &Bot{
		tg:              tg,
		store:           store,
		adminID:         adminID,
		minRating:       opts.MinRating,
		locationTimeout: opts.LocationTimeout,
		metrics:         opts.Metrics,
		clock:           opts.Clock,
		downloader:      NewImageDownloader(),
		goAsync:         func(f func()) { go f() },
	}
	bot.state = bot.NewBotState()

	return bot
}

// SetProviders sets the restaurant search and menu price providers.
func (b *Bot) SetProviders(searcher eats.Searcher, extractor eats.PriceExtractor) {
	b.searcher = searcher
	b.extractor = extractor
}

// Shutdown stops all session workers, cancelling in-flight provider calls.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	// Determine user ID from the update
	if update.CallbackQuery != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("userId", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session := b.state.getUserSession(userId)

	// Helper to send sync or async based on flag
	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	// Dispatch to session worker based on update type
	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          msgCallback,
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	message := update.Message
	log.Info().Int64("userId", userId).Str("text", message.Text).Msg("got message")

	switch {
	case len(message.Photo) > 0:
		send(SessionMessage{Type: msgPhoto, Ctx: ctx, Message: message})
	case message.Location != nil:
		send(SessionMessage{Type: msgLocation, Ctx: ctx, Message: message})
	default:
		send(SessionMessage{Type: msgText, Ctx: ctx, Message: message})
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
// No mutex locking is needed here since only one goroutine accesses session state.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case msgCallback:
		b.handleCallbackQuery(session, msg.CallbackQuery)
	case msgPhoto:
		b.handlePhotoMessage(session, msg.Message)
	case msgLocation:
		b.handleLocationMessage(session, msg.Message)
	case msgText:
		b.handleTextMessage(session, msg.Message)
	case msgSearchComplete:
		b.handleSearchComplete(session, msg.Search)
	case msgPriceComplete:
		b.handlePriceComplete(session, msg.Price)
	case msgLocateComplete:
		b.handleLocateComplete(session, msg.Locate)
	}
}

// handleTextMessage processes text messages.
// Called from session worker - no locking needed.
func (b *Bot) handleTextMessage(session *UserSession, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(session, text)
		return
	}

	if strings.EqualFold(text, BtnSkipLocation) {
		if session.locate != nil {
			session.locate.offer(locateResult{err: &eats.DetectionError{
				Reason: "User denied Geolocation",
				Code:   eats.DetectionDenied,
			}})
		}
		return
	}

	dish, place := parseDishInput(text)
	if place != "" {
		b.setLocation(session, place)
		if dish == "" {
			session.replyAndRemoveCustomKeyboard(MsgLocationSet, escapeMarkdown(place))
			return
		}
	}
	b.ensureStarted(session)
	b.startSearch(session, dish)
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(session *UserSession, text string) {
	command, args := parseCommand(text)
	argsStr := strings.Join(args, " ")
	switch command {
	case "/start":
		session.reply(MsgIdle)
		b.startDetection(session)
	case "/locate":
		b.startDetection(session)
	case "/location":
		if argsStr == "" {
			b.showLocation(session)
			return
		}
		b.setLocation(session, argsStr)
		session.replyAndRemoveCustomKeyboard(MsgLocationSet, escapeMarkdown(argsStr))
	case "/menu":
		b.handleMenuCommand(session, args)
	case "/admin":
		b.handleAdminCommand(session, argsStr)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgHelp)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.tg.Request(callback); err != nil {
		log.Debug().Err(err).Msg("failed to answer callback")
	}

	if entryID, ok := strings.CutPrefix(query.Data, menuCallbackPrefix); ok {
		b.armMenuTarget(session, entryID)
	}
}

func (b *Bot) showLocation(session *UserSession) {
	current := session.search.LocationText()
	if current == "" {
		session.reply(MsgLocationNotSet)
		return
	}
	session.reply(MsgLocationCurrent, escapeMarkdown(current))
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, args string) {
	// Defense in depth: verify caller is admin even though whitelist check passed
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	parts := strings.Fields(args)
	if len(parts) == 0 {
		session.reply(MsgAdminUsage)
		return
	}

	switch parts[0] {
	case "users":
		if len(parts) < 2 {
			session.reply(MsgAdminUsage)
			return
		}
		b.handleAdminUsersCommand(session, parts[1], parts[2:])
	default:
		session.reply(MsgAdminUsage)
	}
}

// handleAdminUsersCommand handles /admin users subcommands.
func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf("• `%d` (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}
