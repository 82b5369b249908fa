package bot

import (
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/eats"
)

const menuCallbackPrefix = "menu:"

// startSearch validates the input and issues a search in the background.
// The loader message becomes the results message once the response arrives.
func (b *Bot) startSearch(session *UserSession, dish string) {
	if b.searcher == nil {
		session.replyWithError(errors.New("search is not available"))
		return
	}

	req, err := session.search.BeginSearch(dish)
	if err != nil {
		b.countSearch("invalid")
		session._reply(escapeMarkdown(session.search.Err()), false)
		session.search.ClearError()
		return
	}

	// Menu targets and result buttons belong to the previous result set
	session.menuTarget = ""
	log.Info().
		Int64("userId", session.userId).
		Str("requestId", req.ID).
		Uint64("generation", req.Generation).
		Str("dish", req.Dish).
		Str("location", req.Location.String()).
		Msg("searching")

	sent := session.reply(MsgSearching, escapeMarkdown(req.Dish), escapeMarkdown(req.LocationText))
	session.resultsMsgID = sent.MessageID
	session.sendTypingAction()

	ctx := session.ctx
	b.goAsync(func() {
		rs, err := b.searcher.Search(ctx, req.Dish, req.Location)
		session.Send(SessionMessage{
			Type:   msgSearchComplete,
			Ctx:    ctx,
			Search: &SearchOutcome{Request: req, Result: rs, Err: err},
		})
	})
}

func (b *Bot) handleSearchComplete(session *UserSession, outcome *SearchOutcome) {
	if !session.search.CompleteSearch(outcome.Request, outcome.Result, outcome.Err) {
		b.countSearch("stale")
		log.Debug().
			Int64("userId", session.userId).
			Str("requestId", outcome.Request.ID).
			Uint64("generation", outcome.Request.Generation).
			Msg("dropping stale search response")
		return
	}

	switch {
	case outcome.Err != nil:
		b.countSearch("error")
		log.Error().Err(outcome.Err).Int64("userId", session.userId).Str("requestId", outcome.Request.ID).Msg("search failed")
	case outcome.Result == nil || len(outcome.Result.Entries) == 0:
		b.countSearch("empty")
	default:
		b.countSearch("ok")
	}

	b.renderResults(session)
}

// handleMenuCommand handles /menu <rank>.
func (b *Bot) handleMenuCommand(session *UserSession, args []string) {
	if len(args) == 0 {
		session.reply(MsgMenuUsage)
		return
	}

	rs := session.search.Result()
	if rs == nil {
		session.reply(MsgMenuNoResults)
		return
	}

	rank, err := strconv.Atoi(args[0])
	if err != nil || rank < 1 || rank > len(rs.Entries) {
		session.reply(MsgMenuInvalidRank, escapeMarkdown(args[0]))
		return
	}
	b.armMenuTarget(session, rs.Entries[rank-1].ID)
}

// armMenuTarget selects the entry the next photo is analyzed for.
func (b *Bot) armMenuTarget(session *UserSession, entryID string) {
	rs := session.search.Result()
	if rs == nil {
		session.reply(MsgMenuNoResults)
		return
	}
	entry := rs.Entry(entryID)
	if entry == nil {
		session.reply(MsgMenuEntryGone)
		return
	}

	session.menuTarget = entry.ID
	session.reply(MsgSendMenuPhoto, escapeMarkdown(entry.Name))
}

// handlePhotoMessage starts a price update for the armed entry.
// Called from session worker - no locking needed.
func (b *Bot) handlePhotoMessage(session *UserSession, message *tgbotapi.Message) {
	if session.menuTarget == "" {
		session.reply(MsgPhotoWithoutEntry)
		return
	}
	if b.extractor == nil {
		session.replyWithError(errors.New("menu analysis is not available"))
		return
	}

	target := session.menuTarget
	session.menuTarget = ""

	req, err := session.search.BeginPriceUpdate(target)
	if err != nil {
		var valErr *eats.ValidationError
		if errors.As(err, &valErr) {
			session._reply(escapeMarkdown(valErr.Message), false)
			return
		}
		session.replyWithError(err)
		return
	}

	log.Info().
		Int64("userId", session.userId).
		Str("entryId", req.EntryID).
		Str("entry", req.EntryName).
		Msg("analyzing menu photo")
	b.renderResults(session)

	// Largest size is last
	fileID := message.Photo[len(message.Photo)-1].FileID
	ctx := session.ctx
	b.goAsync(func() {
		image, mimeType, err := b.downloader.DownloadTelegramFile(ctx, b.tg.GetFileDirectURL, fileID)
		var price *string
		if err == nil {
			price, err = b.extractor.ExtractPrice(ctx, req.Dish, image, mimeType)
		}
		session.Send(SessionMessage{
			Type:  msgPriceComplete,
			Ctx:   ctx,
			Price: &PriceOutcome{Request: req, Price: price, Err: err},
		})
	})
}

func (b *Bot) handlePriceComplete(session *UserSession, outcome *PriceOutcome) {
	err := outcome.Err
	if err != nil {
		err = &eats.VisionError{EntryID: outcome.Request.EntryID, Err: err}
		log.Error().Err(err).Int64("userId", session.userId).Msg("menu analysis failed")
	}

	if !session.search.CompletePriceUpdate(outcome.Request, outcome.Price, err) {
		b.countPriceUpdate("stale")
		log.Debug().
			Int64("userId", session.userId).
			Str("entryId", outcome.Request.EntryID).
			Msg("dropping stale price update")
		return
	}

	switch {
	case err != nil:
		b.countPriceUpdate("error")
	case outcome.Price == nil:
		b.countPriceUpdate("not_found")
	default:
		b.countPriceUpdate("found")
	}

	b.renderResults(session)

	if err != nil {
		// Shown once on the results message
		session.search.ClearError()
		return
	}
	if outcome.Price == nil {
		session.reply(MsgPriceNotFound, escapeMarkdown(outcome.Request.EntryName))
	}
}

// renderResults shows the session's result view, editing the results
// message in place when there is one.
func (b *Bot) renderResults(session *UserSession) {
	text, rows := formatResults(session.search, b.minRating)

	if session.resultsMsgID == 0 {
		msg := tgbotapi.NewMessage(session.userId, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if len(rows) > 0 {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		}
		sent := session.replyWithMessage(msg)
		session.resultsMsgID = sent.MessageID
		return
	}

	if rows == nil {
		// Clears buttons from the previous render
		rows = [][]tgbotapi.InlineKeyboardButton{}
	}
	edit := tgbotapi.NewEditMessageText(session.userId, session.resultsMsgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	if _, err := b.tg.Request(edit); err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to edit results message")
	}
}

func (b *Bot) countSearch(outcome string) {
	if b.metrics != nil {
		b.metrics.Searches.WithLabelValues(outcome).Inc()
	}
}

func (b *Bot) countPriceUpdate(outcome string) {
	if b.metrics != nil {
		b.metrics.PriceUpdates.WithLabelValues(outcome).Inc()
	}
}
