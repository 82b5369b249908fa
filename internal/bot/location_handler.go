package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/eats"
	"github.com/raine/cheapeats-bot/internal/location"
)

type locateResult struct {
	coords eats.Coordinates
	err    error
}

// pendingLocate is a detection attempt waiting for the user to share their
// location or skip. It is the location.Detector for that attempt.
type pendingLocate struct {
	attempt uint64
	shared  chan locateResult
	cancel  context.CancelFunc
}

func (p *pendingLocate) Detect(ctx context.Context) (eats.Coordinates, error) {
	select {
	case r := <-p.shared:
		return r.coords, r.err
	case <-ctx.Done():
		return eats.Coordinates{}, ctx.Err()
	}
}

// offer hands the user's answer to the waiting detector. Only the first
// answer counts.
func (p *pendingLocate) offer(r locateResult) {
	select {
	case p.shared <- r:
	default:
	}
}

// ensureStarted prepares a session on first use: a remembered location is
// restored, otherwise a detection attempt is started.
func (b *Bot) ensureStarted(session *UserSession) {
	if session.started {
		return
	}
	session.started = true

	if last := b.lastLocation(session.userId); last != "" {
		session.search.SetLocationText(last)
		log.Info().Int64("userId", session.userId).Str("location", last).Msg("restored last location")
		return
	}
	b.startDetection(session)
}

// startDetection begins a new one-shot detection attempt, abandoning any
// pending one. The user is asked to share their location; the resolver's
// timeout fails the attempt if they do not answer.
func (b *Bot) startDetection(session *UserSession) {
	b.cancelLocate(session)
	session.started = true

	attempt := session.search.BeginDetection()
	ctx, cancel := context.WithCancel(session.ctx)
	pending := &pendingLocate{
		attempt: attempt,
		shared:  make(chan locateResult, 1),
		cancel:  cancel,
	}
	session.locate = pending

	resolver := location.NewResolver(pending, b.locationTimeout).WithClock(b.clock)
	go func() {
		defer cancel()
		coords, err := resolver.Detect(ctx)
		outcome := &LocateOutcome{Attempt: attempt, Err: err}
		if err == nil {
			outcome.Coords = &coords
		}
		session.Send(SessionMessage{Type: msgLocateComplete, Ctx: session.ctx, Locate: outcome})
	}()

	log.Info().Int64("userId", session.userId).Uint64("attempt", attempt).Msg("location detection started")

	msg := tgbotapi.NewMessage(session.userId, MsgShareLocation)
	msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonLocation(BtnShareLocation),
			tgbotapi.NewKeyboardButton(BtnSkipLocation),
		),
	)
	session.replyWithMessage(msg)
}

func (b *Bot) cancelLocate(session *UserSession) {
	if session.locate != nil {
		session.locate.cancel()
		session.locate = nil
	}
}

// handleLocationMessage handles a location shared by the user. Outside a
// pending attempt it counts as an immediately successful detection.
func (b *Bot) handleLocationMessage(session *UserSession, message *tgbotapi.Message) {
	coords := eats.Coordinates{
		Latitude:  message.Location.Latitude,
		Longitude: message.Location.Longitude,
	}

	if session.locate != nil {
		session.locate.offer(locateResult{coords: coords})
		return
	}

	session.started = true
	attempt := session.search.BeginDetection()
	session.search.CompleteDetection(attempt, &coords, nil)
	log.Info().Int64("userId", session.userId).Str("coords", coords.String()).Msg("location shared")
	session.replyAndRemoveCustomKeyboard(MsgLocationDetected)
}

func (b *Bot) handleLocateComplete(session *UserSession, outcome *LocateOutcome) {
	if session.locate != nil && session.locate.attempt == outcome.Attempt {
		session.locate = nil
	}

	if !session.search.CompleteDetection(outcome.Attempt, outcome.Coords, outcome.Err) {
		log.Debug().Int64("userId", session.userId).Uint64("attempt", outcome.Attempt).Msg("ignoring stale detection result")
		return
	}

	if outcome.Err == nil {
		session.replyAndRemoveCustomKeyboard(MsgLocationDetected)
		return
	}

	log.Info().Err(outcome.Err).Int64("userId", session.userId).Msg("location detection failed")
	text := escapeMarkdown(session.search.Err())
	if last := b.lastLocation(session.userId); last != "" {
		session.search.SetLocationText(last)
		text += "\n\n" + formatReplyText(MsgUsingLastLocation, escapeMarkdown(last))
	}
	session._reply(text, true)
	session.search.ClearError()
}

// setLocation records typed location text, abandoning any pending detection.
func (b *Bot) setLocation(session *UserSession, text string) {
	b.cancelLocate(session)
	session.started = true
	session.search.SetLocationText(text)

	if eats.IsCurrentLocation(text) || b.store == nil {
		return
	}
	if err := b.store.SetLastLocation(session.userId, text); err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to remember location")
	}
}

func (b *Bot) lastLocation(userId int64) string {
	if b.store == nil {
		return ""
	}
	last, err := b.store.GetLastLocation(userId)
	if err != nil {
		log.Warn().Err(err).Int64("userId", userId).Msg("failed to load last location")
		return ""
	}
	return last
}
