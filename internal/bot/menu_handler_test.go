package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raine/cheapeats-bot/internal/eats"
)

func makeCallbackUpdate(userId int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userId},
			Data: data,
		},
	}
}

func (e *testEnv) sendUpdate(update tgbotapi.Update) {
	e.bot.handleUpdateSync(context.Background(), update)
	e.barrier()
}

func TestMenuPhoto_UpdatesPriceAndReranks(t *testing.T) {
	env := setup(t, Options{})
	edits := searchWithResults(t, env)
	serveMenuPhoto(t, env)
	env.extractor.price = eats.StringPtr("€8")

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgSendMenuPhoto, "Ramen Bar"))).
		Return(tgbotapi.Message{}, nil).Once()

	env.sendUpdate(makeCallbackUpdate(env.userId, menuCallbackPrefix+"1-2"))
	env.sendUpdate(makePhotoUpdate(env.userId))

	env.tg.AssertExpectations(t)
	assert.Equal(t, []string{"pho"}, env.extractor.dishes)

	require.Len(t, *edits, 3)
	assert.Contains(t, (*edits)[1].Text, MsgAnalyzing)
	assert.Contains(t, (*edits)[2].Text, "🥇 *Ramen Bar* - €8")
	assert.NotContains(t, (*edits)[2].Text, MsgAnalyzing)
	assert.Empty(t, (*edits)[2].ReplyMarkup.InlineKeyboard)

	rs := env.session.search.Result()
	require.NotNil(t, rs)
	assert.Equal(t, "Ramen Bar", rs.Entries[0].Name)
	assert.True(t, eats.IsRanked(rs.Entries))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PriceUpdates.WithLabelValues("found")))
}

func TestMenuPhoto_PriceNotFound(t *testing.T) {
	env := setup(t, Options{})
	searchWithResults(t, env)
	serveMenuPhoto(t, env)

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgSendMenuPhoto, "Ramen Bar"))).
		Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgPriceNotFound, "Ramen Bar"))).
		Return(tgbotapi.Message{}, nil).Once()

	env.sendUpdate(makeCallbackUpdate(env.userId, menuCallbackPrefix+"1-2"))
	env.sendUpdate(makePhotoUpdate(env.userId))

	env.tg.AssertExpectations(t)
	assert.Nil(t, env.session.search.Result().Entry("1-2").Price)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PriceUpdates.WithLabelValues("not_found")))
}

func TestMenuPhoto_AnalysisFailureKeepsOrder(t *testing.T) {
	env := setup(t, Options{})
	edits := searchWithResults(t, env)
	serveMenuPhoto(t, env)
	env.extractor.err = errors.New("model overloaded")

	env.tg.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()
	before := env.session.search.Result()

	env.sendUpdate(makeCallbackUpdate(env.userId, menuCallbackPrefix+"1-2"))
	env.sendUpdate(makePhotoUpdate(env.userId))

	require.Len(t, *edits, 3)
	assert.Contains(t, (*edits)[2].Text, "⚠️ "+eats.MsgAnalyzeFailed)

	after := env.session.search.Result()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Empty(t, env.session.search.Err(), "analysis error is shown once")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PriceUpdates.WithLabelValues("error")))
}

func TestMenuPhoto_StaleAfterNewSearch(t *testing.T) {
	env := setup(t, Options{})
	searchWithResults(t, env)
	serveMenuPhoto(t, env)
	env.extractor.price = eats.StringPtr("€8")

	var pending []func()
	env.bot.goAsync = func(f func()) { pending = append(pending, f) }

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgSendMenuPhoto, "Ramen Bar"))).
		Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgSearching, "ramen", "Kallio"))).
		Return(tgbotapi.Message{MessageID: 43}, nil).Once()

	env.sendUpdate(makeCallbackUpdate(env.userId, menuCallbackPrefix+"1-2"))
	env.sendUpdate(makePhotoUpdate(env.userId))
	env.sendText("ramen")
	require.Len(t, pending, 2)

	pending[1]()
	pending[0]()
	env.barrier()

	rs := env.session.search.Result()
	require.NotNil(t, rs)
	for _, e := range rs.Entries {
		assert.False(t, e.IsUpdating)
		assert.True(t, strings.HasPrefix(e.ID, "2-"))
	}
	assert.Nil(t, rs.Entry("2-2").Price)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PriceUpdates.WithLabelValues("stale")))
}

func TestMenuPhoto_WithoutSelectedEntry(t *testing.T) {
	env := setup(t, Options{})
	env.ready("Kallio")

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgPhotoWithoutEntry))).
		Return(tgbotapi.Message{}, nil).Once()

	env.sendUpdate(makePhotoUpdate(env.userId))

	env.tg.AssertExpectations(t)
	assert.Empty(t, env.extractor.dishes)
}

func TestMenuCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"picks by rank", "/menu 2", formatReplyText(MsgSendMenuPhoto, "Pho Viet")},
		{"rank out of range", "/menu 9", formatReplyText(MsgMenuInvalidRank, "9")},
		{"not a number", "/menu two", formatReplyText(MsgMenuInvalidRank, "two")},
		{"missing rank", "/menu", formatReplyText(MsgMenuUsage)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t, Options{})
			searchWithResults(t, env)

			env.tg.On("Send", makeMessage(env.userId, tt.want)).Return(tgbotapi.Message{}, nil).Once()
			env.sendText(tt.text)
			env.tg.AssertExpectations(t)
		})
	}
}

func TestMenuCommand_NoResults(t *testing.T) {
	env := setup(t, Options{})
	env.ready("Kallio")

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgMenuNoResults))).
		Return(tgbotapi.Message{}, nil).Once()

	env.sendText("/menu 1")
	env.tg.AssertExpectations(t)
}

func TestMenuCallback_FromOldResults(t *testing.T) {
	env := setup(t, Options{})
	searchWithResults(t, env)

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgMenuEntryGone))).
		Return(tgbotapi.Message{}, nil).Once()

	env.sendUpdate(makeCallbackUpdate(env.userId, menuCallbackPrefix+"0-1"))

	env.tg.AssertExpectations(t)
	assert.Empty(t, env.session.menuTarget)
}
