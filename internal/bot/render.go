package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raine/cheapeats-bot/internal/eats"
)

var rankMedals = []string{"🥇", "🥈", "🥉"}

// rankLabel returns the display label for a 1-based rank.
func rankLabel(rank int) string {
	if rank <= len(rankMedals) {
		return rankMedals[rank-1]
	}
	return fmt.Sprintf("%dth", rank)
}

// formatResults renders the session's result view as Markdown text plus one
// inline "find from menu" button per entry that has no price yet.
func formatResults(s *eats.Session, minRating float64) (string, [][]tgbotapi.InlineKeyboardButton) {
	if s.ShowLoader() {
		return formatReplyText(MsgSearching, escapeMarkdown(s.Dish()), escapeMarkdown(s.SearchLocation())), nil
	}

	rs := s.Result()
	if rs == nil {
		if s.Err() != "" {
			return "⚠️ " + escapeMarkdown(s.Err()), nil
		}
		return MsgIdle, nil
	}
	if msg := s.EmptyMessage(minRating); msg != "" {
		return escapeMarkdown(msg), nil
	}

	var sb strings.Builder
	sb.WriteString(formatReplyText(MsgResultsHeader,
		escapeMarkdown(s.Dish()),
		escapeMarkdown(s.SearchLocation()),
		pluralize("place", "places", len(rs.Entries)),
	))
	sb.WriteString("\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, e := range rs.Entries {
		sb.WriteString("\n")
		sb.WriteString(formatEntry(i+1, e))
		sb.WriteString("\n")

		if !e.HasPrice() && !e.IsUpdating {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf(BtnFindFromMenu, truncateLabel(e.Name, 32)),
					menuCallbackPrefix+e.ID,
				),
			))
		}
	}

	if rs.Summary != "" {
		sb.WriteString("\n💡 ")
		sb.WriteString(escapeMarkdown(rs.Summary))
		sb.WriteString("\n")
	}
	if s.Err() != "" {
		sb.WriteString("\n⚠️ ")
		sb.WriteString(escapeMarkdown(s.Err()))
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), rows
}

func formatEntry(rank int, e eats.Entry) string {
	price := MsgPriceUnknown
	if e.HasPrice() {
		price = escapeMarkdown(*e.Price)
	}

	status := MsgClosed
	if e.IsOpen {
		status = MsgOpen
	}

	details := []string{
		status,
		fmt.Sprintf(MsgDistance, strconv.FormatFloat(e.DistanceKm, 'f', -1, 64)),
	}
	if e.TravelTime != "" {
		details = append(details, escapeMarkdown(e.TravelTime))
	}

	line := fmt.Sprintf("%s *%s* - %s\n%s", rankLabel(rank), escapeMarkdown(e.Name), price, strings.Join(details, " · "))
	if e.IsUpdating {
		line += "\n" + MsgAnalyzing
	}
	return line
}

// truncateLabel shortens s to max runes for button labels.
func truncateLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
