package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		command string
		args    []string
	}{
		{"/menu 2", "/menu", []string{"2"}},
		{"/menu@CheapEatsBot 2", "/menu", []string{"2"}},
		{"/location  Kallio   Helsinki", "/location", []string{"Kallio", "Helsinki"}},
		{"/start", "/start", []string{}},
		{"", "", nil},
	}
	for _, tt := range tests {
		command, args := parseCommand(tt.in)
		assert.Equal(t, tt.command, command, tt.in)
		assert.Equal(t, tt.args, args, tt.in)
	}
}

func TestParseDishInput(t *testing.T) {
	tests := []struct {
		in       string
		dish     string
		location string
	}{
		{"chicken rice", "chicken rice", ""},
		{"chicken rice @ Kuala Lumpur", "chicken rice", "Kuala Lumpur"},
		{"laksa@Singapore", "laksa", "Singapore"},
		{" @ Kallio", "", "Kallio"},
	}
	for _, tt := range tests {
		dish, location := parseDishInput(tt.in)
		assert.Equal(t, tt.dish, dish, tt.in)
		assert.Equal(t, tt.location, location, tt.in)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "\\*bold\\* \\_it\\_ \\`code\\` \\[link]", escapeMarkdown("*bold* _it_ `code` [link]"))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 place", pluralize("place", "places", 1))
	assert.Equal(t, "0 places", pluralize("place", "places", 0))
}
