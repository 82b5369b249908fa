package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ADMIN_TELEGRAM_ID", "")

	assert.Equal(t, []string{"GEMINI_API_KEY", "ADMIN_TELEGRAM_ID"}, MissingRequired())
}

func TestValidateAdminID(t *testing.T) {
	assert.NoError(t, validateAdminID("12345"))
	assert.EqualError(t, validateAdminID(""), "user ID is required")
	assert.EqualError(t, validateAdminID("me"), "must be a number")
}

func TestWriteEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), EnvFileName)

	err := writeEnvFile(path, map[string]string{
		"ADMIN_TELEGRAM_ID": "42",
		"BOT_TOKEN":         `123:a"b`,
		"GEMINI_API_KEY":    "key",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BOT_TOKEN=\"123:a\\\"b\"\nGEMINI_API_KEY=\"key\"\nADMIN_TELEGRAM_ID=\"42\"\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func withAPIBase(t *testing.T, base *string, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := *base
	*base = ts.URL
	t.Cleanup(func() { *base = old })
}

func TestValidateTelegramToken(t *testing.T) {
	withAPIBase(t, &telegramAPIBase, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/botgood/getMe" {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	})

	assert.NoError(t, validateTelegramToken("good"))
	assert.EqualError(t, validateTelegramToken("bad"), "Unauthorized")
}

func TestValidateGeminiKey(t *testing.T) {
	withAPIBase(t, &geminiAPIBase, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("key") {
		case "good":
			w.Write([]byte(`{"models":[]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"API key not valid."}}`))
		}
	})

	assert.NoError(t, validateGeminiKey("good"))
	assert.EqualError(t, validateGeminiKey("bad"), "API key not valid.")
	assert.EqualError(t, validateGeminiKey("broken"), "unexpected response (HTTP 500)")
}
