package bot

// Set at build time with -ldflags "-X github.com/raine/cheapeats-bot/internal/bot.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)
