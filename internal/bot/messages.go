package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgVersionInfo   = "Version: %s\nBuilt: %s"
	MsgIdle          = "Enter a dish and location to find the cheapest options!"
	MsgHelp          = `
		Send the name of a dish to find the cheapest places nearby, for example:
		` + "`chicken rice`" + `

		To search somewhere else, add a location after @:
		` + "`chicken rice @ Kuala Lumpur`" + `

		/locate - share your current location again
		/location <place> - set the search location
		/menu <rank> - read a price from a menu photo`
)

// =============================================================================
// Location messages
// =============================================================================

const (
	MsgShareLocation     = "Share your location to search nearby, or type a place with /location <place>."
	MsgLocationDetected  = "📍 Using your current location."
	MsgLocationSet       = "📍 Location set to *%s*."
	MsgLocationCurrent   = "📍 Current location: *%s*\n\nChange it with `/location <place>`"
	MsgLocationNotSet    = "No location set. Use /locate or `/location <place>`."
	MsgUsingLastLocation = "Using your last location: *%s*"
	BtnShareLocation     = "📍 Share location"
	BtnSkipLocation      = "Skip"
)

// =============================================================================
// Search messages
// =============================================================================

const (
	MsgSearching     = "🔎 Searching for the cheapest *%s* near *%s*..."
	MsgResultsHeader = "🍜 *%s* near *%s* (%s)"
	MsgPriceUnknown  = "Price unknown"
	MsgAnalyzing     = "⏳ Analyzing..."
	MsgOpen          = "🟢 Open"
	MsgClosed        = "🔴 Closed"
	MsgDistance      = "%s km away"
	BtnFindFromMenu  = "📷 Find from menu: %s"
)

// =============================================================================
// Menu photo messages
// =============================================================================

const (
	MsgSendMenuPhoto     = "Send a photo of the menu at *%s*."
	MsgMenuUsage         = "Usage: `/menu <rank>`, e.g. `/menu 2`"
	MsgMenuNoResults     = "Search for a dish first."
	MsgMenuInvalidRank   = "There is no result number %s."
	MsgMenuEntryGone     = "That result is no longer shown. Pick one from your latest search."
	MsgPhotoWithoutEntry = "Photo received, but no place is selected. Tap \"📷 Find from menu\" on a result first."
	MsgPriceFound        = "💰 *%s*: %s"
	MsgPriceNotFound     = "Couldn't find the price of *%s* on that menu."
	MsgImageDownloadFail = "Failed to download the photo."
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage           = "Usage:\n`/admin users add <user_id>`\n`/admin users remove <user_id>`\n`/admin users list`"
	MsgAdminUserAddUsage    = "Usage: `/admin users add <user_id>`"
	MsgAdminUserRemoveUsage = "Usage: `/admin users remove <user_id>`"
	MsgAdminUserInvalidID   = "Invalid user ID. Enter a number."
	MsgAdminUserAdded       = "✅ User `%d` added."
	MsgAdminUserRemoved     = "🗑 User `%d` removed."
	MsgAdminNoUsers         = "No allowed users."
	MsgAdminAllowedUsers    = "*Allowed users:*\n"
)
