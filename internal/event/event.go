// Package event defines the platform-neutral inbound event consumed by the
// router.  internal/telegram translates Bot API updates into Events.
package event

// Kind classifies an inbound event.
type Kind int

const (
	KindUnknown  Kind = iota
	KindStart         // /start
	KindCommand       // any other slash command (/admin, /cancel, ...)
	KindText          // free text or media message
	KindWebApp        // mini-app data (geolocation payload)
	KindCallback      // inline button press
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindWebApp:
		return "web_app"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Callback tokens carried by inline buttons.
const (
	NextStep       = "next_step"
	OpenPlatform   = "open_platform"
	AdminStats     = "admin_stats"
	AdminSetLink   = "admin_set_link"
	AdminBroadcast = "admin_broadcast"
)

// Event is one inbound interaction.
type Event struct {
	Kind       Kind
	UpdateID   int64
	UserID     int64
	ChatID     int64
	Username   string
	Command    string // command name without slash, for KindStart/KindCommand
	Text       string // message text
	Data       string // callback token or mini-app payload
	CallbackID string // for answering the callback
	MessageID  int    // message the event refers to (source of a broadcast, button host)
}
