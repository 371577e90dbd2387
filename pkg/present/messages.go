package present

// Messages is the string lookup the presenter renders text through.
type Messages interface {
	Get(key string) string
}

// Catalog is a map backed Messages. Unknown keys render as the key itself.
type Catalog map[string]string

func (c Catalog) Get(key string) string {
	if s, ok := c[key]; ok {
		return s
	}
	return key
}

// Message keys.
const (
	KeyStateOn        = "state_on"
	KeyStateOff       = "state_off"
	KeyPressF11       = "alert_pressF11"
	KeyF11Reason      = "alert_f11reason"
	KeyModeNotifs     = "menuLabel_modeNotifs"
	KeyExitFailed     = "alert_exitFailed"
	KeyAppSymbol      = "appSymbol"
	KeyAppName        = "appName"
	KeyAbout          = "alert_about"
	tooltipKeyPrefix  = "tooltip_"
	modeNameKeyPrefix = "mode_"
)

// TooltipKey returns the key of the label shown on a button. Toggleable
// buttons show the action the next click performs, so an active mode uses
// the OFF label.
func TooltipKey(b ButtonType, active bool) string {
	if !b.Toggleable() {
		return tooltipKeyPrefix + string(b)
	}
	if active {
		return tooltipKeyPrefix + string(b) + "OFF"
	}
	return tooltipKeyPrefix + string(b) + "ON"
}

// ModeKey returns the key of a mode display name.
func ModeKey(mode string) string { return modeNameKeyPrefix + mode }

// English is the default catalog.
var English = Catalog{
	"tooltip_fullScreenON":  "Enter full screen",
	"tooltip_fullScreenOFF": "Exit full screen",
	"tooltip_fullWindowON":  "Enter full-window",
	"tooltip_fullWindowOFF": "Exit full-window",
	"tooltip_wideScreenON":  "Wide screen",
	"tooltip_wideScreenOFF": "Exit wide screen",
	"tooltip_newChat":       "New chat",

	"mode_wideScreen": "Wide screen",
	"mode_fullWindow": "Full-window",
	"mode_fullScreen": "Full screen",

	KeyStateOn:  "on",
	KeyStateOff: "off",

	KeyModeNotifs:  "Mode notifications",
	KeyPressF11:    "Press F11 to exit full screen",
	KeyF11Reason:   "F11 was used to enter full screen, and due to browser restrictions it can only be exited the same way",
	KeyExitFailed:  "Failed to exit full screen",
	KeyAppSymbol:   "↔️",
	KeyAppName:     "Widescreen",
	KeyAbout:       "Wide screen, full-window and full screen modes for chat pages",
}
