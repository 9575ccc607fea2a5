package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyC     = 67  // C key (ASCII), toggles frustum culling
	KeyL     = 76  // L key (ASCII), toggles LOD selection
	KeyR     = 82  // R key (ASCII), dumps the indirect buffer
	KeySpace = 32  // Spacebar (ASCII), pauses the camera orbit
	KeyEsc   = 256 // Escape key (GLFW)
)

// KeyByName maps the configuration names of bindable keys to their codes.
var KeyByName = map[string]int{
	"c":      KeyC,
	"l":      KeyL,
	"r":      KeyR,
	"space":  KeySpace,
	"escape": KeyEsc,
}
