package core

// Window identifies the display surface a selector targets. Every component
// handle derived from a lookup carries the window it was resolved on.
type Window struct {
	Name      string `json:"name" yaml:"name"`
	DisplayID int    `json:"display_id" yaml:"display_id"`
}

// DefaultWindow returns the primary display surface
func DefaultWindow() Window {
	return Window{Name: "default", DisplayID: 0}
}
