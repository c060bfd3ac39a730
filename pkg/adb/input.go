package adb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Android keycodes used by navigation helpers.
const (
	KeycodeHome      = 3
	KeycodeBack      = 4
	KeycodeEnter     = 66
	KeycodeAppSwitch = 187
)

// Tap injects a tap at the given screen coordinates.
func (d *Device) Tap(ctx context.Context, x, y int) error {
	_, err := d.Shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// LongPress holds a touch at the given coordinates. Android has no native
// long-press injection, so it is a zero-distance swipe.
func (d *Device) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	if duration <= 0 {
		duration = 2 * time.Second
	}
	_, err := d.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x, y, duration.Milliseconds()))
	return err
}

// Swipe drags from one point to another over the given duration.
func (d *Device) Swipe(ctx context.Context, from, to core.Point, duration time.Duration) error {
	if duration <= 0 {
		duration = 500 * time.Millisecond
	}
	_, err := d.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", from.X, from.Y, to.X, to.Y, duration.Milliseconds()))
	return err
}

// InputText types text into the focused field.
func (d *Device) InputText(ctx context.Context, text string) error {
	_, err := d.Shell(ctx, "input text "+escapeText(text))
	return err
}

// Keyevent sends a raw keycode.
func (d *Device) Keyevent(ctx context.Context, code int) error {
	_, err := d.Shell(ctx, fmt.Sprintf("input keyevent %d", code))
	return err
}

// Back presses the back button.
func (d *Device) Back(ctx context.Context) error {
	return d.Keyevent(ctx, KeycodeBack)
}

// Enter presses the enter key.
func (d *Device) Enter(ctx context.Context) error {
	return d.Keyevent(ctx, KeycodeEnter)
}

// Home presses the home button.
func (d *Device) Home(ctx context.Context) error {
	return d.Keyevent(ctx, KeycodeHome)
}

// AppSwitch opens the recent tasks switcher.
func (d *Device) AppSwitch(ctx context.Context) error {
	return d.Keyevent(ctx, KeycodeAppSwitch)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"`", "\\`",
	`(`, `\(`,
	`)`, `\)`,
	`<`, `\<`,
	`>`, `\>`,
	`|`, `\|`,
	`;`, `\;`,
	`&`, `\&`,
	`*`, `\*`,
	`~`, `\~`,
	`$`, `\$`,
	` `, `%s`,
)

// escapeText prepares text for `input text`, which runs through the device
// shell and treats spaces as argument separators.
func escapeText(text string) string {
	return textEscaper.Replace(text)
}
