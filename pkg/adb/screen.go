package adb

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Screenshot captures the screen as PNG bytes. displayID 0 captures the
// default display; exec-out keeps the stream binary-safe.
func (d *Device) Screenshot(ctx context.Context, displayID int) ([]byte, error) {
	args := []string{"exec-out", "screencap"}
	if displayID != 0 {
		args = append(args, "-d", strconv.Itoa(displayID))
	}
	args = append(args, "-p")
	return d.output(ctx, args...)
}

// SaveScreenshot captures the screen and writes it to a local file.
func (d *Device) SaveScreenshot(ctx context.Context, displayID int, path string) error {
	data, err := d.Screenshot(ctx, displayID)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ScreenSize reports the display resolution. The first query shells out to
// `wm size`; later calls reuse the cached value.
func (d *Device) ScreenSize(ctx context.Context) (core.Size, error) {
	d.mu.Lock()
	cached := d.screenSize
	d.mu.Unlock()
	if cached.Width > 0 && cached.Height > 0 {
		return cached, nil
	}

	out, err := d.Shell(ctx, "wm size")
	if err != nil {
		return core.Size{}, err
	}
	size, err := parseScreenSize(out)
	if err != nil {
		return core.Size{}, err
	}

	d.mu.Lock()
	d.screenSize = size
	d.mu.Unlock()
	return size, nil
}

var wmSizeRe = regexp.MustCompile(`(Override|Physical) size:\s*(\d+)x(\d+)`)

// parseScreenSize reads `wm size` output. An override size wins over the
// physical size since it is what the device actually renders.
func parseScreenSize(out string) (core.Size, error) {
	var physical, override core.Size
	for _, m := range wmSizeRe.FindAllStringSubmatch(out, -1) {
		w, errW := strconv.Atoi(m[2])
		h, errH := strconv.Atoi(m[3])
		if errW != nil || errH != nil {
			continue
		}
		if m[1] == "Override" {
			override = core.Size{Width: w, Height: h}
		} else {
			physical = core.Size{Width: w, Height: h}
		}
	}
	if override.Width > 0 {
		return override, nil
	}
	if physical.Width > 0 {
		return physical, nil
	}
	return core.Size{}, fmt.Errorf("could not parse screen size from %q", out)
}
