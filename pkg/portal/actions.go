package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// Tap sends a tap at display coordinates.
func (c *Client) Tap(ctx context.Context, displayID, x, y int) error {
	query := url.Values{
		"x": []string{strconv.Itoa(x)},
		"y": []string{strconv.Itoa(y)},
	}
	_, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/displays/%d/tap", displayID), query)
	return err
}

// LongPress presses and holds at display coordinates for the given duration.
func (c *Client) LongPress(ctx context.Context, displayID, x, y int, duration time.Duration) error {
	query := url.Values{
		"x":        []string{strconv.Itoa(x)},
		"y":        []string{strconv.Itoa(y)},
		"duration": []string{strconv.FormatInt(duration.Milliseconds(), 10)},
	}
	_, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/displays/%d/longPress", displayID), query)
	return err
}

// Swipe drags from start to end coordinates over the given duration.
func (c *Client) Swipe(ctx context.Context, displayID, startX, startY, endX, endY int, duration time.Duration) error {
	query := url.Values{
		"startX":   []string{strconv.Itoa(startX)},
		"startY":   []string{strconv.Itoa(startY)},
		"endX":     []string{strconv.Itoa(endX)},
		"endY":     []string{strconv.Itoa(endY)},
		"duration": []string{strconv.FormatInt(duration.Milliseconds(), 10)},
	}
	_, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/displays/%d/swipe", displayID), query)
	return err
}

// InputText types text into the focused element. The relay occasionally
// drops input while the IME is settling, so the call is attempted a few
// times.
func (c *Client) InputText(ctx context.Context, displayID int, text string) error {
	query := url.Values{"text": []string{text}}
	return c.retryInput(ctx, fmt.Sprintf("/displays/%d/input/text", displayID), query)
}

// ClearText clears the focused element's text.
func (c *Client) ClearText(ctx context.Context, displayID int) error {
	return c.retryInput(ctx, fmt.Sprintf("/displays/%d/input/clear", displayID), nil)
}

func (c *Client) retryInput(ctx context.Context, path string, query url.Values) error {
	var lastErr error
	for attempt := 1; attempt <= inputAttempts; attempt++ {
		_, lastErr = c.request(ctx, http.MethodPost, path, query)
		if lastErr == nil {
			return nil
		}
		logger.Warn("input attempt %d/%d failed: %v", attempt, inputAttempts, lastErr)
		if attempt == inputAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(inputInterval):
		}
	}
	return lastErr
}
