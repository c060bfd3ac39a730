// Package adb drives an Android device through the adb binary. It covers
// the device plumbing the resolution engine cannot do over the portal:
// port forwarding, screenshots for image lookups without a portal, raw
// input injection, and app lifecycle.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// Device is a handle on one connected Android device.
type Device struct {
	serial  string
	adbPath string

	mu         sync.Mutex
	screenSize core.Size // cached wm size, zero until first query
}

// New returns a Device for the given serial. An empty serial auto-detects
// the first connected device.
func New(serial string) (*Device, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}

	if serial == "" {
		serials, err := listSerials(context.Background(), adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
		if len(serials) == 0 {
			return nil, fmt.Errorf("no connected devices found")
		}
		serial = serials[0]
	}

	return &Device{serial: serial, adbPath: adbPath}, nil
}

// Devices lists the serials of all connected devices.
func Devices(ctx context.Context) ([]string, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	return listSerials(ctx, adbPath)
}

// Serial returns the device serial number.
func (d *Device) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device and returns its output.
func (d *Device) Shell(ctx context.Context, cmd string) (string, error) {
	return d.run(ctx, "shell", cmd)
}

// WaitConnected polls until the device reports state "device" or the
// context expires.
func (d *Device) WaitConnected(ctx context.Context) error {
	for {
		if out, err := d.run(ctx, "get-state"); err == nil && strings.TrimSpace(out) == "device" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for device %s", d.serial)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Reboot restarts the device without waiting for it to come back.
func (d *Device) Reboot(ctx context.Context) error {
	_, err := d.run(ctx, "reboot")
	return err
}

// WaitBootCompleted polls the boot property until the device finishes
// booting or the context expires.
func (d *Device) WaitBootCompleted(ctx context.Context) error {
	for {
		if out, err := d.Shell(ctx, "getprop sys.boot_completed"); err == nil && strings.TrimSpace(out) == "1" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for device %s to boot", d.serial)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Forward maps a local TCP port to a device TCP port.
func (d *Device) Forward(ctx context.Context, localPort, remotePort int) error {
	_, err := d.run(ctx, "forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveForward removes the forward on a local TCP port.
func (d *Device) RemoveForward(ctx context.Context, localPort int) error {
	_, err := d.run(ctx, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// Push copies a local file to the device.
func (d *Device) Push(ctx context.Context, localPath, remotePath string) error {
	_, err := d.run(ctx, "push", localPath, remotePath)
	return err
}

// Pull copies a device file to the local filesystem.
func (d *Device) Pull(ctx context.Context, remotePath, localPath string) error {
	_, err := d.run(ctx, "pull", remotePath, localPath)
	return err
}

// run executes an adb command scoped to this device and returns stdout.
func (d *Device) run(ctx context.Context, args ...string) (string, error) {
	out, err := d.output(ctx, args...)
	return string(out), err
}

// output is run without the string conversion, for binary payloads such
// as screencap.
func (d *Device) output(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := d.commandArgs(args...)
	logger.Debug("adb %s", strings.Join(cmdArgs, " "))

	cmd := exec.CommandContext(ctx, d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, errMsg)
	}
	return stdout.Bytes(), nil
}

// commandArgs prefixes the device serial so commands stick to this device
// when several are connected.
func (d *Device) commandArgs(args ...string) []string {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	return append(cmdArgs, args...)
}

// listSerials parses `adb devices` output into ready serials.
func listSerials(ctx context.Context, adbPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, adbPath, "devices")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parseSerials(string(out)), nil
}

func parseSerials(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			serials = append(serials, parts[0])
		}
	}
	return serials
}

// findADB locates the adb binary on PATH.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK platform-tools are installed")
}
