package adb

import (
	"context"
	"regexp"
	"strings"
)

// Install installs an APK, replacing any existing install and granting
// runtime permissions.
func (d *Device) Install(ctx context.Context, apkPath string) error {
	_, err := d.run(ctx, "install", "-r", "-g", apkPath)
	return err
}

// Uninstall removes a package from the device.
func (d *Device) Uninstall(ctx context.Context, pkg string) error {
	_, err := d.run(ctx, "uninstall", pkg)
	return err
}

// IsInstalled checks whether a package is installed.
func (d *Device) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "package:"+pkg)
}

// StartApp launches an app. With an activity it starts that component
// directly; without one it fires the launcher intent, which needs no
// knowledge of the app's activities.
func (d *Device) StartApp(ctx context.Context, pkg, activity string) error {
	var err error
	if activity != "" {
		_, err = d.Shell(ctx, "am start -n "+pkg+"/"+activity)
	} else {
		_, err = d.Shell(ctx, "monkey -p "+pkg+" -c android.intent.category.LAUNCHER 1")
	}
	return err
}

// StopApp force-stops an app.
func (d *Device) StopApp(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "am force-stop "+pkg)
	return err
}

// ClearState clears an app's data and cache.
func (d *Device) ClearState(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "pm clear "+pkg)
	return err
}

var versionNameRe = regexp.MustCompile(`versionName=([\d.]+)`)

// AppVersion reads the installed versionName of a package, or "" when the
// package is missing or carries no parsable version.
func (d *Device) AppVersion(ctx context.Context, pkg string) (string, error) {
	out, err := d.Shell(ctx, "dumpsys package "+pkg)
	if err != nil {
		return "", err
	}
	if m := versionNameRe.FindStringSubmatch(out); m != nil {
		return m[1], nil
	}
	return "", nil
}
