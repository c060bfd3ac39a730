package adb

import (
	"testing"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

func TestParseSerials(t *testing.T) {
	const out = `List of devices attached
emulator-5554	device
0A241FDD4003EM	device
192.168.1.20:5555	offline
R58M123ABC	unauthorized

`
	serials := parseSerials(out)
	want := []string{"emulator-5554", "0A241FDD4003EM"}
	if len(serials) != len(want) {
		t.Fatalf("parseSerials() = %v, want %v", serials, want)
	}
	for i := range want {
		if serials[i] != want[i] {
			t.Errorf("parseSerials()[%d] = %q, want %q", i, serials[i], want[i])
		}
	}
}

func TestParseSerials_Empty(t *testing.T) {
	if serials := parseSerials("List of devices attached\n\n"); len(serials) != 0 {
		t.Errorf("parseSerials() = %v, want none", serials)
	}
}

func TestParseScreenSize(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    core.Size
		wantErr bool
	}{
		{
			name: "physical only",
			out:  "Physical size: 1080x1920\n",
			want: core.Size{Width: 1080, Height: 1920},
		},
		{
			name: "override wins",
			out:  "Physical size: 1440x3120\nOverride size: 1080x2340\n",
			want: core.Size{Width: 1080, Height: 2340},
		},
		{
			name:    "garbage",
			out:     "error: no devices found\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScreenSize(tt.out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseScreenSize() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScreenSize() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseScreenSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "hello", want: "hello"},
		{in: "hello world", want: "hello%sworld"},
		{in: "it's", want: `it\'s`},
		{in: `say "hi"`, want: `say%s\"hi\"`},
		{in: "a&b|c", want: `a\&b\|c`},
		{in: "$HOME", want: `\$HOME`},
		{in: "f(x)", want: `f\(x\)`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := escapeText(tt.in); got != tt.want {
				t.Errorf("escapeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommandArgs(t *testing.T) {
	d := &Device{serial: "emulator-5554"}
	got := d.commandArgs("shell", "wm size")
	want := []string{"-s", "emulator-5554", "shell", "wm size"}
	if len(got) != len(want) {
		t.Fatalf("commandArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("commandArgs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	bare := &Device{}
	if got := bare.commandArgs("devices"); len(got) != 1 || got[0] != "devices" {
		t.Errorf("commandArgs() without serial = %v, want [devices]", got)
	}
}

func TestVersionNameParse(t *testing.T) {
	const dumpsys = `Packages:
  Package [com.example.app] (a1b2c3):
    userId=10123
    versionCode=241 minSdk=26 targetSdk=34
    versionName=2.41.1
    splits=[base]`
	m := versionNameRe.FindStringSubmatch(dumpsys)
	if m == nil {
		t.Fatal("versionName should parse from dumpsys output")
	}
	if m[1] != "2.41.1" {
		t.Errorf("versionName = %q, want 2.41.1", m[1])
	}
}

func TestKeycodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{name: "home", code: KeycodeHome, want: 3},
		{name: "back", code: KeycodeBack, want: 4},
		{name: "enter", code: KeycodeEnter, want: 66},
		{name: "app switch", code: KeycodeAppSwitch, want: 187},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("keycode = %d, want %d", tt.code, tt.want)
			}
		})
	}
}
