// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"slices"
	"testing"
)

func TestDetectSandboxFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stat func(string) error
		want SandboxType
	}{
		{
			name: "flatpak info present",
			stat: func(path string) error {
				if path == flatpakInfo {
					return nil
				}
				return os.ErrNotExist
			},
			want: SandboxFlatpak,
		},
		{
			name: "no sandbox",
			stat: func(string) error { return os.ErrNotExist },
			want: SandboxNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := detectSandboxFrom(tt.stat); got != tt.want {
				t.Errorf("detectSandboxFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHostCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sandbox  SandboxType
		wantName string
		wantArgs []string
	}{
		{"unsandboxed", SandboxNone, "/usr/bin/docker", []string{"images"}},
		{"flatpak", SandboxFlatpak, "flatpak-spawn", []string{"--host", "/usr/bin/docker", "images"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			name, args := HostCommand(tt.sandbox, "/usr/bin/docker", "images")
			if name != tt.wantName || !slices.Equal(args, tt.wantArgs) {
				t.Errorf("HostCommand() = %q %v, want %q %v", name, args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestDetectSandbox_Cached(t *testing.T) {
	t.Parallel()

	if first, second := DetectSandbox(), DetectSandbox(); first != second {
		t.Errorf("DetectSandbox() = %q then %q, want a stable result", first, second)
	}
}
