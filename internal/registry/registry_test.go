package registry

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestSelectedBackendCaseInsensitive(t *testing.T) {
	h := Default(zerolog.Nop())
	kind, ok := h.SelectedBackend("hackrf")
	if !ok {
		t.Fatal("expected hackrf to be registered")
	}
	if kind != KindNative {
		t.Fatalf("expected native, got %v", kind)
	}
	if _, ok := h.SelectedBackend("HACKRF"); !ok {
		t.Fatal("lookup should ignore case")
	}
}

func TestSelectedBackendUnknownDevice(t *testing.T) {
	h := Default(zerolog.Nop())
	if _, ok := h.SelectedBackend("foo123"); ok {
		t.Fatal("unknown device must not resolve")
	}
}

func TestSelectSwitchesOnlyToAvailable(t *testing.T) {
	h := Default(zerolog.Nop())
	if !h.Select("hackrf", KindStreaming) {
		t.Fatal("hackrf lists the streaming backend")
	}
	kind, _ := h.SelectedBackend("hackrf")
	if kind != KindStreaming {
		t.Fatalf("expected streaming after select, got %v", kind)
	}
	if h.Select("rtl-sdr", KindStreaming) {
		t.Fatal("rtl-sdr does not list the streaming backend")
	}
}

func TestHyphenTolerantNativeMatch(t *testing.T) {
	for _, name := range []string{"rtl-sdr", "rtlsdr", "RTL-SDR", "RtlSdr", "fun-cube-dongle"} {
		if !IsKnownNativeDevice(name) {
			t.Errorf("expected %q to match a known native device", name)
		}
	}
	if IsKnownNativeDevice("foo123") {
		t.Error("foo123 must not match")
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"streaming": KindStreaming,
		"grc":       KindStreaming,
		"Native":    KindNative,
		"network":   KindNetwork,
	}
	for in, want := range cases {
		got, err := parseKind(in)
		if err != nil {
			t.Fatalf("parseKind(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseKind(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseKind("bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestLoadConfigAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	data := `
devices:
  - name: HackRF
    backends: [native, streaming]
    selected: streaming
  - name: RTL-SDR
    backends: [native]
network:
  ip: 127.0.0.1
  server_port: 2222
  client_port: 2223
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.ServerPort != 2222 {
		t.Fatalf("expected server port 2222, got %d", cfg.Network.ServerPort)
	}

	h := cfg.Apply(zerolog.Nop())
	kind, ok := h.SelectedBackend("hackrf")
	if !ok || kind != KindStreaming {
		t.Fatalf("expected streaming for hackrf, got %v (ok=%v)", kind, ok)
	}
	kind, ok = h.SelectedBackend("rtl-sdr")
	if !ok || kind != KindNative {
		t.Fatalf("expected native for rtl-sdr, got %v (ok=%v)", kind, ok)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty name": `
devices:
  - name: ""
    backends: [native]
`,
		"no backends": `
devices:
  - name: HackRF
    backends: []
`,
		"selected not listed": `
devices:
  - name: HackRF
    backends: [native]
    selected: network
`,
		"duplicate": `
devices:
  - name: HackRF
    backends: [native]
  - name: hackrf
    backends: [native]
`,
	}

	for name, data := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHostAddrPrefersIPv4(t *testing.T) {
	h := Host{
		Hostname: "sdr.local.",
		Port:     4242,
		Addresses: []net.IP{
			net.ParseIP("fe80::1"),
			net.ParseIP("192.168.2.1"),
		},
	}
	if got := h.Addr(); got != "192.168.2.1:4242" {
		t.Fatalf("expected IPv4 address, got %q", got)
	}

	noAddr := Host{Hostname: "sdr.local.", Port: 4242}
	if got := noAddr.Addr(); got != "sdr.local:4242" {
		t.Fatalf("expected hostname fallback, got %q", got)
	}
}
