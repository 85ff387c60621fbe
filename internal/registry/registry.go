package registry

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Kind is a configured backend family for a device.
type Kind int

const (
	KindStreaming Kind = iota
	KindNative
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindStreaming:
		return "streaming"
	case KindNative:
		return "native"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// NetworkSDRName is the reserved device name that always resolves to the
// network-virtual backend, regardless of registry contents.
const NetworkSDRName = "Network SDR Interface"

// DeviceNames is the fixed set of native hardware identifiers. Lookups
// tolerate hyphenation variants ("rtl-sdr" matches "rtlsdr").
var DeviceNames = []string{
	"AirSpy",
	"BladeRF",
	"FUNcube-Dongle",
	"HackRF",
	"RTL-SDR",
	"RTL-TCP",
	"USRP",
}

// Entry describes one configured device.
type Entry struct {
	Available []Kind
	Selected  Kind
}

// Handler maps lower-cased device names to their backend selection.
// It is the registry the facade consults during construction.
type Handler struct {
	mu      sync.RWMutex
	log     zerolog.Logger
	devices map[string]*Entry
}

func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log:     log,
		devices: make(map[string]*Entry),
	}
}

// Default returns a handler with every known native device registered and
// the native backend selected. Streaming is offered as an alternative for
// USRP and HackRF, mirroring what flow-graph tooling supports.
func Default(log zerolog.Logger) *Handler {
	h := NewHandler(log)
	for _, name := range DeviceNames {
		entry := &Entry{Available: []Kind{KindNative}, Selected: KindNative}
		if name == "USRP" || name == "HackRF" {
			entry.Available = append(entry.Available, KindStreaming)
		}
		h.Register(name, entry)
	}
	return h
}

// Register adds or replaces a device entry. The name is stored lower-cased.
func (h *Handler) Register(name string, entry *Entry) {
	h.mu.Lock()
	h.devices[strings.ToLower(name)] = entry
	h.mu.Unlock()
}

// SelectedBackend resolves the configured backend for a device name,
// case-insensitively. ok is false when the name is not registered.
func (h *Handler) SelectedBackend(name string) (Kind, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.devices[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	return entry.Selected, true
}

// Select switches the active backend for a device, if both device and kind
// are registered.
func (h *Handler) Select(name string, kind Kind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.devices[strings.ToLower(name)]
	if !ok {
		return false
	}
	for _, k := range entry.Available {
		if k == kind {
			entry.Selected = kind
			return true
		}
	}
	h.log.Warn().Str("device", name).Stringer("backend", kind).Msg("backend not available for device")
	return false
}

// Names returns the registered device names (lower-cased, unordered).
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.devices))
	for name := range h.devices {
		out = append(out, name)
	}
	return out
}

// Normalize lower-cases a device name and strips hyphens, the canonical
// form used for native hardware matching.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "")
}

// IsKnownNativeDevice reports whether name matches one of DeviceNames,
// tolerating hyphenation variants.
func IsKnownNativeDevice(name string) bool {
	n := Normalize(name)
	for _, d := range DeviceNames {
		if Normalize(d) == n {
			return true
		}
	}
	return false
}
