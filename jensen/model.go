package jensen

import "time"

// Recording describes one file listed or downloaded from a device. Identity
// is Name (spec §3); recordings are immutable once listed.
type Recording struct {
	Name        string
	Length      uint32
	Version     uint8
	Duration    time.Duration
	CreatedAt   time.Time
	DateGuessed bool // true when CreatedAt fell back to wall-clock (spec §4.7, §9)
}

// StorageInfo reports device storage capacity in bytes (converted from the
// wire's MiB units, spec §3) plus the file count.
type StorageInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
	FileCount  uint32
}

// DeviceInfo identifies a connected device.
type DeviceInfo struct {
	FirmwareVersion string
	SerialNumber    string
}

// Settings are the four boolean device preference flags (spec §3, §6.2).
type Settings struct {
	AutoRecord    bool
	AutoPlay      bool
	BluetoothTone bool
	Notification  bool
}

// ConnectionState enumerates the top-level connection lifecycle states
// (spec §3).
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SubStatus enumerates the multi-step connect sequence (spec §3, §4.9).
// The ordering mirrors internal/lifecycle.SubStatus exactly: Client.State
// converts between the two with a plain numeric cast, so the two enums
// must stay in lockstep if either is ever extended.
type SubStatus int

const (
	SubStatusIdle SubStatus = iota
	SubStatusRequesting
	SubStatusOpening
	SubStatusConfiguring
	SubStatusClaiming
	SubStatusInitialized
	SubStatusReady
	SubStatusDisconnecting
	SubStatusError
)

func (s SubStatus) String() string {
	switch s {
	case SubStatusIdle:
		return "idle"
	case SubStatusRequesting:
		return "requesting"
	case SubStatusOpening:
		return "opening"
	case SubStatusConfiguring:
		return "configuring"
	case SubStatusClaiming:
		return "claiming"
	case SubStatusInitialized:
		return "initialized"
	case SubStatusReady:
		return "ready"
	case SubStatusDisconnecting:
		return "disconnecting"
	case SubStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusTag is the per-event status carried in a StatusEvent (spec §6.3).
type StatusTag int

const (
	StatusPending StatusTag = iota
	StatusInProgress
	StatusCompleted
	StatusErrorTag
	StatusStreaming
	StatusCancelledTag
)

func (s StatusTag) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusErrorTag:
		return "error"
	case StatusStreaming:
		return "streaming"
	case StatusCancelledTag:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusEvent is published on the channel returned by Client.Subscribe for
// a given operation id (spec §6.3). The core never buffers events for
// unsubscribed ids: Subscribe must be called before the operation starts,
// and the returned unsubscribe closure must be called when the caller is
// done listening.
type StatusEvent struct {
	Operation string
	Progress  int
	Total     int
	Status    StatusTag
	Message   string
	NewFiles  []Recording
}
