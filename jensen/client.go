package jensen

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hidock/jensen-client/internal/bcd"
	"github.com/hidock/jensen-client/internal/cache"
	"github.com/hidock/jensen-client/internal/dispatcher"
	"github.com/hidock/jensen-client/internal/downloader"
	"github.com/hidock/jensen-client/internal/filename"
	"github.com/hidock/jensen-client/internal/framer"
	"github.com/hidock/jensen-client/internal/kvstore"
	"github.com/hidock/jensen-client/internal/lifecycle"
	"github.com/hidock/jensen-client/internal/streamparser"
	"github.com/hidock/jensen-client/internal/transport"
	"github.com/hidock/jensen-client/internal/xerrors"
)

// KeyValueStore is the external persistence collaborator the cache uses
// (spec §1). It is an alias for kvstore.Store so callers outside this
// module never need to import an internal package to implement it.
type KeyValueStore = kvstore.Store

// NewFileKeyValueStore returns a JSON-file-backed KeyValueStore rooted at
// path, the default used by cmd/jensen-agent and cmd/jensen-cli.
func NewFileKeyValueStore(path string) KeyValueStore { return kvstore.NewFile(path) }

// NewMemoryKeyValueStore returns an in-memory KeyValueStore, useful for
// tests or ephemeral sessions.
func NewMemoryKeyValueStore() KeyValueStore { return kvstore.NewMemory() }

// Config configures a Client (spec §9's redesign flag: explicit
// configuration values instead of a global singleton).
type Config struct {
	Transport   transport.Config
	RetryPolicy lifecycle.Policy

	CommandTimeout    time.Duration
	StreamQuiet       time.Duration
	StreamOverall     time.Duration
	DownloadChunkWait time.Duration
	DownloadOverall   time.Duration

	Store  KeyValueStore
	Logger *log.Logger
}

// DefaultConfig returns the documented defaults (spec §4.1, §4.3, §4.5,
// §4.9). Store defaults to an in-memory KeyValueStore; callers that want
// persistence across process restarts must supply one explicitly.
func DefaultConfig() Config {
	return Config{
		Transport:         transport.DefaultConfig(),
		RetryPolicy:       lifecycle.DefaultPolicy(),
		CommandTimeout:    5 * time.Second,
		StreamQuiet:       3 * time.Second,
		StreamOverall:     10 * time.Second,
		DownloadChunkWait: 15 * time.Second,
		DownloadOverall:   60 * time.Second,
		Store:             kvstore.NewMemory(),
	}
}

// Client is a Jensen protocol client bound to one USB device (spec §1's
// core). It is not a package-level singleton: every dependency is
// constructed explicitly from Config (spec §9's redesign flag).
type Client struct {
	cfg    Config
	logger *log.Logger

	transport  *transport.Transport
	dispatcher *dispatcher.Dispatcher
	cache      *cache.Cache
	lifecycle  *lifecycle.Manager
	status     *statusSink

	mu           sync.RWMutex
	deviceSerial string
	now          func() time.Time
}

// New constructs a Client from cfg. Connect must be called before issuing
// commands.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Store == nil {
		cfg.Store = kvstore.NewMemory()
	}
	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		cache:  cache.New(cfg.Store, cfg.Logger),
		status: newStatusSink(),
		now:    time.Now,
	}
	c.lifecycle = lifecycle.New(cfg.RetryPolicy, cfg.Logger, c.publishTransition)
	return c
}

// Subscribe returns a channel of StatusEvent for operation id op, and an
// unsubscribe function the caller must call when done listening (spec
// §6.3: "the core never buffers events for unsubscribed ids").
func (c *Client) Subscribe(op string) (<-chan StatusEvent, func()) {
	return c.status.Subscribe(op)
}

func (c *Client) publishTransition(t lifecycle.Transition) {
	status := StatusInProgress
	switch t.State {
	case lifecycle.StateConnected:
		status = StatusCompleted
	case lifecycle.StateError:
		status = StatusErrorTag
	}
	c.status.Publish(StatusEvent{
		Operation: "connect",
		Progress:  t.Progress,
		Total:     100,
		Status:    status,
		Message:   t.Message,
	})
}

// Connect opens the USB transport and runs the connect sequence (spec
// §4.9): open, read device info, read storage, read settings, sync time.
func (c *Client) Connect(ctx context.Context) error {
	tr := transport.New(c.cfg.Transport, c.logger)
	var info DeviceInfo

	steps := lifecycle.Steps{
		Open: func(ctx context.Context) error {
			return tr.Open()
		},
		GetInfo: func(ctx context.Context) error {
			c.mu.Lock()
			c.transport = tr
			c.dispatcher = dispatcher.New(tr, c.logger)
			c.mu.Unlock()
			var err error
			info, err = c.getDeviceInfo(ctx)
			if err != nil {
				return err
			}
			c.mu.Lock()
			c.deviceSerial = info.SerialNumber
			c.mu.Unlock()
			return nil
		},
		GetStorage: func(ctx context.Context) error {
			_, err := c.GetStorageInfo(ctx)
			return err
		},
		GetSettings: func(ctx context.Context) error {
			_, err := c.GetSettings(ctx)
			return err
		},
		SyncTime: func(ctx context.Context) error {
			return c.SetDeviceTime(ctx, c.now())
		},
		Probe: tr.Probe,
	}

	if err := c.lifecycle.Connect(ctx, steps); err != nil {
		tr.Close()
		c.mu.Lock()
		c.transport, c.dispatcher = nil, nil
		c.mu.Unlock()
		return err
	}
	return nil
}

// Disconnect closes the transport (spec §4.9's Disconnect).
func (c *Client) Disconnect(userInitiated bool) error {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()

	err := c.lifecycle.Disconnect(userInitiated, func() error {
		if tr != nil {
			return tr.Close()
		}
		return nil
	})
	c.mu.Lock()
	c.transport, c.dispatcher = nil, nil
	c.mu.Unlock()
	c.cache.Invalidate()
	return err
}

// State returns the current connection state and sub-status.
func (c *Client) State() (ConnectionState, SubStatus) {
	st, sub := c.lifecycle.State()
	return ConnectionState(st), SubStatus(sub)
}

func (c *Client) requireConnected() (*dispatcher.Dispatcher, error) {
	c.mu.RLock()
	d := c.dispatcher
	c.mu.RUnlock()
	if d == nil {
		return nil, ErrDeviceNotConnected
	}
	return d, nil
}

func (c *Client) exec(ctx context.Context, cmdID uint16, body []byte) (*framer.Packet, error) {
	d, err := c.requireConnected()
	if err != nil {
		return nil, err
	}
	pkt, err := d.Exec(ctx, cmdID, body, c.cfg.CommandTimeout)
	if err != nil {
		c.handleTransportError(err)
	}
	return pkt, err
}

// handleTransportError classifies err and, for KindConnectionLost (spec
// §7's ConnectionLost row: "mark state Disconnected; trigger
// auto-reconnect if not user-initiated"), counts it toward
// lifecycle.Manager's retry-suppression threshold and drives the state
// machine to Disconnected so a subsequent AutoReconnect call can recover
// the session instead of leaving it stuck in a dead Connected state.
func (c *Client) handleTransportError(err error) {
	kind, ok := xerrors.KindOf(err)
	if !ok || kind != xerrors.KindConnectionLost {
		return
	}
	c.lifecycle.CountConnectionLost()

	c.mu.Lock()
	tr := c.transport
	c.transport, c.dispatcher = nil, nil
	c.mu.Unlock()

	c.lifecycle.Disconnect(false, func() error {
		if tr != nil {
			return tr.Close()
		}
		return nil
	})
	c.cache.Invalidate()
}

func statusByte(pkt *framer.Packet, method string) error {
	if len(pkt.Body) < 1 {
		return xerrors.New(xerrors.KindProtocolError, method+": empty response", nil)
	}
	if pkt.Body[0] != 0 {
		return xerrors.New(xerrors.KindProtocolError, fmt.Sprintf("%s: device returned status %d", method, pkt.Body[0]), nil)
	}
	return nil
}

// GetDeviceInfo issues GetDeviceInfo (0x01): 4-byte version code + 16-byte
// serial (spec §6.2, §3).
func (c *Client) GetDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	return c.getDeviceInfo(ctx)
}

func (c *Client) getDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	pkt, err := c.exec(ctx, cmdGetDeviceInfo, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(pkt.Body) < 20 {
		return DeviceInfo{}, xerrors.New(xerrors.KindProtocolError, "get_device_info: short response", nil)
	}
	v0, v1, v2 := pkt.Body[1], pkt.Body[2], pkt.Body[3]
	version := fmt.Sprintf("%d.%d.%d", v0, v1, v2)

	serialBytes := pkt.Body[4:20]
	serial := nullTerminatedASCII(serialBytes)
	if !isPrintableASCII(serial) {
		serial = fmt.Sprintf("%x", serialBytes)
	}
	return DeviceInfo{FirmwareVersion: version, SerialNumber: serial}, nil
}

func nullTerminatedASCII(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func isPrintableASCII(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// GetDeviceTime issues GetDeviceTime (0x02): 7-byte BCD timestamp.
func (c *Client) GetDeviceTime(ctx context.Context) (time.Time, error) {
	pkt, err := c.exec(ctx, cmdGetDeviceTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	if len(pkt.Body) < 7 {
		return time.Time{}, xerrors.New(xerrors.KindProtocolError, "get_device_time: short response", nil)
	}
	var raw [7]byte
	copy(raw[:], pkt.Body[:7])
	t, err := bcd.DecodeTime(raw)
	if err != nil {
		return time.Time{}, xerrors.New(xerrors.KindProtocolError, "get_device_time: "+err.Error(), err)
	}
	return t, nil
}

// SetDeviceTime issues SetDeviceTime (0x03): 7-byte BCD body, 1-byte status.
func (c *Client) SetDeviceTime(ctx context.Context, t time.Time) error {
	raw := bcd.EncodeTime(t)
	pkt, err := c.exec(ctx, cmdSetDeviceTime, raw[:])
	if err != nil {
		return err
	}
	return statusByte(pkt, "set_device_time")
}

// GetFileCount issues GetFileCount (0x06): 4-byte count.
func (c *Client) GetFileCount(ctx context.Context) (uint32, error) {
	pkt, err := c.exec(ctx, cmdGetFileCount, nil)
	if err != nil {
		return 0, err
	}
	if len(pkt.Body) < 4 {
		return 0, xerrors.New(xerrors.KindProtocolError, "get_file_count: short response", nil)
	}
	return binary.BigEndian.Uint32(pkt.Body[:4]), nil
}

// GetCardInfo issues GetCardInfo (0x10): 12 bytes free_MiB|total_MiB|status.
func (c *Client) GetCardInfo(ctx context.Context) (StorageInfo, error) {
	pkt, err := c.exec(ctx, cmdGetCardInfo, nil)
	if err != nil {
		return StorageInfo{}, err
	}
	if len(pkt.Body) < 12 {
		return StorageInfo{}, xerrors.New(xerrors.KindProtocolError, "get_card_info: short response", nil)
	}
	freeMiB := binary.BigEndian.Uint32(pkt.Body[0:4])
	totalMiB := binary.BigEndian.Uint32(pkt.Body[4:8])
	status := binary.BigEndian.Uint32(pkt.Body[8:12])
	if status != 0 {
		return StorageInfo{}, xerrors.New(xerrors.KindProtocolError, fmt.Sprintf("get_card_info: device returned status %d", status), nil)
	}
	const mib = 1048576
	total := uint64(totalMiB) * mib
	free := uint64(freeMiB) * mib
	used := uint64(0)
	if total > free {
		used = total - free
	}
	return StorageInfo{TotalBytes: total, FreeBytes: free, UsedBytes: used}, nil
}

// GetStorageInfo combines GetCardInfo and GetFileCount into one StorageInfo
// (spec §3: "File count is obtained via a separate command").
func (c *Client) GetStorageInfo(ctx context.Context) (StorageInfo, error) {
	info, err := c.GetCardInfo(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	count, err := c.GetFileCount(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	info.FileCount = count
	return info, nil
}

// settings bit offsets/values are defined in wire.go.

// GetSettings issues GetSettings (0x0B): >=16 bytes, bits at offsets 3,
// 7, 11, 15 (spec §6.2). Bluetooth tone is inverted on the wire.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	pkt, err := c.exec(ctx, cmdGetSettings, nil)
	if err != nil {
		return Settings{}, err
	}
	if len(pkt.Body) < 16 {
		return Settings{}, xerrors.New(xerrors.KindProtocolError, "get_settings: short response", nil)
	}
	return Settings{
		AutoRecord:    pkt.Body[settingsOffsetAutoRecord] == settingsOn,
		AutoPlay:      pkt.Body[settingsOffsetAutoPlay] == settingsOn,
		Notification:  pkt.Body[settingsOffsetNotification] == settingsOn,
		BluetoothTone: pkt.Body[settingsOffsetBluetooth] == settingsBluetoothOn,
	}, nil
}

// SetSettings issues SetSettings (0x0C) for exactly one flag, leading
// bytes zero-padded to the target offset (spec §6.2: "only the byte being
// changed needs to be set").
func (c *Client) setSettingByte(ctx context.Context, offset int, value byte) error {
	body := make([]byte, offset+1)
	body[offset] = value
	pkt, err := c.exec(ctx, cmdSetSettings, body)
	if err != nil {
		return err
	}
	return statusByte(pkt, "set_settings")
}

// SetAutoRecord sets the auto-record flag.
func (c *Client) SetAutoRecord(ctx context.Context, enabled bool) error {
	return c.setSettingByte(ctx, settingsOffsetAutoRecord, onOffByte(enabled, settingsOn, settingsOff))
}

// SetAutoPlay sets the auto-play flag.
func (c *Client) SetAutoPlay(ctx context.Context, enabled bool) error {
	return c.setSettingByte(ctx, settingsOffsetAutoPlay, onOffByte(enabled, settingsOn, settingsOff))
}

// SetNotification sets the notification flag.
func (c *Client) SetNotification(ctx context.Context, enabled bool) error {
	return c.setSettingByte(ctx, settingsOffsetNotification, onOffByte(enabled, settingsOn, settingsOff))
}

// SetBluetoothTone sets the bluetooth-tone flag, which is semantically
// inverted on the wire (spec §6.2).
func (c *Client) SetBluetoothTone(ctx context.Context, enabled bool) error {
	return c.setSettingByte(ctx, settingsOffsetBluetooth, onOffByte(enabled, settingsBluetoothOn, settingsBluetoothOff))
}

func onOffByte(enabled bool, on, off byte) byte {
	if enabled {
		return on
	}
	return off
}

// DeleteFile issues DeleteFile (0x07): filename ASCII body, 1-byte status.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	pkt, err := c.exec(ctx, cmdDeleteFile, []byte(name))
	if err != nil {
		return err
	}
	return statusByte(pkt, "delete_file")
}

// RequestFirmwareUpgrade issues RequestFirmwareUpgrade (0x08): 4-byte size +
// 4-byte version, 1-byte result code.
func (c *Client) RequestFirmwareUpgrade(ctx context.Context, size, version uint32) error {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], size)
	binary.BigEndian.PutUint32(body[4:8], version)
	pkt, err := c.exec(ctx, cmdRequestFirmwareUpgrade, body)
	if err != nil {
		return err
	}
	return statusByte(pkt, "request_firmware_upgrade")
}

// FirmwareUpload issues FirmwareUpload (0x09) once per raw chunk.
func (c *Client) FirmwareUpload(ctx context.Context, chunk []byte) error {
	pkt, err := c.exec(ctx, cmdFirmwareUpload, chunk)
	if err != nil {
		return err
	}
	return statusByte(pkt, "firmware_upload")
}

// FormatCard issues FormatCard (0x11) with the documented magic handshake
// (spec §6.2, §9: implemented verbatim, unconfirmed against hardware).
func (c *Client) FormatCard(ctx context.Context) error {
	pkt, err := c.exec(ctx, cmdFormatCard, formatMagic[:])
	if err != nil {
		return err
	}
	return statusByte(pkt, "format_card")
}

// RestoreFactorySettings issues RestoreFactorySettings (0x13) with the same
// magic handshake as FormatCard.
func (c *Client) RestoreFactorySettings(ctx context.Context) error {
	pkt, err := c.exec(ctx, cmdRestoreFactorySettings, formatMagic[:])
	if err != nil {
		return err
	}
	return statusByte(pkt, "restore_factory_settings")
}

// GetRecordingFile issues GetRecordingFile (0x12): returns the active
// recording's filename, or "" if none (spec §6.2: "filename or empty").
func (c *Client) GetRecordingFile(ctx context.Context) (string, error) {
	pkt, err := c.exec(ctx, cmdGetRecordingFile, nil)
	if err != nil {
		return "", err
	}
	return nullTerminatedASCII(pkt.Body), nil
}

// SendScheduleInfo issues SendScheduleInfo (0x14): 52 bytes per meeting, 52
// zeros for an empty schedule (spec §6.2).
func (c *Client) SendScheduleInfo(ctx context.Context, meetings []bcd.Meeting) error {
	body := bcd.EncodeSchedule(meetings)
	pkt, err := c.exec(ctx, cmdSendScheduleInfo, body)
	if err != nil {
		return err
	}
	return statusByte(pkt, "send_schedule_info")
}

// recordFromParsed converts a streamparser.File into a Recording, deriving
// Duration and CreatedAt (spec §4.6, §4.7).
func (c *Client) recordFromParsed(f streamparser.File) Recording {
	createdAt, ok := filename.ParseRecordedAt(f.Name, c.now)
	return Recording{
		Name:        f.Name,
		Length:      f.Length,
		Version:     f.Version,
		Duration:    time.Duration(filename.Duration(f.Version, f.Length) * float64(time.Second)),
		CreatedAt:   createdAt,
		DateGuessed: !ok,
	}
}

const fileListCmdID = cmdGetFileList

// fetchFileList issues GetFileList (0x04) and incrementally parses the
// streamed TLV response (spec §4.4.1), emitting batches of up to 10 via
// the status sink with a ~200ms pause between batches (spec §4.4.2).
func (c *Client) fetchFileList(ctx context.Context) ([]Recording, error) {
	d, err := c.requireConnected()
	if err != nil {
		return nil, err
	}

	p := streamparser.NewFileListParser()
	var leftover []byte
	var all []Recording
	var batch []Recording

	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.status.Publish(StatusEvent{Operation: "list_recordings", Status: StatusStreaming, NewFiles: batch})
		batch = nil
	}

	onPacket := func(pkt *framer.Packet) error {
		buf := append(leftover, pkt.Body...)
		files, rest, _ := p.Feed(buf)
		leftover = append([]byte(nil), rest...)
		for _, f := range files {
			rec := c.recordFromParsed(f)
			all = append(all, rec)
			batch = append(batch, rec)
			if len(batch) >= 10 {
				flush()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(200 * time.Millisecond):
				}
			}
		}
		if total, ok := p.HeaderTotal(); ok && uint32(len(all)) >= total {
			return errStreamDone
		}
		return nil
	}

	err = d.ExecStream(ctx, fileListCmdID, nil, c.cfg.CommandTimeout, c.cfg.StreamOverall, c.cfg.StreamQuiet, onPacket)
	flush()
	if err != nil && err != errStreamDone {
		c.handleTransportError(err)
		return nil, err
	}
	return all, nil
}

// errStreamDone is a private sentinel used to stop ExecStream early once
// the header's declared total file count has been reached (spec §4.4.1's
// early-termination rule); it is never returned to callers.
var errStreamDone = fmt.Errorf("jensen: file list complete")

// ListRecordings implements the cache-aware read path (spec §4.8):
// list_recordings(force_refresh).
func (c *Client) ListRecordings(ctx context.Context, forceRefresh bool) ([]Recording, error) {
	c.status.Publish(StatusEvent{Operation: "list_recordings", Status: StatusInProgress})

	c.mu.RLock()
	serial := c.deviceSerial
	c.mu.RUnlock()
	if serial == "" {
		return nil, ErrDeviceNotConnected
	}

	if !forceRefresh {
		c.cache.Load()
	}

	if !forceRefresh {
		if entry, ok := c.cache.Lookup(serial); ok {
			storage, err := c.GetStorageInfo(ctx)
			if err == nil {
				if entry.FileCount == storage.FileCount && entry.UsedBytes == storage.UsedBytes {
					recs := cacheToRecordings(entry.Recordings)
					c.status.Publish(StatusEvent{Operation: "list_recordings", Status: StatusCompleted, NewFiles: recs})
					return recs, nil
				}
				c.cache.TouchCounters(serial, storage.FileCount, storage.UsedBytes)
			}
			// storage-info fetch failure: cache is stale (spec §4.8's
			// invariant), fall through to a full refresh.
		}
	}

	recs, err := c.fetchFileList(ctx)
	if err != nil {
		// list_recordings degrades to an empty list rather than an error
		// (spec §7's Degradation policy).
		c.logger.Printf("jensen: list_recordings hard failure, returning empty: %v", err)
		c.status.Publish(StatusEvent{Operation: "list_recordings", Status: StatusErrorTag, Message: err.Error()})
		return nil, nil
	}

	storage, err := c.GetStorageInfo(ctx)
	if err != nil {
		c.logger.Printf("jensen: list_recordings storage refresh failed: %v", err)
	}
	c.cache.Store(serial, recordingsToCache(recs), storage.FileCount, storage.UsedBytes, c.now())
	c.status.Publish(StatusEvent{Operation: "list_recordings", Status: StatusCompleted, NewFiles: recs})
	return recs, nil
}

func cacheToRecordings(in []cache.Recording) []Recording {
	out := make([]Recording, len(in))
	for i, r := range in {
		out[i] = Recording{Name: r.Name, Length: r.Length, Version: r.Version, Duration: r.Duration, CreatedAt: r.CreatedAt, DateGuessed: r.DateGuessed}
	}
	return out
}

func recordingsToCache(in []Recording) []cache.Recording {
	out := make([]cache.Recording, len(in))
	for i, r := range in {
		out[i] = cache.Recording{Name: r.Name, Length: r.Length, Version: r.Version, Duration: r.Duration, CreatedAt: r.CreatedAt, DateGuessed: r.DateGuessed}
	}
	return out
}

// download runs the accumulator loop against a streamed block-read command
// (spec §4.5), publishing progress to operation op.
func (c *Client) download(ctx context.Context, cmdID uint16, body []byte, declaredSize uint32, op string) ([]byte, error) {
	d, err := c.requireConnected()
	if err != nil {
		return nil, err
	}

	acc := downloader.NewAccumulator(declaredSize, func(received, total uint32) {
		c.status.Publish(StatusEvent{Operation: op, Progress: progressPercent(received, total), Total: 100, Status: StatusStreaming})
	})

	onPacket := func(pkt *framer.Packet) error {
		if acc.Feed(pkt.Body) {
			return errStreamDone
		}
		return nil
	}

	err = d.ExecStreamChunked(ctx, cmdID, body, c.cfg.CommandTimeout, c.cfg.DownloadOverall, c.cfg.DownloadChunkWait, onPacket)
	if err != nil && err != errStreamDone {
		c.handleTransportError(err)
		c.status.Publish(StatusEvent{Operation: op, Status: StatusErrorTag, Message: err.Error()})
		return nil, err
	}
	c.status.Publish(StatusEvent{Operation: op, Progress: 100, Total: 100, Status: StatusCompleted})
	return acc.Bytes(), nil
}

func progressPercent(received, total uint32) int {
	if total == 0 {
		return 0
	}
	p := int(uint64(received) * 100 / uint64(total))
	if p > 100 {
		p = 100
	}
	return p
}

// TransferFile issues TransferFile (0x05): filename ASCII body, streamed
// chunks (spec §6.2). Per DESIGN.md's Open Question decision, this mirrors
// GetFileBlock's stream-collection behavior and is the less-exercised of
// the two download commands.
func (c *Client) TransferFile(ctx context.Context, name string, declaredSize uint32) ([]byte, error) {
	return c.download(ctx, cmdTransferFile, []byte(name), declaredSize, "download:"+name)
}

// GetFileBlock issues GetFileBlock (0x0D): 4-byte length + filename body,
// streamed chunks (spec §6.2, §4.5).
func (c *Client) GetFileBlock(ctx context.Context, name string, declaredSize uint32) ([]byte, error) {
	body := make([]byte, 4+len(name))
	binary.BigEndian.PutUint32(body[0:4], declaredSize)
	copy(body[4:], name)
	return c.download(ctx, cmdGetFileBlock, body, declaredSize, "download:"+name)
}

// Counters exposes the Dispatcher's error/command counters (spec §4.9's
// error-count threshold).
func (c *Client) Counters() (dispatcher.Counters, error) {
	d, err := c.requireConnected()
	if err != nil {
		return dispatcher.Counters{}, err
	}
	return d.Counters(), nil
}

// ResetErrorCounts clears the Dispatcher's and lifecycle's error counters
// (spec §9's redesign flag: explicit call instead of randomized reset).
func (c *Client) ResetErrorCounts() {
	c.mu.RLock()
	d := c.dispatcher
	c.mu.RUnlock()
	if d != nil {
		d.ResetErrorCounts()
	}
	c.lifecycle.ResetErrorCounts()
}

// AutoReconnect attempts one auto-reconnect pass (spec §4.9); intended to
// be called periodically by a long-running host such as cmd/jensen-agent.
func (c *Client) AutoReconnect(ctx context.Context) error {
	if !c.lifecycle.ShouldAutoReconnect() {
		return nil
	}
	return c.Connect(ctx)
}
