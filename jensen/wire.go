package jensen

// Wire command ids (spec §6.2). Exhaustive for the core.
const (
	cmdGetDeviceInfo           uint16 = 0x01
	cmdGetDeviceTime           uint16 = 0x02
	cmdSetDeviceTime           uint16 = 0x03
	cmdGetFileList             uint16 = 0x04
	cmdTransferFile            uint16 = 0x05
	cmdGetFileCount            uint16 = 0x06
	cmdDeleteFile              uint16 = 0x07
	cmdRequestFirmwareUpgrade  uint16 = 0x08
	cmdFirmwareUpload          uint16 = 0x09
	cmdGetSettings             uint16 = 0x0B
	cmdSetSettings             uint16 = 0x0C
	cmdGetFileBlock            uint16 = 0x0D
	cmdGetCardInfo             uint16 = 0x10
	cmdFormatCard              uint16 = 0x11
	cmdGetRecordingFile        uint16 = 0x12
	cmdRestoreFactorySettings  uint16 = 0x13
	cmdSendScheduleInfo        uint16 = 0x14
)

// formatMagic is the 4-byte handshake required by FormatCard and
// RestoreFactorySettings (spec §6.2). Per spec §9 this magic is used
// verbatim for both destructive commands; unconfirmed against hardware
// whether this is intentional or a placeholder in the source protocol.
var formatMagic = [4]byte{0x01, 0x02, 0x03, 0x04}

// Settings bit offsets within the SetSettings body (spec §6.2).
const (
	settingsOffsetAutoRecord   = 3
	settingsOffsetAutoPlay     = 7
	settingsOffsetNotification = 11
	settingsOffsetBluetooth    = 15
)

const (
	settingsOn  byte = 1
	settingsOff byte = 2
	// Bluetooth tone is semantically inverted on the wire (spec §6.2).
	settingsBluetoothOn  byte = 2
	settingsBluetoothOff byte = 1
)
