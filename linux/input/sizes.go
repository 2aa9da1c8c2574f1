//go:build linux

package input

// Byte lengths of the EVIOCGBIT bitmasks for each event category,
// computed the same way the kernel sizes them: ceil(count/8). These are
// also the lengths of the corresponding capability fields in the wire
// protocol's AddDevice record.
const (
	EvBytes   = (EV_CNT + 7) / 8
	KeyBytes  = (KEY_CNT + 7) / 8
	RelBytes  = (REL_CNT + 7) / 8
	AbsBytes  = (ABS_CNT + 7) / 8
	MscBytes  = (MSC_CNT + 7) / 8
	LedBytes  = (LED_CNT + 7) / 8
	SndBytes  = (SND_CNT + 7) / 8
	SwBytes   = (SW_CNT + 7) / 8
	PropBytes = (INPUT_PROP_CNT + 7) / 8
)
