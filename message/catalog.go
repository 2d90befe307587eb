package message

// A handful of messages every VISCA camera understands. The catalog is not
// meant to be exhaustive; anything else can be declared by users.

var Home = MustCommand("home", []byte{0x81, 0x01, 0x06, 0x04, 0xFF})

var PowerOn = MustCommand("power on", []byte{0x81, 0x01, 0x04, 0x00, 0x02, 0xFF})

var PowerOff = MustCommand("power off", []byte{0x81, 0x01, 0x04, 0x00, 0x03, 0xFF})

// PresetRecall moves to the preset stored under "preset" (0-127). The
// Completion arrives only once the camera stops moving.
var PresetRecall = MustCommand("preset recall",
	[]byte{0x81, 0x01, 0x04, 0x3F, 0x02, 0x00, 0xFF},
	WithParam("preset", Param{Nibbles: []int{10, 11}, Encode: presetEncoder}),
)

var PresetSet = MustCommand("preset set",
	[]byte{0x81, 0x01, 0x04, 0x3F, 0x01, 0x00, 0xFF},
	WithParam("preset", Param{Nibbles: []int{10, 11}, Encode: presetEncoder}),
)

// ZoomDirect zooms to "position" (0x0000 wide to 0x4000 tele on most models).
var ZoomDirect = MustCommand("zoom direct",
	[]byte{0x81, 0x01, 0x04, 0x47, 0x00, 0x00, 0x00, 0x00, 0xFF},
	WithParam("position", Param{Nibbles: []int{9, 11, 13, 15}}),
)

var PowerInquiry = MustInquiry("power",
	[]byte{0x81, 0x09, 0x04, 0x00, 0xFF},
	WithReply(MustReply(
		[]byte{0x90, 0x50, 0x00, 0xFF},
		[]byte{0xFF, 0xFF, 0xF0, 0xFF},
		map[string]ReplyParam{
			"power": {Nibbles: []int{5}, Decode: MapDecoder(map[int]string{0x2: "on", 0x3: "standby"})},
		},
	)),
)

var ZoomPositionInquiry = MustInquiry("zoom position",
	[]byte{0x81, 0x09, 0x04, 0x47, 0xFF},
	WithReply(MustReply(
		[]byte{0x90, 0x50, 0x00, 0x00, 0x00, 0x00, 0xFF},
		[]byte{0xFF, 0xFF, 0xF0, 0xF0, 0xF0, 0xF0, 0xFF},
		map[string]ReplyParam{
			"position": {Nibbles: []int{5, 7, 9, 11}},
		},
	)),
)

var PanTiltPositionInquiry = MustInquiry("pan/tilt position",
	[]byte{0x81, 0x09, 0x06, 0x12, 0xFF},
	WithReply(MustReply(
		[]byte{0x90, 0x50, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF},
		[]byte{0xFF, 0xFF, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xFF},
		map[string]ReplyParam{
			"pan":  {Nibbles: []int{5, 7, 9, 11}, Decode: signed16},
			"tilt": {Nibbles: []int{13, 15, 17, 19}, Decode: signed16},
		},
	)),
)

func presetEncoder(v any) (int, error) {
	n, err := IntEncoder(v)
	if err != nil {
		return 0, err
	}
	if n > 127 {
		return 0, ErrValueOutOfRange
	}
	return n, nil
}

// signed16 interprets the four nibble position as a two's complement int16.
func signed16(v int) any {
	return int(int16(uint16(v)))
}
