package cgrf

// magic identifies a CGRF buffer: the ASCII bytes 'C', 'G', 'R', 'F'.
var magic = [4]byte{'C', 'G', 'R', 'F'}

// version is the only buffer version this package produces or
// accepts.
const version uint16 = 1

// headerSize is magic(4) + version(2) + flags(2) + node_count(4) +
// root_index(4).
const headerSize = 16

// nodeHeaderSize is kind(1) + flags(1) + reserved(2) + payload_len(4).
const nodeHeaderSize = 8

// Node kind tags, fixed by the CGRF wire format.
const (
	nodeKindBool    byte = 0x01
	nodeKindS32     byte = 0x02
	nodeKindS64     byte = 0x03
	nodeKindF32     byte = 0x04
	nodeKindF64     byte = 0x05
	nodeKindString  byte = 0x06
	nodeKindList    byte = 0x07
	nodeKindVariant byte = 0x08
	nodeKindRecord  byte = 0x09
	nodeKindOption  byte = 0x0A
	nodeKindTuple   byte = 0x0B
	nodeKindU8      byte = 0x0C
	nodeKindU16     byte = 0x0D
	nodeKindU32     byte = 0x0E
	nodeKindU64     byte = 0x0F
	nodeKindS8      byte = 0x10
	nodeKindS16     byte = 0x11
	nodeKindChar    byte = 0x12
	nodeKindFlags   byte = 0x13
)

func nodeKindName(k byte) string {
	switch k {
	case nodeKindBool:
		return "bool"
	case nodeKindS32:
		return "s32"
	case nodeKindS64:
		return "s64"
	case nodeKindF32:
		return "f32"
	case nodeKindF64:
		return "f64"
	case nodeKindString:
		return "string"
	case nodeKindList:
		return "list"
	case nodeKindVariant:
		return "variant"
	case nodeKindRecord:
		return "record"
	case nodeKindOption:
		return "option"
	case nodeKindTuple:
		return "tuple"
	case nodeKindU8:
		return "u8"
	case nodeKindU16:
		return "u16"
	case nodeKindU32:
		return "u32"
	case nodeKindU64:
		return "u64"
	case nodeKindS8:
		return "s8"
	case nodeKindS16:
		return "s16"
	case nodeKindChar:
		return "char"
	case nodeKindFlags:
		return "flags"
	}
	return "unknown"
}
