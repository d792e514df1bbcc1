package bin

import "encoding/binary"

func PutU16BE(dst []byte, v uint16) { binary.BigEndian.PutUint16(dst, v) }
func U16BE(src []byte) uint16       { return binary.BigEndian.Uint16(src) }
