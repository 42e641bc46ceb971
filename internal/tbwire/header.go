package tbwire

import (
	"encoding/binary"

	"github.com/observe-l/nrcoding/ldpc"
)

// Version of the record layout.
const Version uint8 = 1

// RecordHeader precedes every coded transport block in a dump.
type RecordHeader struct {
	Version    uint8
	BaseGraph  uint8
	RV         uint8
	Qm         uint8
	TBID       uint32
	Z          uint16
	C          uint16
	G          uint32 // coded bits
	PayloadLen uint32 // bytes following the header
}

const HeaderLen = 1 + 1 + 1 + 1 + 4 + 2 + 2 + 4 + 4

// HeaderFor describes a transport block coded with p.
func HeaderFor(id int, p ldpc.CodingParams, G int) RecordHeader {
	return RecordHeader{
		Version:   Version,
		BaseGraph: uint8(p.BaseGraph),
		RV:        uint8(p.RV),
		Qm:        uint8(p.Qm),
		TBID:      uint32(id),
		Z:         uint16(p.Z),
		C:         uint16(p.C),
		G:         uint32(G),
	}
}

func (h *RecordHeader) MarshalBinary(b []byte) []byte {
	if len(b) < HeaderLen {
		b = make([]byte, HeaderLen)
	}
	b[0] = h.Version
	b[1] = h.BaseGraph
	b[2] = h.RV
	b[3] = h.Qm
	binary.LittleEndian.PutUint32(b[4:8], h.TBID)
	binary.LittleEndian.PutUint16(b[8:10], h.Z)
	binary.LittleEndian.PutUint16(b[10:12], h.C)
	binary.LittleEndian.PutUint32(b[12:16], h.G)
	binary.LittleEndian.PutUint32(b[16:20], h.PayloadLen)
	return b[:HeaderLen]
}

func (h *RecordHeader) UnmarshalBinary(b []byte) bool {
	if len(b) < HeaderLen {
		return false
	}
	h.Version = b[0]
	h.BaseGraph = b[1]
	h.RV = b[2]
	h.Qm = b[3]
	h.TBID = binary.LittleEndian.Uint32(b[4:8])
	h.Z = binary.LittleEndian.Uint16(b[8:10])
	h.C = binary.LittleEndian.Uint16(b[10:12])
	h.G = binary.LittleEndian.Uint32(b[12:16])
	h.PayloadLen = binary.LittleEndian.Uint32(b[16:20])
	return true
}
