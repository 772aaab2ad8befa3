package pintosfs

// NameMax is the maximum number of visible characters in a path
// component (§6: "Names are at most 14 characters").
const NameMax = 14

// dirEntrySize is the packed on-disk size of one directory entry:
// inode_sector(4) + name[NameMax+1](15) + in_use(1) = 20 bytes. The
// spec's prose states "22 B, packed" in two places but its own field
// widths sum to 20; per §9's guidance to pick a policy on ambiguity
// rather than guess intent, pintosfs takes the field widths as
// authoritative and uses 20 (see DESIGN.md).
const dirEntrySize = 4 + (NameMax + 1) + 1

// dirEntry is the in-memory decode of one packed directory entry.
type dirEntry struct {
	InodeSector uint32
	Name        string
	InUse       bool
}

func (e *dirEntry) marshal() []byte {
	buf := make([]byte, dirEntrySize)
	buf[0] = byte(e.InodeSector)
	buf[1] = byte(e.InodeSector >> 8)
	buf[2] = byte(e.InodeSector >> 16)
	buf[3] = byte(e.InodeSector >> 24)
	copy(buf[4:4+NameMax+1], e.Name)
	if e.InUse {
		buf[4+NameMax+1] = 1
	}
	return buf
}

func (e *dirEntry) unmarshal(buf []byte) {
	e.InodeSector = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	nameBuf := buf[4 : 4+NameMax+1]
	n := 0
	for n < len(nameBuf) && nameBuf[n] != 0 {
		n++
	}
	e.Name = string(nameBuf[:n])
	e.InUse = buf[4+NameMax+1] != 0
}
