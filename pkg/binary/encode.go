package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/S1riyS/tinyfs/internal/models"
)

const (
	// DirentNameLen is the fixed width of the name field of a directory slot.
	DirentNameLen = 40
	// DirentSize is the width of one directory slot: name followed by an int32 inumber.
	DirentSize = DirentNameLen + 4
)

// EncodeDirent writes name and ino into slot. The name is zero padded.
func EncodeDirent(slot []byte, name string, ino int64) error {
	if len(slot) < DirentSize {
		return fmt.Errorf("dirent slot too small: %d bytes", len(slot))
	}
	if len(name) > DirentNameLen {
		return fmt.Errorf("dirent name too long: %d bytes", len(name))
	}

	// name (char[40], zero padded)
	n := copy(slot[:DirentNameLen], name)
	clear(slot[n:DirentNameLen])

	// ino (int32, 4 bytes)
	binary.LittleEndian.PutUint32(slot[DirentNameLen:DirentSize], uint32(int32(ino)))

	return nil
}

// DecodeDirent reads a slot written by EncodeDirent. An empty slot yields
// models.NoBlock as the inumber.
func DecodeDirent(slot []byte) (string, int64) {
	ino := int64(int32(binary.LittleEndian.Uint32(slot[DirentNameLen:DirentSize])))
	name := slot[:DirentNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), ino
}

// ClearDirent marks slot as empty.
func ClearDirent(slot []byte) {
	empty := models.NoBlock
	clear(slot[:DirentNameLen])
	binary.LittleEndian.PutUint32(slot[DirentNameLen:DirentSize], uint32(int32(empty)))
}

func EncodeNodeMeta(meta *models.NodeMeta) ([]byte, error) {
	buf := new(bytes.Buffer)

	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Ino); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	// type (int16, 2 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int16(meta.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	// size (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Size); err != nil {
		return nil, fmt.Errorf("failed to encode size: %w", err)
	}

	// ref_count (int32, 4 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int32(meta.RefCount)); err != nil {
		return nil, fmt.Errorf("failed to encode ref_count: %w", err)
	}

	// target (uint16 length + bytes)
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(meta.Target))); err != nil {
		return nil, fmt.Errorf("failed to encode target length: %w", err)
	}
	if _, err := buf.WriteString(meta.Target); err != nil {
		return nil, fmt.Errorf("failed to encode target: %w", err)
	}

	return buf.Bytes(), nil
}
