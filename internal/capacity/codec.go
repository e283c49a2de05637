package capacity

import (
	"encoding/binary"
	"fmt"
	"os"
)

// EncodeFile renders the capacity tracker's persistent format: two
// big-endian 32-bit words, `capacity^K0` and `capacity^K1`, per
// spec.md §4.7 and §6.
func EncodeFile(capacityMAh uint32, k0, k1 uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], capacityMAh^k0)
	binary.BigEndian.PutUint32(buf[4:8], capacityMAh^k1)
	return buf
}

// DecodeFile reverses EncodeFile, validating that both words decode to
// the same capacity value before returning it. A corrupt second word
// (or any other word-level tamper) is detected and rejected, per
// spec.md §8's round-trip property.
func DecodeFile(data []byte, k0, k1 uint32) (uint32, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("capacity: tracker file too short: %d bytes", len(data))
	}
	a := binary.BigEndian.Uint32(data[0:4]) ^ k0
	b := binary.BigEndian.Uint32(data[4:8]) ^ k1
	if a != b {
		return 0, fmt.Errorf("capacity: tracker file corrupt: words disagree (%d != %d)", a, b)
	}
	return a, nil
}

// SaveFile atomically writes the encoded capacity to path via a temp
// file and rename, mirroring the config package's atomic-save idiom.
func SaveFile(path string, capacityMAh uint32, k0, k1 uint32) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, EncodeFile(capacityMAh, k0, k1), 0o644); err != nil {
		return fmt.Errorf("capacity: could not write tracker temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("capacity: could not replace tracker file: %w", err)
	}
	return nil
}

// LoadFile reads and decodes the tracker file, retrying up to
// maxRetries times on a transient read error per spec.md §4.7's Init
// state ("open persistent file, retry up to 5 times").
func LoadFile(path string, k0, k1 uint32, maxRetries int) (uint32, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		return DecodeFile(data, k0, k1)
	}
	return 0, fmt.Errorf("capacity: tracker file unreadable after %d attempts: %w", maxRetries, lastErr)
}
