package capacity

import (
	"path/filepath"
	"testing"
)

func TestEncodeDecodeFile_RoundTrip(t *testing.T) {
	data := EncodeFile(3150, 0xA5A5F00D, 0x5A5A0FF0)
	got, err := DecodeFile(data, 0xA5A5F00D, 0x5A5A0FF0)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if got != 3150 {
		t.Fatalf("expected 3150, got %d", got)
	}
}

func TestDecodeFile_DetectsCorruptSecondWord(t *testing.T) {
	data := EncodeFile(3150, 0xA5A5F00D, 0x5A5A0FF0)
	data[7] ^= 0xFF // flip a bit in the second word only
	if _, err := DecodeFile(data, 0xA5A5F00D, 0x5A5A0FF0); err == nil {
		t.Fatalf("expected corruption to be detected when the two words disagree")
	}
}

func TestDecodeFile_RejectsShortFile(t *testing.T) {
	if _, err := DecodeFile([]byte{1, 2, 3}, 1, 2); err == nil {
		t.Fatalf("expected a short file to be rejected")
	}
}

func TestSaveLoadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.bin")
	if err := SaveFile(path, 2980, 11, 22); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := LoadFile(path, 11, 22, 5)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != 2980 {
		t.Fatalf("expected 2980, got %d", got)
	}
}

func TestLoadFile_RetriesThenFailsOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.bin")
	if _, err := LoadFile(path, 1, 2, 3); err == nil {
		t.Fatalf("expected an error loading a file that was never written")
	}
}
