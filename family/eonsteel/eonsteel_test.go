package eonsteel

import "testing"

func TestParseDirEntryName(t *testing.T) {
	e, err := ParseDirEntryName("64800000") // some arbitrary unix timestamp in hex
	if err != nil {
		t.Fatal(err)
	}
	if e.Timestamp.Unix() != 0x64800000 {
		t.Fatalf("got %d want %d", e.Timestamp.Unix(), int64(0x64800000))
	}
}

func TestParseDirEntryNameBadLength(t *testing.T) {
	if _, err := ParseDirEntryName("abc"); err == nil {
		t.Fatal("expected error on short filename")
	}
}

func TestSortEntriesNewestFirst(t *testing.T) {
	older, err1 := ParseDirEntryName("00000001")
	newer, err2 := ParseDirEntryName("00000002")
	if err1 != nil || err2 != nil {
		t.Fatal(err1, err2)
	}
	entries := []DirEntry{older, newer}
	SortEntriesNewestFirst(entries)
	if entries[0].Name != newer.Name {
		t.Fatalf("expected newest first, got %+v", entries)
	}
}
