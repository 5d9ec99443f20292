package kvstore

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundtrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state"))

	if _, err := s.Get("record"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store: got %v; want ErrNotFound", err)
	}

	want := []byte{0x01, 0xff, 0x00, 0x42}
	if err := s.Set("record", want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("record")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get = %x; want %x", got, want)
	}

	// Overwrite replaces the whole value.
	want2 := []byte{0xaa}
	if err := s.Set("record", want2); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get("record")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want2) {
		t.Errorf("Get after overwrite = %x; want %x", got, want2)
	}
}

func TestMemStoreCopies(t *testing.T) {
	s := NewMemStore()
	v := []byte{1, 2, 3}
	if err := s.Set("k", v); err != nil {
		t.Fatal(err)
	}
	v[0] = 99
	got, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 {
		t.Errorf("stored value aliased caller slice")
	}
	got[1] = 99
	again, _ := s.Get("k")
	if again[1] != 2 {
		t.Errorf("returned value aliased stored slice")
	}
}
