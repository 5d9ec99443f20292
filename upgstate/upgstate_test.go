package upgstate

import (
	"errors"
	"strings"
	"testing"

	"github.com/mcustage/fwstage/kvstore"
	"github.com/mcustage/fwstage/mcuimg"
)

func TestZeroRecord(t *testing.T) {
	s := New(kvstore.NewMemStore())
	if _, ok := s.StageVersion(); ok {
		t.Error("StageVersion valid on empty store")
	}
	if _, ok := s.InstallRebooted(); ok {
		t.Error("InstallRebooted valid on empty store")
	}
	if _, ok := s.StageCriteria(); ok {
		t.Error("StageCriteria valid on empty store")
	}
	if _, ok := s.PersistentCriteria(); ok {
		t.Error("PersistentCriteria valid on empty store")
	}
}

func TestCorruptRecordDegradesToZero(t *testing.T) {
	kv := kvstore.NewMemStore()
	s := New(kv)
	if err := s.SetStageCriteria("v2"); err != nil {
		t.Fatal(err)
	}
	// A wrongly-sized blob must behave like no record at all.
	if err := kv.Set(DefaultKey, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.StageCriteria(); ok {
		t.Error("StageCriteria valid after record corruption")
	}
	// Mutation on a corrupt record starts from zero and succeeds.
	if err := s.SetInstallRebooted(true); err != nil {
		t.Fatal(err)
	}
	if rebooted, ok := s.InstallRebooted(); !ok || !rebooted {
		t.Errorf("InstallRebooted = %t, %t; want true, true", rebooted, ok)
	}
}

func TestStageVersionRoundtrip(t *testing.T) {
	s := New(kvstore.NewMemStore())
	want := mcuimg.Version{Major: 2, Minor: 0, Revision: 513, Build: 70000}
	if err := s.SetStageVersion(want); err != nil {
		t.Fatal(err)
	}
	got, ok := s.StageVersion()
	if !ok {
		t.Fatal("StageVersion not valid after set")
	}
	if got != want {
		t.Errorf("StageVersion = %v; want %v", got, want)
	}
}

func TestCriteriaTooLong(t *testing.T) {
	s := New(kvstore.NewMemStore())
	if err := s.SetStageCriteria("ok"); err != nil {
		t.Fatal(err)
	}
	err := s.SetStageCriteria(strings.Repeat("x", CriteriaMaxLen+1))
	if !errors.Is(err, ErrCriteriaTooLong) {
		t.Fatalf("got %v; want ErrCriteriaTooLong", err)
	}
	// The previous value must be untouched.
	if c, ok := s.StageCriteria(); !ok || c != "ok" {
		t.Errorf("StageCriteria = %q, %t; want \"ok\", true", c, ok)
	}

	// Exactly at the limit is fine.
	max := strings.Repeat("y", CriteriaMaxLen)
	if err := s.SetStageCriteria(max); err != nil {
		t.Fatal(err)
	}
	if c, _ := s.StageCriteria(); c != max {
		t.Errorf("StageCriteria = %q; want %d bytes of y", c, CriteriaMaxLen)
	}
}

func TestSettleCriteria(t *testing.T) {
	s := New(kvstore.NewMemStore())

	if err := s.SettleCriteria(); !errors.Is(err, ErrNoStageCriteria) {
		t.Fatalf("SettleCriteria on empty record: got %v; want ErrNoStageCriteria", err)
	}

	if err := s.SetStageCriteria("provider/name:2.0"); err != nil {
		t.Fatal(err)
	}
	if err := s.SettleCriteria(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.StageCriteria(); ok {
		t.Error("stage criteria still valid after settle")
	}
	if c, ok := s.PersistentCriteria(); !ok || c != "provider/name:2.0" {
		t.Errorf("PersistentCriteria = %q, %t; want settled value", c, ok)
	}

	// Settling again without a new stage criteria must refuse and leave
	// the persistent value alone.
	if err := s.SettleCriteria(); !errors.Is(err, ErrNoStageCriteria) {
		t.Fatalf("second settle: got %v; want ErrNoStageCriteria", err)
	}
	if c, _ := s.PersistentCriteria(); c != "provider/name:2.0" {
		t.Errorf("PersistentCriteria after refused settle = %q", c)
	}
}

func TestResetPreservesReserved(t *testing.T) {
	s := New(kvstore.NewMemStore())
	if err := s.SetStageVersion(mcuimg.Version{Major: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInstallRebooted(true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStageCriteria("v9"); err != nil {
		t.Fatal(err)
	}
	if err := s.SettleCriteria(); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(false); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.StageVersion(); ok {
		t.Error("StageVersion survived partial reset")
	}
	if _, ok := s.InstallRebooted(); ok {
		t.Error("InstallRebooted survived partial reset")
	}
	if c, ok := s.PersistentCriteria(); !ok || c != "v9" {
		t.Errorf("PersistentCriteria after partial reset = %q, %t; want \"v9\", true", c, ok)
	}

	if err := s.Reset(true); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.PersistentCriteria(); ok {
		t.Error("PersistentCriteria survived full reset")
	}
}

func TestRecordLayoutStable(t *testing.T) {
	// The offsets are an on-disk format; writing through one store and
	// reading through another over the same kv must agree.
	kv := kvstore.NewMemStore()
	w := New(kv)
	if err := w.SetStageVersion(mcuimg.Version{Major: 1, Minor: 2, Revision: 3, Build: 4}); err != nil {
		t.Fatal(err)
	}
	r := New(kv)
	v, ok := r.StageVersion()
	if !ok || v.Build != 4 {
		t.Errorf("second store read %v, %t; want build 4, true", v, ok)
	}

	b, err := kv.Get(DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != recordSize {
		t.Errorf("record size = %d; want %d", len(b), recordSize)
	}
}
