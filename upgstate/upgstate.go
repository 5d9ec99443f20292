// Package upgstate persists the non-volatile upgrade state record: the
// handful of fields that must survive an uncontrolled reset between "image
// staged" and "bootloader swap confirmed".
//
// The record is a single fixed-size blob under one key, always read and
// written as a whole. Fields live at fixed little-endian offsets, in layout
// order; everything at or beyond the reserved boundary survives a partial
// reset. A missing, unreadable or wrongly-sized record degrades to the zero
// record (every valid flag false), so a corrupted store behaves like
// "nothing was staged" instead of failing.
package upgstate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mcustage/fwstage/kvstore"
	"github.com/mcustage/fwstage/mcuimg"
)

// CriteriaMaxLen is the maximum length in bytes of an installed criteria
// marker.
const CriteriaMaxLen = 64

// DefaultKey is the key the record is stored under.
const DefaultKey = "fwstage_upgrade_state"

// Record layout. Offsets are part of the on-disk format; fields before
// reservedOffset are cleared by a partial reset, fields at or beyond it are
// preserved.
const (
	offStageVersionValid       = 0  // u8
	offStageVersion            = 1  // major u8, minor u8, revision u16, build u32
	offInstallRebootedValid    = 9  // u8
	offInstallRebooted         = 10 // u8
	offStageCriteriaValid      = 11 // u8
	offStageCriteriaLen        = 12 // u8
	offStageCriteria           = 13 // CriteriaMaxLen bytes
	reservedOffset             = offStageCriteria + CriteriaMaxLen
	offPersistentCriteriaValid = reservedOffset     // u8
	offPersistentCriteriaLen   = reservedOffset + 1 // u8
	offPersistentCriteria      = reservedOffset + 2 // CriteriaMaxLen bytes
	recordSize                 = offPersistentCriteria + CriteriaMaxLen
)

var (
	// ErrCriteriaTooLong is returned when a criteria marker exceeds
	// CriteriaMaxLen; the record is left unmodified.
	ErrCriteriaTooLong = fmt.Errorf("upgstate: installed criteria exceeds %d bytes", CriteriaMaxLen)

	// ErrNoStageCriteria is returned by SettleCriteria when no valid stage
	// criteria is recorded; the record is left unmodified.
	ErrNoStageCriteria = errors.New("upgstate: no stage installed criteria to settle")
)

type record [recordSize]byte

// Store reads and writes the upgrade state record through a kvstore.Store.
// Every mutation is a whole-record read-modify-write. Concurrent mutation is
// excluded by the engine's single-attempt lifecycle, not by locking here.
type Store struct {
	kv  kvstore.Store
	key string
}

func New(kv kvstore.Store) *Store {
	return &Store{kv: kv, key: DefaultKey}
}

// load returns the current record, degrading to the zero record when the
// store has no usable value.
func (s *Store) load() record {
	var r record
	b, err := s.kv.Get(s.key)
	if err != nil || len(b) != recordSize {
		return record{}
	}
	copy(r[:], b)
	return r
}

func (s *Store) save(r record) error {
	return s.kv.Set(s.key, r[:])
}

// Reset clears the record. With includeReserved the whole record is zeroed;
// otherwise only the prefix before the reserved boundary is cleared and the
// settled fields beyond it survive.
func (s *Store) Reset(includeReserved bool) error {
	var r record
	if !includeReserved {
		r = s.load()
		for i := 0; i < reservedOffset; i++ {
			r[i] = 0
		}
	}
	return s.save(r)
}

// SetStageVersion records the version of the image being staged, before any
// bytes beyond the header are accepted.
func (s *Store) SetStageVersion(v mcuimg.Version) error {
	r := s.load()
	r[offStageVersion] = v.Major
	r[offStageVersion+1] = v.Minor
	binary.LittleEndian.PutUint16(r[offStageVersion+2:], v.Revision)
	binary.LittleEndian.PutUint32(r[offStageVersion+4:], v.Build)
	r[offStageVersionValid] = 1
	return s.save(r)
}

// StageVersion returns the recorded stage version, if valid.
func (s *Store) StageVersion() (mcuimg.Version, bool) {
	r := s.load()
	if r[offStageVersionValid] == 0 {
		return mcuimg.Version{}, false
	}
	return mcuimg.Version{
		Major:    r[offStageVersion],
		Minor:    r[offStageVersion+1],
		Revision: binary.LittleEndian.Uint16(r[offStageVersion+2:]),
		Build:    binary.LittleEndian.Uint32(r[offStageVersion+4:]),
	}, true
}

// SetInstallRebooted records whether the device has rebooted since Activate
// requested the swap.
func (s *Store) SetInstallRebooted(rebooted bool) error {
	r := s.load()
	r[offInstallRebooted] = 0
	if rebooted {
		r[offInstallRebooted] = 1
	}
	r[offInstallRebootedValid] = 1
	return s.save(r)
}

// InstallRebooted returns the recorded flag, if valid.
func (s *Store) InstallRebooted() (rebooted, ok bool) {
	r := s.load()
	if r[offInstallRebootedValid] == 0 {
		return false, false
	}
	return r[offInstallRebooted] != 0, true
}

// SetStageCriteria records the caller-supplied completion marker held
// provisionally until the new image is confirmed.
func (s *Store) SetStageCriteria(criteria string) error {
	if len(criteria) > CriteriaMaxLen {
		return ErrCriteriaTooLong
	}
	r := s.load()
	for i := 0; i < CriteriaMaxLen; i++ {
		r[offStageCriteria+i] = 0
	}
	copy(r[offStageCriteria:], criteria)
	r[offStageCriteriaLen] = uint8(len(criteria))
	r[offStageCriteriaValid] = 1
	return s.save(r)
}

// StageCriteria returns the provisional criteria marker, if valid.
func (s *Store) StageCriteria() (string, bool) {
	r := s.load()
	if r[offStageCriteriaValid] == 0 {
		return "", false
	}
	n := int(r[offStageCriteriaLen])
	return string(r[offStageCriteria : offStageCriteria+n]), true
}

// SettleCriteria promotes the provisional stage criteria to the persistent
// slot and clears the stage copy. This is the one operation that turns
// provisional state into durable truth.
func (s *Store) SettleCriteria() error {
	r := s.load()
	if r[offStageCriteriaValid] == 0 {
		return ErrNoStageCriteria
	}
	n := int(r[offStageCriteriaLen])
	if n > CriteriaMaxLen {
		return ErrCriteriaTooLong
	}
	for i := 0; i < CriteriaMaxLen; i++ {
		r[offPersistentCriteria+i] = 0
	}
	copy(r[offPersistentCriteria:], r[offStageCriteria:offStageCriteria+n])
	r[offPersistentCriteriaLen] = uint8(n)
	r[offPersistentCriteriaValid] = 1

	r[offStageCriteriaValid] = 0
	r[offStageCriteriaLen] = 0
	for i := 0; i < CriteriaMaxLen; i++ {
		r[offStageCriteria+i] = 0
	}
	return s.save(r)
}

// PersistentCriteria returns the settled criteria marker, if valid.
func (s *Store) PersistentCriteria() (string, bool) {
	r := s.load()
	if r[offPersistentCriteriaValid] == 0 {
		return "", false
	}
	n := int(r[offPersistentCriteriaLen])
	if n > CriteriaMaxLen {
		return "", false
	}
	return string(r[offPersistentCriteria : offPersistentCriteria+n]), true
}
