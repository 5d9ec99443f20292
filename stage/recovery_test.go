package stage

import (
	"errors"
	"testing"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/boot"
	"github.com/mcustage/fwstage/mcuimg"
)

// TestUpgradeLifecycle walks the full happy path: stage, activate, simulated
// reboot with bootloader swap, boot-time recovery confirming and settling.
func TestUpgradeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	img := makeImage(t, 10000, mcuimg.Version{Major: 2})
	stageImage(t, env.engine, img, 300)

	res, err := env.engine.Activate("provider/firmware:2.0")
	if err != nil {
		t.Fatal(err)
	}
	if res != RequiredReboot {
		t.Fatalf("Activate = %v; want RequiredReboot", res)
	}

	// Simulated reboot: the bootloader swaps the staged image into the
	// primary slot, unconfirmed, and a fresh process starts.
	newPrimary := newTestDevice(t)
	swapped := make([]byte, blockdev.AlignUp(int64(len(img)), testProgramSize))
	for i := range swapped {
		swapped[i] = blockdev.EraseByte
	}
	copy(swapped, img)
	if err := newPrimary.Program(swapped, 0); err != nil {
		t.Fatal(err)
	}
	newSecondary := newTestDevice(t)
	loader := boot.NewTrailerLoader(newPrimary, newSecondary)
	restarted := false
	engine := New(func() (blockdev.Device, error) {
		return newSecondary, nil
	}, loader, env.state, WithRestart(func() { restarted = true }))

	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if restarted {
		t.Error("revert restart fired on the happy path")
	}
	if confirmed, err := loader.Confirmed(boot.Primary); err != nil || !confirmed {
		t.Errorf("primary confirmed = %t, %v; want true, nil", confirmed, err)
	}
	if installed, err := engine.QueryInstalled("provider/firmware:2.0"); err != nil || !installed {
		t.Errorf("QueryInstalled = %t, %v; want true, nil", installed, err)
	}
	// The attempt fields are cleared, the settled criteria survives.
	if _, ok := env.state.StageVersion(); ok {
		t.Error("stage version survived recovery")
	}
	if _, ok := env.state.StageCriteria(); ok {
		t.Error("stage criteria survived recovery")
	}
	if c, ok := env.state.PersistentCriteria(); !ok || c != "provider/firmware:2.0" {
		t.Errorf("persistent criteria = %q, %t; want settled", c, ok)
	}

	// Running recovery again must be a no-op.
	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if restarted {
		t.Error("second recovery run requested a restart")
	}
	if installed, _ := engine.QueryInstalled("provider/firmware:2.0"); !installed {
		t.Error("second recovery run lost the settled criteria")
	}
}

func TestOnBootNoAttempt(t *testing.T) {
	env := newTestEnv(t)
	restarted := false
	engine := New(func() (blockdev.Device, error) {
		return env.secondary, nil
	}, env.loader, env.state, WithRestart(func() { restarted = true }))

	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if restarted {
		t.Error("restart fired with no upgrade attempt recorded")
	}
	if _, ok := env.state.InstallRebooted(); ok {
		t.Error("recovery wrote state with no attempt in progress")
	}
	if _, ok := env.state.PersistentCriteria(); ok {
		t.Error("recovery settled criteria with no attempt in progress")
	}
}

// TestOnBootRevert forces the unconfirmed path: the bootloader refuses to
// confirm, so recovery clears the attempt and requests a reset.
func TestOnBootRevert(t *testing.T) {
	loader := &fakeLoader{
		active:     mcuimg.Header{Magic: mcuimg.Magic, Version: mcuimg.Version{Major: 2}},
		confirmErr: errors.New("flash write failed"),
	}
	env := newTestEnv(t)
	restarted := false
	engine := New(func() (blockdev.Device, error) {
		return env.secondary, nil
	}, loader, env.state, WithRestart(func() { restarted = true }))

	// State as Activate left it, after the swap rebooted into version 2.
	if err := env.state.SetStageVersion(mcuimg.Version{Major: 2}); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetStageCriteria("v2"); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetInstallRebooted(false); err != nil {
		t.Fatal(err)
	}

	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if !restarted {
		t.Error("revert path did not request a restart")
	}
	if _, ok := env.state.StageVersion(); ok {
		t.Error("stage version survived revert")
	}
	// Nothing was settled.
	if _, ok := env.state.PersistentCriteria(); ok {
		t.Error("criteria settled on the revert path")
	}
}

// TestOnBootRevertIdempotent reruns recovery after a revert whose forced
// reset did not happen; the second run must not flap back to confirming.
func TestOnBootRevertIdempotent(t *testing.T) {
	loader := &fakeLoader{
		active:     mcuimg.Header{Magic: mcuimg.Magic, Version: mcuimg.Version{Major: 2}},
		confirmErr: errors.New("flash write failed"),
	}
	env := newTestEnv(t)
	restarts := 0
	engine := New(func() (blockdev.Device, error) {
		return env.secondary, nil
	}, loader, env.state, WithRestart(func() { restarts++ }))

	if err := env.state.SetStageVersion(mcuimg.Version{Major: 2}); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetStageCriteria("v2"); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetInstallRebooted(false); err != nil {
		t.Fatal(err)
	}

	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if restarts != 1 {
		t.Errorf("restart fired %d times; want 1 (second run sees no attempt)", restarts)
	}
}

// TestOnBootVersionMismatch covers a swap that never happened: the device
// rebooted but still runs the old image, so there is nothing to confirm or
// settle.
func TestOnBootVersionMismatch(t *testing.T) {
	loader := &fakeLoader{
		active: mcuimg.Header{Magic: mcuimg.Magic, Version: mcuimg.Version{Major: 1}},
	}
	env := newTestEnv(t)
	restarted := false
	engine := New(func() (blockdev.Device, error) {
		return env.secondary, nil
	}, loader, env.state, WithRestart(func() { restarted = true }))

	if err := env.state.SetStageVersion(mcuimg.Version{Major: 2}); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetStageCriteria("v2"); err != nil {
		t.Fatal(err)
	}
	if err := env.state.SetInstallRebooted(false); err != nil {
		t.Fatal(err)
	}

	if err := engine.OnBoot(); err != nil {
		t.Fatal(err)
	}
	if restarted {
		t.Error("restart fired on version mismatch")
	}
	if loader.confirmed {
		t.Error("old image got confirmed on version mismatch")
	}
	// The rebooted flag still flips so a later boot sees the same answer.
	if rebooted, ok := env.state.InstallRebooted(); !ok || !rebooted {
		t.Errorf("InstallRebooted = %t, %t; want true, true", rebooted, ok)
	}
}
