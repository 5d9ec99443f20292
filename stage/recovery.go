package stage

import "log"

// OnBoot is the boot-time recovery routine. It must run exactly once per
// boot, before Stage or Activate become reachable, and decides whether the
// previous upgrade attempt is confirmed or rolled back.
//
// The routine is idempotent: every step re-reads the persistent record, so
// running it twice in a row (e.g. when the forced reset in the revert path
// did not happen) reaches the same terminal state.
func (e *Engine) OnBoot() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// First boot after an Activate-requested reboot: flip the flag so a
	// later boot can tell "about to reboot" from "rebooted at least once".
	if rebooted, ok := e.state.InstallRebooted(); ok && !rebooted {
		if err := e.state.SetInstallRebooted(true); err != nil {
			return err
		}
	}

	// There is no self-test flow, so trust the image that actually booted:
	// if an upgrade rebooted but the bootloader has not confirmed it yet,
	// confirm it now rather than letting the bootloader revert.
	if confirmed, ok := e.installed(); ok && !confirmed {
		if err := e.loader.MarkConfirmed(); err != nil {
			log.Printf("confirming running image: %v", err)
		}
	}

	confirmed, ok := e.installed()
	if !ok {
		// No upgrade attempt to resolve.
		return nil
	}
	if confirmed {
		// The swap stuck. Promote the provisional criteria and clear the
		// attempt, preserving the settled fields.
		if err := e.state.SettleCriteria(); err != nil {
			log.Printf("settling installed criteria: %v", err)
		}
		return e.state.Reset(false)
	}

	// Still unconfirmed after the forced confirm: clear the attempt and
	// force a reset so the bootloader's own revert logic restores the
	// previous image.
	log.Printf("upgrade unconfirmed after forced confirm, reverting")
	if err := e.state.Reset(false); err != nil {
		return err
	}
	if e.restart != nil {
		e.restart()
	}
	return nil
}
