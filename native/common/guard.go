package common

// PauseView exposes the contract-wide pause flag.
type PauseView interface {
	PausedGet() (bool, error)
}

// Guard rejects the call with ContractPaused when the pause flag is set. A nil
// view never blocks.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	paused, err := p.PausedGet()
	if err != nil {
		return Internal("pause", err)
	}
	if paused {
		return ErrContractPaused
	}
	return nil
}
