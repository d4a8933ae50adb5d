package admin

// Code is the executable pointer replaced by Upgrade. Version starts at zero
// and increases by one per upgrade.
type Code struct {
	Hash    [32]byte
	Version uint64
}
