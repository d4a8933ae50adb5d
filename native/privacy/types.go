package privacy

// MaxLevel is the highest numeric privacy level accepted by EnablePrivacy.
const MaxLevel uint32 = 3

// Change records one EnablePrivacy call.
type Change struct {
	Level     uint32
	Timestamp uint64
}
