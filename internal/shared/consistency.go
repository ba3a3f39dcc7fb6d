package shared

// ReadMode selects the isolation a read path runs under.
type ReadMode int

const (
	// ReadSnapshot observes a point-in-time snapshot and tolerates bounded staleness.
	ReadSnapshot ReadMode = iota
	// ReadSerializable requests a serializable read for callers that need strict consistency.
	ReadSerializable
)

func (m ReadMode) String() string {
	if m == ReadSerializable {
		return "serializable"
	}
	return "snapshot"
}
