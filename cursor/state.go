package cursor

// FillState is the fill lifecycle of the current window generation. A filler
// superseded by a reposition leaves no state behind, since the state already
// belongs to the new generation; aborts are counted in Stats().AbortedFillers.
type FillState int

const (
	StateEmpty FillState = iota
	StateSyncFilling
	StateSyncFullExhausted
	StateSyncFullPartial
	StateBgFilling
	StateBgExhausted
	StateBgCapacityLimited
	StateBgFailed
)

var fillStateNames = map[FillState]string{
	StateEmpty:             "empty",
	StateSyncFilling:       "sync_filling",
	StateSyncFullExhausted: "sync_full_exhausted",
	StateSyncFullPartial:   "sync_full_partial",
	StateBgFilling:         "bg_filling",
	StateBgExhausted:       "bg_exhausted",
	StateBgCapacityLimited: "bg_capacity_limited",
	StateBgFailed:          "bg_failed",
}

func (s FillState) String() string {
	if name, ok := fillStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no more rows will be added to the window without
// a new reposition.
func (s FillState) Terminal() bool {
	switch s {
	case StateSyncFullExhausted, StateBgExhausted, StateBgCapacityLimited, StateBgFailed:
		return true
	}
	return false
}
