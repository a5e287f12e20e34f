package domain

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Path is set when the session moved.
	Path *string `json:"path,omitempty"`

	// Data contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Data map[string]*string `json:"data,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: newState.SessionID}
	if oldState == nil || oldState.Path != newState.Path {
		diff.Path = &newState.Path
	}
	diff.Data = diffData(oldState, newState)

	if diff.Path == nil && len(diff.Data) == 0 {
		return nil
	}
	return diff
}

func diffData(old, new *State) map[string]*string {
	delta := make(map[string]*string)
	for k, v := range new.Data {
		if old != nil {
			if prev, ok := old.Data[k]; ok && prev == v {
				continue
			}
		}
		delta[k] = &v
	}
	if old != nil {
		for k := range old.Data {
			if _, ok := new.Data[k]; !ok {
				delta[k] = nil
			}
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}
