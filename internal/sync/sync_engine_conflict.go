package sync

// ModTimeTolerance is the modification time skew, in milliseconds, under which two copies of a
// file are considered in sync.
const ModTimeTolerance int64 = 2000

// ResolveConflict decides which side of a path present in both trees is authoritative. Inside
// the tolerance band nothing happens; otherwise the strictly newer side overwrites the other.
func ResolveConflict(sourceTime, destTime int64) ActionType {
	diff := sourceTime - destTime
	if diff < 0 {
		diff = -diff
	}
	if diff <= ModTimeTolerance {
		return ActionNoOp
	}
	if sourceTime > destTime {
		return ActionUpdateDestination
	}
	return ActionUpdateSource
}

// sourceIsNewer is the one-way rule. It protects the destination: only a source newer by more
// than the tolerance replaces it.
func sourceIsNewer(sourceTime, destTime int64) bool {
	return sourceTime > destTime+ModTimeTolerance
}
