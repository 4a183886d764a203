package sync

import "slices"

// Diff returns one action for every path of the union of both maps, ordered by path.
func Diff(sourceMap, destMap TreeMap) []SyncAction {
	allPaths := make(map[string]struct{}, max(len(sourceMap), len(destMap)))
	for path := range sourceMap {
		allPaths[path] = struct{}{}
	}
	for path := range destMap {
		allPaths[path] = struct{}{}
	}

	paths := make([]string, 0, len(allPaths))
	for path := range allPaths {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	actions := make([]SyncAction, 0, len(paths))
	for _, path := range paths {
		actions = append(actions, SyncAction{Type: classify(path, sourceMap, destMap), Path: path})
	}
	return actions
}

func classify(path string, sourceMap, destMap TreeMap) ActionType {
	src, srcExists := sourceMap[path]
	dst, dstExists := destMap[path]

	switch {
	case srcExists && !dstExists:
		return ActionCopyToDestination
	case !srcExists && dstExists:
		return ActionCopyToSource
	default:
		return ResolveConflict(src.Handle.LastModified(), dst.Handle.LastModified())
	}
}

// countScanned is the two-way scanned figure: the size of the larger tree.
func countScanned(sourceMap, destMap TreeMap) int {
	return max(len(sourceMap), len(destMap))
}
