package sync

import (
	"fmt"
)

// StatusLine summarizes one pass: the counters on success, the first error otherwise.
func StatusLine(r SyncResult) string {
	if r.Success {
		return fmt.Sprintf("Synced: %d copied, %d updated (%d scanned)", r.FilesCopied, r.FilesUpdated, r.FilesScanned)
	}
	return "Sync failed: " + r.FirstError()
}

// Totals adds up the counters of several passes.
type Totals struct {
	Pairs   int
	Failed  int
	Scanned int
	Copied  int
	Updated int
}

func SumRuns(runs []PairRun) Totals {
	var t Totals
	for _, run := range runs {
		t.Pairs++
		if run.Err != nil || !run.Result.Success {
			t.Failed++
		}
		t.Scanned += run.Result.FilesScanned
		t.Copied += run.Result.FilesCopied
		t.Updated += run.Result.FilesUpdated
	}
	return t
}

// SummaryLine summarizes a sync-all run.
func (t Totals) SummaryLine() string {
	line := fmt.Sprintf("All synced: %d copied, %d updated (%d scanned)", t.Copied, t.Updated, t.Scanned)
	if t.Failed > 0 {
		line += fmt.Sprintf(", %d of %d pairs failed", t.Failed, t.Pairs)
	}
	return line
}
