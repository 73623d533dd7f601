package watcher

// ChangeAnalysis describes what a batch of changes asks the server to do.
type ChangeAnalysis struct {
	ReloadMap    bool
	RouteChanged bool
	ChangedFiles []string
}

// AnalyzeChanges maps a debounced change event onto the work it triggers.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeMap:
		// The map editor saved; rebuild the graph from disk.
		analysis.ReloadMap = true

	case ChangeTypeRoute:
		// A new route was exported; the next start from file picks it up.
		analysis.RouteChanged = true
	}

	return analysis
}
