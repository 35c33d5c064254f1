package pantry

// Recorder receives outcome notifications from PantryService.
// The metrics package implements it with Prometheus counters.
type Recorder interface {
	CommitRecorded(result *CommitResult, err error)
	UndoRecorded(deleted int, err error)
	StaplesAnalyzed(analysis *StapleAnalysis, err error)
}

// NopRecorder ignores all notifications.
type NopRecorder struct{}

func (NopRecorder) CommitRecorded(*CommitResult, error)    {}
func (NopRecorder) UndoRecorded(int, error)                {}
func (NopRecorder) StaplesAnalyzed(*StapleAnalysis, error) {}
