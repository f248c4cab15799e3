package models

// AnalysisRequest names the inputs of a single correlation run.
type AnalysisRequest struct {
	CapturePath string
	LogPath     string
}
