package telemetry

// EvaluationTags returns standard tags for an evaluation span.
func EvaluationTags(session, backend string) map[string]string {
	return map[string]string{
		"session": session,
		"backend": backend,
	}
}

// StageTags returns standard tags for one pipeline stage span.
func StageTags(stage string) map[string]string {
	return map[string]string{
		"stage": stage,
	}
}
