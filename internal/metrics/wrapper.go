package metrics

// Wrapper exposes the metric operations the engine and training pipeline
// depend on, so those packages declare small observer interfaces instead of
// importing prometheus directly.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *Wrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) RiskScoreObserve(probability float64) {
	w.m.RiskScores.Observe(probability)
}

func (w *Wrapper) NotificationsInc() {
	w.m.NotificationsTotal.Inc()
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *Wrapper) TrainingRunsInc() {
	w.m.TrainingRuns.Inc()
}

func (w *Wrapper) TrainingFailuresInc() {
	w.m.TrainingFailures.Inc()
}

func (w *Wrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *Wrapper) ValidationAccuracySet(accuracy float64) {
	w.m.ValidationAccuracy.Set(accuracy)
}
