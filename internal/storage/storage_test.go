package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edurisk-engine/internal/engine"
	"edurisk-engine/internal/features"
	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/notify"
	"edurisk-engine/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPrediction(studentID string, tier ml.Tier, at time.Time) engine.Prediction {
	return engine.Prediction{
		ID:           "pred-" + studentID + "-" + at.Format("150405.000000000"),
		StudentID:    studentID,
		Probability:  0.5,
		Tier:         tier,
		ModelVersion: "20260801-120000",
		ComputedAt:   at,
	}
}

func testArtifact(t *testing.T) *ml.Artifact {
	t.Helper()

	records := []schema.StudentRecord{
		{Course: 9100, Units1stGrade: 8, Debtor: 1},
		{Course: 9100, Units1stGrade: 9, Debtor: 1},
		{Course: 9200, Units1stGrade: 15, ScholarshipHolder: 1},
		{Course: 9200, Units1stGrade: 14, ScholarshipHolder: 1},
	}
	labels := []bool{true, true, false, false}

	encSchema, err := features.Fit(records, false)
	require.NoError(t, err)

	vectors := make([][]float64, len(records))
	for i, r := range records {
		vectors[i], err = encSchema.Encode(r)
		require.NoError(t, err)
	}

	forest, err := ml.TrainForest(ml.ForestConfig{Trees: 3, MaxDepth: 2, MinSamplesLeaf: 1, Seed: 1}, vectors, labels)
	require.NoError(t, err)

	trainedAt := time.Now().UTC()
	return &ml.Artifact{
		Version:        ml.NewArtifactVersion(trainedAt),
		SchemaVersion:  encSchema.Version,
		DatasetVersion: "ds-test",
		TrainedAt:      trainedAt,
		Schema:         encSchema,
		Forest:         forest,
	}
}

func TestLatestPredictionUnseenStudent(t *testing.T) {
	store := newTestStore(t)

	p, err := store.LatestPrediction("s-unknown")
	require.NoError(t, err)
	assert.Nil(t, p, "unseen student must yield (nil, nil)")
}

func TestSavePredictionUpdatesLatest(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	first := testPrediction("s-1", ml.TierLow, base)
	second := testPrediction("s-1", ml.TierHigh, base.Add(time.Hour))

	require.NoError(t, store.SavePrediction(first))
	require.NoError(t, store.SavePrediction(second))

	latest, err := store.LatestPrediction("s-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, ml.TierHigh, latest.Tier)
}

func TestPredictionHistory(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SavePrediction(testPrediction("s-1", ml.TierMedium, base.Add(time.Duration(i)*time.Hour))))
	}
	// Another student's rows must not bleed into the range scan.
	require.NoError(t, store.SavePrediction(testPrediction("s-2", ml.TierLow, base)))

	history, err := store.PredictionHistory("s-1", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].ComputedAt.Before(history[i].ComputedAt), "history must be oldest first")
	}
	for _, p := range history {
		assert.Equal(t, "s-1", p.StudentID)
	}
}

func TestNotificationLog(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := notify.Event{
			ID:          "ev-" + string(rune('a'+i)),
			StudentID:   "s-1",
			PriorTier:   ml.TierLow,
			NewTier:     ml.TierMedium,
			Reason:      "risk tier rose from Low to Medium",
			TriggeredAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveNotification(ev))
	}

	events, err := store.NotificationsSince(base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestArtifactPublishAndRestore(t *testing.T) {
	store := newTestStore(t)

	current, err := store.CurrentArtifact()
	require.NoError(t, err)
	assert.Nil(t, current, "empty store must yield (nil, nil)")

	a := testArtifact(t)
	require.NoError(t, store.PublishArtifact(a))

	restored, err := store.CurrentArtifact()
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, a.Version, restored.Version)
	assert.Equal(t, a.SchemaVersion, restored.SchemaVersion)
	require.NoError(t, restored.Verify())

	byVersion, err := store.Artifact(a.Version)
	require.NoError(t, err)
	assert.Equal(t, a.Version, byVersion.Version)

	versions, err := store.ArtifactVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{a.Version}, versions)
}

func TestPublishArtifactRejectsInconsistent(t *testing.T) {
	store := newTestStore(t)

	a := testArtifact(t)
	a.SchemaVersion = "fs-0000000000000000"

	require.Error(t, store.PublishArtifact(a))

	current, err := store.CurrentArtifact()
	require.NoError(t, err)
	assert.Nil(t, current, "a rejected publish must not move the current pointer")
}
