package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
)

func sampleResult(id string, qid questionnaire.ID, total int, completed time.Time) *questionnaire.Result {
	return &questionnaire.Result{
		ID:            id,
		SessionID:     "session-" + id,
		Questionnaire: qid,
		Name:          string(qid),
		Total:         total,
		MaxTotal:      56,
		Level:         questionnaire.LevelModerate,
		Answers:       []int{1, 2, 3},
		Scored:        []int{1, 2, 1},
		Fingerprint:   "abc123",
		StartedAt:     completed.Add(-5 * time.Minute),
		CompletedAt:   completed,
	}
}

func TestRecordAndListResults(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordResult(ctx, sampleResult("a", questionnaire.PSS14, 22, base)))
	require.NoError(t, s.RecordResult(ctx, sampleResult("b", questionnaire.Fisio, 7, base.Add(time.Hour))))
	require.NoError(t, s.RecordResult(ctx, sampleResult("c", questionnaire.PSS14, 30, base.Add(2*time.Hour))))

	tests := []struct {
		name    string
		filter  ResultFilter
		wantIDs []string
	}{
		{"all newest first", ResultFilter{}, []string{"c", "b", "a"}},
		{"by questionnaire", ResultFilter{Questionnaire: questionnaire.PSS14}, []string{"c", "a"}},
		{"limit", ResultFilter{Limit: 1}, []string{"c"}},
		{"unknown questionnaire", ResultFilter{Questionnaire: "bdi"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListResults(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	got, err := s.ListResults(ctx, ResultFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sampleResult("c", questionnaire.PSS14, 30, base.Add(2*time.Hour)), got[0])
}

func TestRecordResultDuplicateID(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	r := sampleResult("dup", questionnaire.PSS14, 10, time.Now())

	require.NoError(t, s.RecordResult(ctx, r))
	assert.Error(t, s.RecordResult(ctx, r))
}

func TestRecordEngineResult(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	res, err := questionnaire.NewEngine().Score(questionnaire.Fisio, []int{1, 2, 0, 3, 1})
	require.NoError(t, err)
	require.NoError(t, s.RecordResult(ctx, res))

	got, err := s.ListResults(ctx, ResultFilter{Questionnaire: questionnaire.Fisio})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Total)
	assert.Equal(t, questionnaire.LevelModerate, got[0].Level)
	assert.Equal(t, res.Fingerprint, got[0].Fingerprint)
	assert.Equal(t, res.CompletedAt.UnixMilli(), got[0].CompletedAt.UnixMilli())
}

func TestRecordAndListAlerts(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, eda := range []float64{0.5, 2.4, 1.5} {
		a := alert.Classify(alert.Reading{BVP: 2.3, EDA: eda, Temp: 32.5})
		a.ID = string(rune('a' + i))
		a.Seq = int64(i + 1)
		a.Source = "127.0.0.1:5000"
		a.ReceivedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.RecordAlert(ctx, a))
	}

	all, err := s.ListAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].Seq)
	assert.Equal(t, alert.ZoneIntermediate, all[0].Zone)
	assert.Equal(t, "normal", all[0].TempStatus)
	assert.Equal(t, base.Add(2*time.Second), all[0].ReceivedAt)

	latest, err := s.ListAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "c", latest[0].ID)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stressguard.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, s.Close())

	// Reopening keeps the schema
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ListResults(context.Background(), ResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
