package workout

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompleteWorkoutWithoutDraft(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.CompleteWorkout(context.Background(), testClock(19, 30), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteWorkoutCountsOnlyPerformedExercises(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")
	squat := mustInsertExercise(t, store, "Squat")

	draft := Draft{
		StartDate: testDate(),
		StartTime: testClock(18, 30),
		Exercises: []DraftExercise{
			{ExerciseID: bench, Name: "Bench", Sets: []DraftSet{
				{WeightKg: 80, Reps: 5},
				{WeightKg: 80, Reps: 4},
			}},
			{ExerciseID: squat, Name: "Squat", Sets: []DraftSet{}},
		},
	}
	if err := store.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	summary, err := store.CompleteWorkout(ctx, testClock(19, 30), strPtr("felt strong"))
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if summary.TotalExercises != 1 {
		t.Fatalf("expected 1 performed exercise, got %d", summary.TotalExercises)
	}
	if summary.TotalSets != 2 {
		t.Fatalf("expected 2 sets, got %d", summary.TotalSets)
	}
	if summary.Duration != time.Hour {
		t.Fatalf("expected 1h duration, got %s", summary.Duration)
	}

	var session WorkoutSession
	if err := db.Where("id = ?", summary.SessionID).Take(&session).Error; err != nil {
		t.Fatalf("session load failed: %v", err)
	}
	if session.Date != "2024-01-10" || session.StartTime != "18:30:00" || session.EndTime != "19:30:00" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Notes == nil || *session.Notes != "felt strong" {
		t.Fatalf("notes not persisted: %+v", session.Notes)
	}

	var history []ExerciseHistoryEntry
	if err := db.Find(&history).Error; err != nil {
		t.Fatalf("history load failed: %v", err)
	}
	if len(history) != 1 || history[0].ExerciseID != bench {
		t.Fatalf("expected usage mark only for performed exercise, got %+v", history)
	}

	var logs []DailyLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("log load failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Date != "2024-01-10" || !logs[0].DidWorkout {
		t.Fatalf("workout day not marked: %+v", logs)
	}

	if _, err := store.Draft(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft not cleared, got %v", err)
	}
}

func TestCompleteWorkoutDurationIgnoresEndDate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		elapsed time.Duration
	}{
		{
			name:    "wall-clock-end",
			start:   testClock(18, 30),
			end:     time.Date(2024, time.January, 10, 19, 30, 0, 0, time.UTC),
			elapsed: time.Hour,
		},
		{
			name:    "past-midnight",
			start:   testClock(23, 45),
			end:     time.Date(2024, time.January, 11, 0, 15, 0, 0, time.UTC),
			elapsed: 30 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := Draft{
				StartDate: testDate(),
				StartTime: tt.start,
				Exercises: []DraftExercise{
					{ExerciseID: bench, Name: "Bench", Sets: []DraftSet{{WeightKg: 60, Reps: 8}}},
				},
			}
			if err := store.SaveDraft(ctx, draft); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			summary, err := store.CompleteWorkout(ctx, tt.end, nil)
			if err != nil {
				t.Fatalf("complete failed: %v", err)
			}
			if summary.Duration != tt.elapsed {
				t.Fatalf("expected %s duration, got %s", tt.elapsed, summary.Duration)
			}
		})
	}
}

func TestCompleteWorkoutRollsBackOnFailure(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")

	// An unparseable achieved date makes the record step fail after the
	// session, sets, daily log and history have been written.
	seed := PersonalRecord{ExerciseID: bench, BestWeightKg: 10, BestReps: 1, FirstAchievedDate: "garbage"}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := store.SaveDraft(ctx, draftWithSets(bench, 2)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := store.CompleteWorkout(ctx, testClock(19, 30), nil); err == nil {
		t.Fatal("expected completion to fail")
	}

	for _, model := range []interface{}{&WorkoutSession{}, &WorkoutSet{}, &ExerciseHistoryEntry{}, &DailyLog{}} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected rollback to leave no %T rows, got %d", model, count)
		}
	}

	draft, err := store.Draft(ctx)
	if err != nil {
		t.Fatalf("draft lost after failed completion: %v", err)
	}
	if len(draft.Exercises) != 1 || len(draft.Exercises[0].Sets) != 2 {
		t.Fatalf("draft mutated by failed completion: %+v", draft.Exercises)
	}
}

func TestCompleteWorkoutRecordRules(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")

	seed := PersonalRecord{ExerciseID: bench, BestWeightKg: 80, BestReps: 5, FirstAchievedDate: "2024-01-05"}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	complete := func(date time.Time, weightKg float64, reps int) Summary {
		t.Helper()
		draft := Draft{
			StartDate: date,
			StartTime: testClock(18, 30),
			Exercises: []DraftExercise{
				{ExerciseID: bench, Name: "Bench", Sets: []DraftSet{{WeightKg: weightKg, Reps: reps}}},
			},
		}
		if err := store.SaveDraft(ctx, draft); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		summary, err := store.CompleteWorkout(ctx, testClock(19, 30), nil)
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		return summary
	}

	loadRecord := func() PersonalRecord {
		t.Helper()
		var stored PersonalRecord
		if err := db.Where("exercise_id = ?", bench).Take(&stored).Error; err != nil {
			t.Fatalf("record load failed: %v", err)
		}
		return stored
	}

	// Same weight, more reps is a strict improvement and advances the
	// achieved date.
	summary := complete(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), 80, 6)
	if len(summary.BrokenRecords) != 1 {
		t.Fatalf("expected a broken record, got %+v", summary.BrokenRecords)
	}
	broken := summary.BrokenRecords[0]
	if broken.ExerciseName != "Bench" || broken.WeightKg != 80 || broken.Reps != 6 {
		t.Fatalf("unexpected broken record %+v", broken)
	}
	stored := loadRecord()
	if stored.BestReps != 6 || stored.FirstAchievedDate != "2024-01-10" {
		t.Fatalf("record not advanced: %+v", stored)
	}

	// A worse lift leaves the record untouched.
	summary = complete(time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC), 80, 3)
	if len(summary.BrokenRecords) != 0 {
		t.Fatalf("worse lift reported as record: %+v", summary.BrokenRecords)
	}
	stored = loadRecord()
	if stored.BestReps != 6 || stored.FirstAchievedDate != "2024-01-10" {
		t.Fatalf("record changed by worse lift: %+v", stored)
	}

	// Matching the record exactly keeps the original achieved date.
	summary = complete(time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC), 80, 6)
	if len(summary.BrokenRecords) != 0 {
		t.Fatalf("tie reported as record: %+v", summary.BrokenRecords)
	}
	stored = loadRecord()
	if stored.FirstAchievedDate != "2024-01-10" {
		t.Fatalf("tie advanced the achieved date: %+v", stored)
	}

	// Heavier weight wins regardless of reps.
	summary = complete(time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC), 82.5, 1)
	if len(summary.BrokenRecords) != 1 {
		t.Fatalf("heavier lift not reported: %+v", summary.BrokenRecords)
	}
	stored = loadRecord()
	if stored.BestWeightKg != 82.5 || stored.BestReps != 1 || stored.FirstAchievedDate != "2024-01-16" {
		t.Fatalf("record not replaced by heavier lift: %+v", stored)
	}
}

func TestCompleteWorkoutCreatesRecordForNewExercise(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")

	draft := Draft{
		StartDate: testDate(),
		StartTime: testClock(18, 30),
		Exercises: []DraftExercise{
			{ExerciseID: bench, Name: "Bench", Sets: []DraftSet{
				{WeightKg: 60, Reps: 8},
				{WeightKg: 70, Reps: 5},
			}},
		},
	}
	if err := store.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	summary, err := store.CompleteWorkout(ctx, testClock(19, 0), nil)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if len(summary.BrokenRecords) != 1 {
		t.Fatalf("expected first record to count as broken, got %+v", summary.BrokenRecords)
	}

	var stored PersonalRecord
	if err := db.Where("exercise_id = ?", bench).Take(&stored).Error; err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	if stored.BestWeightKg != 70 || stored.BestReps != 5 || stored.FirstAchievedDate != "2024-01-10" {
		t.Fatalf("unexpected record %+v", stored)
	}
}

func TestCompleteWorkoutHistoryDistinctPerDay(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	bench := mustInsertExercise(t, store, "Bench")

	for i := 0; i < 2; i++ {
		draft := Draft{
			StartDate: testDate(),
			StartTime: testClock(18, 30),
			Exercises: []DraftExercise{
				{ExerciseID: bench, Name: "Bench", Sets: []DraftSet{{WeightKg: 60, Reps: 8}}},
			},
		}
		if err := store.SaveDraft(ctx, draft); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, err := store.CompleteWorkout(ctx, testClock(19, 30), nil); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
	}

	var count int64
	if err := db.Model(&ExerciseHistoryEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one usage mark per exercise per day, got %d", count)
	}
}
