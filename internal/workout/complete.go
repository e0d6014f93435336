package workout

import (
	"context"
	"errors"
	"time"

	"github.com/gymtrack/backend/internal/records"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const opCompleteWorkout = "workout.complete_workout"

// CompleteWorkout commits the active draft as a finished session. In
// one transaction it creates the session and its sets, marks the daily
// log, records exercise usage, updates personal records and clears the
// draft slot. On any failure nothing is visible.
func (s *Store) CompleteWorkout(ctx context.Context, endTime time.Time, notes *string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.loadDraft(ctx, s.db.WithContext(ctx))
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := WorkoutSession{
			Date:      formatDate(draft.StartDate),
			StartTime: formatClock(draft.StartTime),
			EndTime:   formatClock(endTime),
			Notes:     notes,
		}
		if err := tx.Create(&session).Error; err != nil {
			return newStoreError(opCompleteWorkout, "session_insert_failed", err)
		}

		sets := make([]WorkoutSet, 0)
		for _, exercise := range draft.Exercises {
			for index, set := range exercise.Sets {
				sets = append(sets, WorkoutSet{
					SessionID:  session.ID,
					ExerciseID: exercise.ExerciseID,
					SetIndex:   index,
					WeightKg:   set.WeightKg,
					Reps:       set.Reps,
				})
			}
		}
		if len(sets) > 0 {
			if err := tx.Create(&sets).Error; err != nil {
				return newStoreError(opCompleteWorkout, "set_insert_failed", err)
			}
		}

		if err := upsertWorkoutLog(tx, session.Date); err != nil {
			return err
		}

		performed := make([]DraftExercise, 0, len(draft.Exercises))
		for _, exercise := range draft.Exercises {
			if len(exercise.Sets) > 0 {
				performed = append(performed, exercise)
			}
		}

		for _, exercise := range performed {
			entry := ExerciseHistoryEntry{ExerciseID: exercise.ExerciseID, Date: session.Date}
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
			if err != nil {
				return newStoreError(opCompleteWorkout, "history_insert_failed", err)
			}
		}

		broken, err := updatePersonalRecords(tx, performed, draft.StartDate)
		if err != nil {
			return err
		}

		if err := tx.Where("slot = ?", draftSlotKey).Delete(&draftSlot{}).Error; err != nil {
			return newStoreError(opCompleteWorkout, "draft_clear_failed", err)
		}

		totalSets := 0
		for _, exercise := range draft.Exercises {
			totalSets += len(exercise.Sets)
		}
		summary = Summary{
			SessionID:      session.ID,
			Duration:       clockDuration(draft.StartTime, endTime),
			TotalExercises: len(performed),
			TotalSets:      totalSets,
			BrokenRecords:  broken,
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCompleteWorkout, "transaction_failed", txErr)
		return Summary{}, txErr
	}

	s.draftFeed.publish(nil)
	s.publishDailyLogs(ctx)
	s.publishExerciseOverviews(ctx)
	return summary, nil
}

// clockDuration measures elapsed time between two clock-of-day values,
// ignoring their date components. The draft stores its start as a bare
// clock time while callers pass wall-clock end times, so subtracting
// the instants directly would span years. A negative span means the
// workout crossed midnight and wraps forward by one day.
func clockDuration(start, end time.Time) time.Duration {
	sinceMidnight := func(value time.Time) time.Duration {
		return time.Duration(value.Hour())*time.Hour +
			time.Duration(value.Minute())*time.Minute +
			time.Duration(value.Second())*time.Second
	}
	elapsed := sinceMidnight(end) - sinceMidnight(start)
	if elapsed < 0 {
		elapsed += 24 * time.Hour
	}
	return elapsed
}

// upsertWorkoutLog marks the date as worked out while preserving an
// existing creatine flag.
func upsertWorkoutLog(tx *gorm.DB, date string) error {
	log := DailyLog{Date: date, DidWorkout: true}

	var existing DailyLog
	err := tx.Where("date = ?", date).Take(&existing).Error
	if err == nil {
		log.TookCreatine = existing.TookCreatine
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return newStoreError(opCompleteWorkout, "log_select_failed", err)
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"did_workout", "took_creatine"}),
	}).Create(&log).Error
	if err != nil {
		return newStoreError(opCompleteWorkout, "log_upsert_failed", err)
	}
	return nil
}

// updatePersonalRecords applies the record update rule per performed
// exercise. The stored record is fetched fresh inside the transaction.
// Equal weight with strictly more reps is a strict win and advances
// the achieved date.
func updatePersonalRecords(tx *gorm.DB, performed []DraftExercise, date time.Time) ([]RecordBreak, error) {
	broken := make([]RecordBreak, 0)
	for _, exercise := range performed {
		candidates := make([]records.Candidate, 0, len(exercise.Sets))
		for _, set := range exercise.Sets {
			candidates = append(candidates, records.Candidate{
				WeightKg: set.WeightKg,
				Reps:     set.Reps,
				Date:     date,
			})
		}
		best, ok := records.SelectBest(candidates)
		if !ok {
			continue
		}

		var stored PersonalRecord
		err := tx.Where("exercise_id = ?", exercise.ExerciseID).Take(&stored).Error
		hasStored := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newStoreError(opCompleteWorkout, "record_select_failed", err)
		}

		if hasStored {
			achieved, err := parseDate(stored.FirstAchievedDate)
			if err != nil {
				return nil, newStoreError(opCompleteWorkout, "record_date_invalid", err)
			}
			current := records.Candidate{WeightKg: stored.BestWeightKg, Reps: stored.BestReps, Date: achieved}
			if records.Compare(best, current) <= 0 {
				continue
			}
		}

		record := PersonalRecord{
			ExerciseID:        exercise.ExerciseID,
			BestWeightKg:      best.WeightKg,
			BestReps:          best.Reps,
			FirstAchievedDate: formatDate(best.Date),
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exercise_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"best_weight_kg", "best_reps", "first_achieved_date"}),
		}).Create(&record).Error
		if err != nil {
			return nil, newStoreError(opCompleteWorkout, "record_upsert_failed", err)
		}

		broken = append(broken, RecordBreak{
			ExerciseName: exercise.Name,
			WeightKg:     best.WeightKg,
			Reps:         best.Reps,
		})
	}
	return broken, nil
}
