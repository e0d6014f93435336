package workout

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opSaveDraft          = "workout.save_draft"
	opLoadDraft          = "workout.load_draft"
	opClearDraft         = "workout.clear_draft"
	opAddExerciseToDraft = "workout.add_exercise_to_draft"
	opAddSetToDraft      = "workout.add_set_to_draft"
	opRemoveSetFromDraft = "workout.remove_set_from_draft"
)

type draftPayload struct {
	Exercises []DraftExercise `json:"exercises"`
}

// StartWorkout replaces the draft slot with a fresh draft. When a
// routine id is supplied the draft is seeded with the routine's ordered
// exercises, each with zero sets.
func (s *Store) StartWorkout(ctx context.Context, routineID *int64) (Draft, error) {
	exercises := []DraftExercise{}
	if routineID != nil {
		routine, err := s.RoutineOverview(ctx, *routineID)
		if err != nil {
			return Draft{}, err
		}
		for _, item := range routine.Exercises {
			exercises = append(exercises, DraftExercise{
				ExerciseID: item.ExerciseID,
				Name:       item.Name,
				Sets:       []DraftSet{},
			})
		}
	}

	now := s.clock()
	draft := Draft{
		RoutineID: routineID,
		StartDate: now,
		StartTime: now,
		Exercises: exercises,
	}
	if err := s.SaveDraft(ctx, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// SaveDraft upsert-replaces the single draft slot.
func (s *Store) SaveDraft(ctx context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveDraftLocked(ctx, draft)
}

func (s *Store) saveDraftLocked(ctx context.Context, draft Draft) error {
	if draft.Exercises == nil {
		draft.Exercises = []DraftExercise{}
	}
	payload, err := json.Marshal(draftPayload{Exercises: draft.Exercises})
	if err != nil {
		s.logError(opSaveDraft, "encode_failed", err)
		return newStoreError(opSaveDraft, "encode_failed", err)
	}

	row := draftSlot{
		Slot:        draftSlotKey,
		RoutineID:   draft.RoutineID,
		StartDate:   formatDate(draft.StartDate),
		StartTime:   formatClock(draft.StartTime),
		PayloadJSON: string(payload),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"routine_id", "start_date", "start_time", "payload_json"}),
	}).Create(&row).Error
	if err != nil {
		s.logError(opSaveDraft, "upsert_failed", err)
		return newStoreError(opSaveDraft, "upsert_failed", err)
	}

	s.draftFeed.publish(&draft)
	return nil
}

// Draft returns the current draft, or ErrNotFound when the slot is
// empty.
func (s *Store) Draft(ctx context.Context) (Draft, error) {
	return s.loadDraft(ctx, s.db.WithContext(ctx))
}

func (s *Store) loadDraft(ctx context.Context, db *gorm.DB) (Draft, error) {
	var row draftSlot
	err := db.Where("slot = ?", draftSlotKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Draft{}, newStoreError(opLoadDraft, "draft_missing", ErrNotFound)
	}
	if err != nil {
		s.logError(opLoadDraft, "select_failed", err)
		return Draft{}, newStoreError(opLoadDraft, "select_failed", err)
	}

	startDate, err := parseDate(row.StartDate)
	if err != nil {
		return Draft{}, newStoreError(opLoadDraft, "start_date_invalid", err)
	}
	startTime, err := parseClock(row.StartTime)
	if err != nil {
		return Draft{}, newStoreError(opLoadDraft, "start_time_invalid", err)
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(row.PayloadJSON), &payload); err != nil {
		s.logError(opLoadDraft, "decode_failed", err)
		return Draft{}, newStoreError(opLoadDraft, "decode_failed", err)
	}
	if payload.Exercises == nil {
		payload.Exercises = []DraftExercise{}
	}

	return Draft{
		RoutineID: row.RoutineID,
		StartDate: startDate,
		StartTime: startTime,
		Exercises: payload.Exercises,
	}, nil
}

// ClearDraft deletes the draft slot. Clearing an empty slot is a
// no-op.
func (s *Store) ClearDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearDraftLocked(ctx, s.db.WithContext(ctx))
}

func (s *Store) clearDraftLocked(ctx context.Context, db *gorm.DB) error {
	if err := db.Where("slot = ?", draftSlotKey).Delete(&draftSlot{}).Error; err != nil {
		s.logError(opClearDraft, "delete_failed", err)
		return newStoreError(opClearDraft, "delete_failed", err)
	}
	s.draftFeed.publish(nil)
	return nil
}

// ObserveDraft subscribes to draft replacements. The current draft (or
// nil for an empty slot) is delivered immediately, then every
// replacement and clear.
func (s *Store) ObserveDraft(ctx context.Context) (<-chan *Draft, func(), error) {
	var current *Draft
	draft, err := s.Draft(ctx)
	if err == nil {
		current = &draft
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	stream, cancel := s.draftFeed.subscribe(ctx, current)
	return stream, cancel, nil
}

// AddExerciseToDraft appends an exercise with zero sets to the draft.
func (s *Store) AddExerciseToDraft(ctx context.Context, exerciseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.loadDraft(ctx, s.db.WithContext(ctx))
	if err != nil {
		return err
	}
	for _, exercise := range draft.Exercises {
		if exercise.ExerciseID == exerciseID {
			return newStoreError(opAddExerciseToDraft, "already_present", ErrDuplicateExercise)
		}
	}

	var exercise Exercise
	err = s.db.WithContext(ctx).Where("id = ?", exerciseID).Take(&exercise).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newStoreError(opAddExerciseToDraft, "exercise_missing", ErrNotFound)
	}
	if err != nil {
		s.logError(opAddExerciseToDraft, "select_failed", err, zap.Int64("exercise_id", exerciseID))
		return newStoreError(opAddExerciseToDraft, "select_failed", err)
	}

	draft.Exercises = append(draft.Exercises, DraftExercise{
		ExerciseID: exercise.ID,
		Name:       exercise.Name,
		Sets:       []DraftSet{},
	})
	return s.saveDraftLocked(ctx, draft)
}

// RemoveExerciseFromDraft drops an exercise and its sets from the
// draft. Removing an exercise that is not present is a no-op.
func (s *Store) RemoveExerciseFromDraft(ctx context.Context, exerciseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.loadDraft(ctx, s.db.WithContext(ctx))
	if err != nil {
		return err
	}

	kept := make([]DraftExercise, 0, len(draft.Exercises))
	for _, exercise := range draft.Exercises {
		if exercise.ExerciseID != exerciseID {
			kept = append(kept, exercise)
		}
	}
	if len(kept) == len(draft.Exercises) {
		return nil
	}
	draft.Exercises = kept
	return s.saveDraftLocked(ctx, draft)
}

// AddSetToDraft appends a set to one of the draft's exercises. Weight
// and reps must both be positive.
func (s *Store) AddSetToDraft(ctx context.Context, exerciseID int64, weightKg float64, reps int) error {
	if weightKg <= 0 {
		return newStoreError(opAddSetToDraft, "non_positive_weight", ErrInvalidInput)
	}
	if reps <= 0 {
		return newStoreError(opAddSetToDraft, "non_positive_reps", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.loadDraft(ctx, s.db.WithContext(ctx))
	if err != nil {
		return err
	}

	found := false
	for i := range draft.Exercises {
		if draft.Exercises[i].ExerciseID == exerciseID {
			draft.Exercises[i].Sets = append(draft.Exercises[i].Sets, DraftSet{WeightKg: weightKg, Reps: reps})
			found = true
			break
		}
	}
	if !found {
		return newStoreError(opAddSetToDraft, "exercise_missing", ErrNotFound)
	}
	return s.saveDraftLocked(ctx, draft)
}

// RemoveSetFromDraft drops the set at index from one of the draft's
// exercises. An out-of-range index is a no-op.
func (s *Store) RemoveSetFromDraft(ctx context.Context, exerciseID int64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.loadDraft(ctx, s.db.WithContext(ctx))
	if err != nil {
		return err
	}

	for i := range draft.Exercises {
		if draft.Exercises[i].ExerciseID != exerciseID {
			continue
		}
		sets := draft.Exercises[i].Sets
		if index < 0 || index >= len(sets) {
			return nil
		}
		draft.Exercises[i].Sets = append(sets[:index], sets[index+1:]...)
		return s.saveDraftLocked(ctx, draft)
	}
	return newStoreError(opRemoveSetFromDraft, "exercise_missing", ErrNotFound)
}
