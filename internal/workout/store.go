package workout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gymtrack/backend/internal/calendar"
	"github.com/gymtrack/backend/internal/streak"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var noOpLogger = zap.NewNop()

const (
	opStoreNew            = "workout.store.new"
	opInsertExercise      = "workout.insert_exercise"
	opUpdateExercise      = "workout.update_exercise"
	opUpdateExerciseNotes = "workout.update_exercise_notes"
	opUpdateExerciseImage = "workout.update_exercise_image"
	opDeleteExercise      = "workout.delete_exercise"
	opListCategories      = "workout.list_categories"
	opExerciseOverviews   = "workout.exercise_overviews"
	opExerciseDetail      = "workout.exercise_detail"
	opUpsertRoutine       = "workout.upsert_routine"
	opDeleteRoutine       = "workout.delete_routine"
	opRoutineOverviews    = "workout.routine_overviews"
	opToggleCreatine      = "workout.toggle_creatine"
	opEnsureWorkoutLog    = "workout.ensure_workout_log"
	opDailyLogs           = "workout.daily_logs"
	opStreakInfo          = "workout.streak_info"
	opActivitySummary     = "workout.activity_summary"
	opWorkoutCalendar     = "workout.workout_calendar"
)

// StoreConfig carries the dependencies of the progression store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store owns every state transition of the workout dataset: exercise
// and routine bookkeeping, the active draft, the completion
// transaction, projections and backup. Mutating operations are
// serialized per instance.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger

	// mu serializes mutating operations so multi-step transactions
	// never interleave.
	mu sync.Mutex

	draftFeed    *dispatcher[*Draft]
	dailyLogFeed *dispatcher[[]DailyLogView]
	exerciseFeed *dispatcher[[]ExerciseOverview]
}

// NewStore constructs the progression store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:           cfg.Database,
		clock:        clock,
		logger:       logger,
		draftFeed:    newDispatcher[*Draft](),
		dailyLogFeed: newDispatcher[[]DailyLogView](),
		exerciseFeed: newDispatcher[[]ExerciseOverview](),
	}, nil
}

// StreakInfo pairs a computed streak with the mode it was computed in.
type StreakInfo struct {
	CurrentStreak int
	Mode          streak.Mode
}

// InsertExercise creates a new exercise and returns its id.
func (s *Store) InsertExercise(ctx context.Context, name string, category, imageURI, notes *string) (int64, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, newStoreError(opInsertExercise, "blank_name", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exercise := Exercise{Name: trimmed, Category: category, ImageURI: imageURI, Notes: notes}
	if err := s.db.WithContext(ctx).Create(&exercise).Error; err != nil {
		s.logError(opInsertExercise, "insert_failed", err)
		return 0, newStoreError(opInsertExercise, "insert_failed", err)
	}

	s.publishExerciseOverviews(ctx)
	return exercise.ID, nil
}

// UpdateExercise replaces the mutable fields of an exercise in place.
func (s *Store) UpdateExercise(ctx context.Context, id int64, name string, category, imageURI, notes *string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newStoreError(opUpdateExercise, "blank_name", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing Exercise
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newStoreError(opUpdateExercise, "exercise_missing", ErrNotFound)
	}
	if err != nil {
		s.logError(opUpdateExercise, "select_failed", err, zap.Int64("exercise_id", id))
		return newStoreError(opUpdateExercise, "select_failed", err)
	}

	existing.Name = trimmed
	existing.Category = category
	existing.ImageURI = imageURI
	existing.Notes = notes
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logError(opUpdateExercise, "save_failed", err, zap.Int64("exercise_id", id))
		return newStoreError(opUpdateExercise, "save_failed", err)
	}

	s.publishExerciseOverviews(ctx)
	return nil
}

// UpdateExerciseNotes overwrites only the free-text notes.
func (s *Store) UpdateExerciseNotes(ctx context.Context, id int64, notes *string) error {
	return s.updateExerciseField(ctx, opUpdateExerciseNotes, id, func(exercise *Exercise) {
		exercise.Notes = notes
	})
}

// UpdateExerciseImage overwrites only the image reference.
func (s *Store) UpdateExerciseImage(ctx context.Context, id int64, imageURI *string) error {
	return s.updateExerciseField(ctx, opUpdateExerciseImage, id, func(exercise *Exercise) {
		exercise.ImageURI = imageURI
	})
}

func (s *Store) updateExerciseField(ctx context.Context, operation string, id int64, mutate func(*Exercise)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing Exercise
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newStoreError(operation, "exercise_missing", ErrNotFound)
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.Int64("exercise_id", id))
		return newStoreError(operation, "select_failed", err)
	}

	mutate(&existing)
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logError(operation, "save_failed", err, zap.Int64("exercise_id", id))
		return newStoreError(operation, "save_failed", err)
	}

	s.publishExerciseOverviews(ctx)
	return nil
}

// DeleteExercise removes an exercise together with its personal record,
// history entries, sets and routine references in one transaction.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteExercise(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Exercise
		err := tx.Where("id = ?", id).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return newStoreError(opDeleteExercise, "select_failed", err)
		}

		// Dependents first, in foreign-key order.
		if err := tx.Where("exercise_id = ?", id).Delete(&PersonalRecord{}).Error; err != nil {
			return newStoreError(opDeleteExercise, "record_delete_failed", err)
		}
		if err := tx.Where("exercise_id = ?", id).Delete(&ExerciseHistoryEntry{}).Error; err != nil {
			return newStoreError(opDeleteExercise, "history_delete_failed", err)
		}
		if err := tx.Where("exercise_id = ?", id).Delete(&WorkoutSet{}).Error; err != nil {
			return newStoreError(opDeleteExercise, "set_delete_failed", err)
		}
		if err := tx.Where("exercise_id = ?", id).Delete(&RoutineExercise{}).Error; err != nil {
			return newStoreError(opDeleteExercise, "routine_ref_delete_failed", err)
		}
		if err := tx.Where("id = ?", id).Delete(&Exercise{}).Error; err != nil {
			return newStoreError(opDeleteExercise, "exercise_delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opDeleteExercise, "transaction_failed", txErr, zap.Int64("exercise_id", id))
		return txErr
	}

	s.publishExerciseOverviews(ctx)
	return nil
}

// Categories returns the distinct non-empty exercise categories.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&Exercise{}).
		Distinct("category").
		Where("category IS NOT NULL AND category <> ''").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		s.logError(opListCategories, "query_failed", err)
		return nil, newStoreError(opListCategories, "query_failed", err)
	}
	return categories, nil
}

// ExerciseOverviews returns every exercise with its personal record and
// usage count.
func (s *Store) ExerciseOverviews(ctx context.Context) ([]ExerciseOverview, error) {
	return s.exerciseOverviews(s.db.WithContext(ctx))
}

type usageRow struct {
	ExerciseID int64
	UsageCount int
}

func (s *Store) exerciseOverviews(db *gorm.DB) ([]ExerciseOverview, error) {
	var exercises []Exercise
	if err := db.Order("id ASC").Find(&exercises).Error; err != nil {
		s.logError(opExerciseOverviews, "exercise_query_failed", err)
		return nil, newStoreError(opExerciseOverviews, "exercise_query_failed", err)
	}

	var storedRecords []PersonalRecord
	if err := db.Find(&storedRecords).Error; err != nil {
		s.logError(opExerciseOverviews, "record_query_failed", err)
		return nil, newStoreError(opExerciseOverviews, "record_query_failed", err)
	}
	recordByExercise := make(map[int64]PersonalRecord, len(storedRecords))
	for _, record := range storedRecords {
		recordByExercise[record.ExerciseID] = record
	}

	var usage []usageRow
	err := db.Model(&ExerciseHistoryEntry{}).
		Select("exercise_id, COUNT(*) AS usage_count").
		Group("exercise_id").
		Scan(&usage).Error
	if err != nil {
		s.logError(opExerciseOverviews, "usage_query_failed", err)
		return nil, newStoreError(opExerciseOverviews, "usage_query_failed", err)
	}
	usageByExercise := make(map[int64]int, len(usage))
	for _, row := range usage {
		usageByExercise[row.ExerciseID] = row.UsageCount
	}

	overviews := make([]ExerciseOverview, 0, len(exercises))
	for _, exercise := range exercises {
		overview := ExerciseOverview{
			ID:         exercise.ID,
			Name:       exercise.Name,
			Category:   exercise.Category,
			ImageURI:   exercise.ImageURI,
			Notes:      exercise.Notes,
			UsageCount: usageByExercise[exercise.ID],
		}
		if record, ok := recordByExercise[exercise.ID]; ok {
			achieved, err := parseDate(record.FirstAchievedDate)
			if err != nil {
				return nil, newStoreError(opExerciseOverviews, "record_date_invalid", err)
			}
			overview.Record = &RecordView{
				BestWeightKg:      record.BestWeightKg,
				BestReps:          record.BestReps,
				FirstAchievedDate: achieved,
			}
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

type setWithSessionRow struct {
	SessionID    int64
	Date         string
	StartTime    string
	EndTime      string
	SetIndex     int
	WeightKg     float64
	Reps         int
	SessionNotes *string
}

// ExerciseDetail returns one exercise's overview plus its usage history
// and every historical set.
func (s *Store) ExerciseDetail(ctx context.Context, id int64) (ExerciseDetail, error) {
	overviews, err := s.ExerciseOverviews(ctx)
	if err != nil {
		return ExerciseDetail{}, err
	}
	var overview *ExerciseOverview
	for i := range overviews {
		if overviews[i].ID == id {
			overview = &overviews[i]
			break
		}
	}
	if overview == nil {
		return ExerciseDetail{}, newStoreError(opExerciseDetail, "exercise_missing", ErrNotFound)
	}

	var historyRows []ExerciseHistoryEntry
	err = s.db.WithContext(ctx).
		Where("exercise_id = ?", id).
		Order("date DESC").
		Find(&historyRows).Error
	if err != nil {
		s.logError(opExerciseDetail, "history_query_failed", err, zap.Int64("exercise_id", id))
		return ExerciseDetail{}, newStoreError(opExerciseDetail, "history_query_failed", err)
	}
	history := make([]time.Time, 0, len(historyRows))
	for _, row := range historyRows {
		date, err := parseDate(row.Date)
		if err != nil {
			return ExerciseDetail{}, newStoreError(opExerciseDetail, "history_date_invalid", err)
		}
		history = append(history, date)
	}

	var setRows []setWithSessionRow
	err = s.db.WithContext(ctx).
		Model(&WorkoutSet{}).
		Select("workout_sets.session_id, workout_sessions.date, workout_sessions.start_time, workout_sessions.end_time, workout_sets.set_index, workout_sets.weight_kg, workout_sets.reps, workout_sessions.notes AS session_notes").
		Joins("JOIN workout_sessions ON workout_sessions.id = workout_sets.session_id").
		Where("workout_sets.exercise_id = ?", id).
		Order("workout_sessions.date DESC, workout_sets.set_index ASC").
		Scan(&setRows).Error
	if err != nil {
		s.logError(opExerciseDetail, "set_query_failed", err, zap.Int64("exercise_id", id))
		return ExerciseDetail{}, newStoreError(opExerciseDetail, "set_query_failed", err)
	}

	sets := make([]SetHistoryEntry, 0, len(setRows))
	for _, row := range setRows {
		entry, err := row.toEntry()
		if err != nil {
			return ExerciseDetail{}, newStoreError(opExerciseDetail, "set_row_invalid", err)
		}
		sets = append(sets, entry)
	}

	return ExerciseDetail{Overview: *overview, History: history, Sets: sets}, nil
}

func (r setWithSessionRow) toEntry() (SetHistoryEntry, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return SetHistoryEntry{}, err
	}
	start, err := parseClock(r.StartTime)
	if err != nil {
		return SetHistoryEntry{}, err
	}
	end, err := parseClock(r.EndTime)
	if err != nil {
		return SetHistoryEntry{}, err
	}
	return SetHistoryEntry{
		SessionID:    r.SessionID,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		SetIndex:     r.SetIndex,
		WeightKg:     r.WeightKg,
		Reps:         r.Reps,
		SessionNotes: r.SessionNotes,
	}, nil
}

// UpsertRoutine creates or replaces a routine template together with
// its ordered exercise references.
func (s *Store) UpsertRoutine(ctx context.Context, routineID *int64, name string, exerciseIDs []int64) (int64, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, newStoreError(opUpsertRoutine, "blank_name", ErrInvalidInput)
	}
	if len(exerciseIDs) == 0 {
		return 0, newStoreError(opUpsertRoutine, "empty_selection", ErrInvalidInput)
	}
	seen := make(map[int64]struct{}, len(exerciseIDs))
	for _, exerciseID := range exerciseIDs {
		if _, ok := seen[exerciseID]; ok {
			return 0, newStoreError(opUpsertRoutine, "duplicate_exercise", ErrDuplicateExercise)
		}
		seen[exerciseID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var known int64
		if err := tx.Model(&Exercise{}).Where("id IN ?", exerciseIDs).Count(&known).Error; err != nil {
			return newStoreError(opUpsertRoutine, "exercise_check_failed", err)
		}
		if known != int64(len(exerciseIDs)) {
			return newStoreError(opUpsertRoutine, "exercise_missing", ErrNotFound)
		}

		if routineID == nil {
			routine := Routine{Name: trimmed, CreatedAt: formatTimestamp(s.clock())}
			if err := tx.Create(&routine).Error; err != nil {
				return newStoreError(opUpsertRoutine, "insert_failed", err)
			}
			id = routine.ID
		} else {
			var existing Routine
			err := tx.Where("id = ?", *routineID).Take(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newStoreError(opUpsertRoutine, "routine_missing", ErrNotFound)
			}
			if err != nil {
				return newStoreError(opUpsertRoutine, "select_failed", err)
			}
			existing.Name = trimmed
			if err := tx.Save(&existing).Error; err != nil {
				return newStoreError(opUpsertRoutine, "update_failed", err)
			}
			if err := tx.Where("routine_id = ?", *routineID).Delete(&RoutineExercise{}).Error; err != nil {
				return newStoreError(opUpsertRoutine, "reference_delete_failed", err)
			}
			id = *routineID
		}

		references := make([]RoutineExercise, 0, len(exerciseIDs))
		for position, exerciseID := range exerciseIDs {
			references = append(references, RoutineExercise{
				RoutineID:  id,
				ExerciseID: exerciseID,
				Position:   position,
			})
		}
		if err := tx.Create(&references).Error; err != nil {
			return newStoreError(opUpsertRoutine, "reference_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opUpsertRoutine, "transaction_failed", txErr)
		return 0, txErr
	}
	return id, nil
}

// DeleteRoutine removes a routine and its exercise references. Unknown
// ids are a no-op.
func (s *Store) DeleteRoutine(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("routine_id = ?", id).Delete(&RoutineExercise{}).Error; err != nil {
			return newStoreError(opDeleteRoutine, "reference_delete_failed", err)
		}
		if err := tx.Where("id = ?", id).Delete(&Routine{}).Error; err != nil {
			return newStoreError(opDeleteRoutine, "routine_delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opDeleteRoutine, "transaction_failed", txErr, zap.Int64("routine_id", id))
		return txErr
	}
	return nil
}

// RoutineOverviews returns every routine with its ordered exercises.
func (s *Store) RoutineOverviews(ctx context.Context) ([]RoutineOverview, error) {
	var routines []Routine
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&routines).Error; err != nil {
		s.logError(opRoutineOverviews, "routine_query_failed", err)
		return nil, newStoreError(opRoutineOverviews, "routine_query_failed", err)
	}

	var references []RoutineExercise
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&references).Error; err != nil {
		s.logError(opRoutineOverviews, "reference_query_failed", err)
		return nil, newStoreError(opRoutineOverviews, "reference_query_failed", err)
	}

	var exercises []Exercise
	if err := s.db.WithContext(ctx).Find(&exercises).Error; err != nil {
		s.logError(opRoutineOverviews, "exercise_query_failed", err)
		return nil, newStoreError(opRoutineOverviews, "exercise_query_failed", err)
	}
	nameByID := make(map[int64]string, len(exercises))
	for _, exercise := range exercises {
		nameByID[exercise.ID] = exercise.Name
	}

	referencesByRoutine := make(map[int64][]RoutineExerciseItem)
	for _, reference := range references {
		referencesByRoutine[reference.RoutineID] = append(referencesByRoutine[reference.RoutineID], RoutineExerciseItem{
			ID:         reference.ID,
			ExerciseID: reference.ExerciseID,
			Name:       nameByID[reference.ExerciseID],
			Position:   reference.Position,
		})
	}

	overviews := make([]RoutineOverview, 0, len(routines))
	for _, routine := range routines {
		createdAt, err := parseTimestamp(routine.CreatedAt)
		if err != nil {
			return nil, newStoreError(opRoutineOverviews, "created_at_invalid", err)
		}
		items := referencesByRoutine[routine.ID]
		sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
		overviews = append(overviews, RoutineOverview{
			ID:        routine.ID,
			Name:      routine.Name,
			CreatedAt: createdAt,
			Exercises: items,
		})
	}
	return overviews, nil
}

// RoutineOverview returns a single routine projection.
func (s *Store) RoutineOverview(ctx context.Context, id int64) (RoutineOverview, error) {
	overviews, err := s.RoutineOverviews(ctx)
	if err != nil {
		return RoutineOverview{}, err
	}
	for _, overview := range overviews {
		if overview.ID == id {
			return overview, nil
		}
	}
	return RoutineOverview{}, newStoreError(opRoutineOverviews, "routine_missing", ErrNotFound)
}

// ToggleCreatine flips the creatine flag for a date without touching
// the workout flag.
func (s *Store) ToggleCreatine(ctx context.Context, date time.Time, tookCreatine bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := formatDate(date)
	log := DailyLog{Date: key, TookCreatine: tookCreatine}

	var existing DailyLog
	err := s.db.WithContext(ctx).Where("date = ?", key).Take(&existing).Error
	if err == nil {
		log.DidWorkout = existing.DidWorkout
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opToggleCreatine, "select_failed", err, zap.String("date", key))
		return newStoreError(opToggleCreatine, "select_failed", err)
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"did_workout", "took_creatine"}),
	}).Create(&log).Error
	if err != nil {
		s.logError(opToggleCreatine, "upsert_failed", err, zap.String("date", key))
		return newStoreError(opToggleCreatine, "upsert_failed", err)
	}

	s.publishDailyLogs(ctx)
	return nil
}

// EnsureWorkoutLog creates an all-false log for the date when none
// exists yet, so the date shows up in the daily list.
func (s *Store) EnsureWorkoutLog(ctx context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := formatDate(date)
	var existing DailyLog
	err := s.db.WithContext(ctx).Where("date = ?", key).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opEnsureWorkoutLog, "select_failed", err, zap.String("date", key))
		return newStoreError(opEnsureWorkoutLog, "select_failed", err)
	}

	if err := s.db.WithContext(ctx).Create(&DailyLog{Date: key}).Error; err != nil {
		s.logError(opEnsureWorkoutLog, "insert_failed", err, zap.String("date", key))
		return newStoreError(opEnsureWorkoutLog, "insert_failed", err)
	}

	s.publishDailyLogs(ctx)
	return nil
}

// DailyLogs returns every daily log in ascending date order.
func (s *Store) DailyLogs(ctx context.Context) ([]DailyLogView, error) {
	return s.dailyLogs(s.db.WithContext(ctx))
}

func (s *Store) dailyLogs(db *gorm.DB) ([]DailyLogView, error) {
	var logs []DailyLog
	if err := db.Order("date ASC").Find(&logs).Error; err != nil {
		s.logError(opDailyLogs, "query_failed", err)
		return nil, newStoreError(opDailyLogs, "query_failed", err)
	}

	views := make([]DailyLogView, 0, len(logs))
	for _, log := range logs {
		date, err := parseDate(log.Date)
		if err != nil {
			return nil, newStoreError(opDailyLogs, "date_invalid", err)
		}
		views = append(views, DailyLogView{Date: date, DidWorkout: log.DidWorkout, TookCreatine: log.TookCreatine})
	}
	return views, nil
}

// StreakInfo computes the current activity streak in the given mode,
// evaluated against the supplied "today".
func (s *Store) StreakInfo(ctx context.Context, mode streak.Mode, today time.Time) (StreakInfo, error) {
	logs, err := s.DailyLogs(ctx)
	if err != nil {
		return StreakInfo{}, newStoreError(opStreakInfo, "log_query_failed", err)
	}

	dayLogs := make([]streak.DayLog, 0, len(logs))
	for _, log := range logs {
		dayLogs = append(dayLogs, streak.DayLog{Date: log.Date, DidWorkout: log.DidWorkout})
	}
	return StreakInfo{CurrentStreak: streak.Calculate(dayLogs, mode, today), Mode: mode}, nil
}

// ActivitySummary aggregates a month of activity: session count for the
// month, the top three exercises by total set count and the current
// record line per exercise.
func (s *Store) ActivitySummary(ctx context.Context, year int, month time.Month) (ActivitySummary, error) {
	monthPrefix := fmt.Sprintf("%04d-%02d-", year, int(month))

	var monthlySessions int64
	err := s.db.WithContext(ctx).
		Model(&WorkoutSession{}).
		Where("date LIKE ?", monthPrefix+"%").
		Count(&monthlySessions).Error
	if err != nil {
		s.logError(opActivitySummary, "session_count_failed", err)
		return ActivitySummary{}, newStoreError(opActivitySummary, "session_count_failed", err)
	}

	var setCounts []usageRow
	err = s.db.WithContext(ctx).
		Model(&WorkoutSet{}).
		Select("exercise_id, COUNT(*) AS usage_count").
		Group("exercise_id").
		Order("usage_count DESC").
		Limit(3).
		Scan(&setCounts).Error
	if err != nil {
		s.logError(opActivitySummary, "set_count_failed", err)
		return ActivitySummary{}, newStoreError(opActivitySummary, "set_count_failed", err)
	}

	overviews, err := s.ExerciseOverviews(ctx)
	if err != nil {
		return ActivitySummary{}, err
	}
	nameByID := make(map[int64]string, len(overviews))
	for _, overview := range overviews {
		nameByID[overview.ID] = overview.Name
	}

	topExercises := make([]string, 0, len(setCounts))
	for _, row := range setCounts {
		if name, ok := nameByID[row.ExerciseID]; ok {
			topExercises = append(topExercises, name)
		}
	}

	recentRecords := make([]string, 0, len(overviews))
	for _, overview := range overviews {
		if overview.Record != nil {
			recentRecords = append(recentRecords, fmt.Sprintf("%s: %g kg x %d", overview.Name, overview.Record.BestWeightKg, overview.Record.BestReps))
		}
	}

	return ActivitySummary{
		MonthlySessions:       int(monthlySessions),
		TopExercises:          topExercises,
		RecentPersonalRecords: recentRecords,
	}, nil
}

// WorkoutCalendar returns the day-of-month numbers within the given
// month that have at least one completed session.
func (s *Store) WorkoutCalendar(ctx context.Context, year int, month time.Month) (map[int]struct{}, error) {
	var sessions []WorkoutSession
	if err := s.db.WithContext(ctx).Find(&sessions).Error; err != nil {
		s.logError(opWorkoutCalendar, "session_query_failed", err)
		return nil, newStoreError(opWorkoutCalendar, "session_query_failed", err)
	}

	dates := make([]time.Time, 0, len(sessions))
	for _, session := range sessions {
		date, err := parseDate(session.Date)
		if err != nil {
			return nil, newStoreError(opWorkoutCalendar, "session_date_invalid", err)
		}
		dates = append(dates, date)
	}
	return calendar.MarkDays(dates, year, month), nil
}

// ObserveExercises subscribes to exercise overview snapshots. The
// current snapshot is delivered immediately, then one per commit.
func (s *Store) ObserveExercises(ctx context.Context) (<-chan []ExerciseOverview, func(), error) {
	current, err := s.ExerciseOverviews(ctx)
	if err != nil {
		return nil, nil, err
	}
	stream, cancel := s.exerciseFeed.subscribe(ctx, current)
	return stream, cancel, nil
}

// ObserveDailyLogs subscribes to daily log snapshots.
func (s *Store) ObserveDailyLogs(ctx context.Context) (<-chan []DailyLogView, func(), error) {
	current, err := s.DailyLogs(ctx)
	if err != nil {
		return nil, nil, err
	}
	stream, cancel := s.dailyLogFeed.subscribe(ctx, current)
	return stream, cancel, nil
}

func (s *Store) publishExerciseOverviews(ctx context.Context) {
	overviews, err := s.exerciseOverviews(s.db.WithContext(ctx))
	if err != nil {
		s.logError(opExerciseOverviews, "publish_failed", err)
		return
	}
	s.exerciseFeed.publish(overviews)
}

func (s *Store) publishDailyLogs(ctx context.Context) {
	logs, err := s.dailyLogs(s.db.WithContext(ctx))
	if err != nil {
		s.logError(opDailyLogs, "publish_failed", err)
		return
	}
	s.dailyLogFeed.publish(logs)
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("workout store error", attrs...)
}
