package workout

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"gorm.io/gorm"
)

const (
	opExportBackup = "workout.export_backup"
	opImportBackup = "workout.import_backup"
)

// BackupDocument is the flat, versionless serialization of the entire
// dataset. Every field is a primitive; dates and times are ISO-8601
// strings so the document survives schema and library changes.
type BackupDocument struct {
	Exercises        []ExerciseBackup        `json:"exercises"`
	PersonalRecords  []PersonalRecordBackup  `json:"personal_records"`
	ExerciseHistory  []ExerciseHistoryBackup `json:"exercise_history"`
	Routines         []RoutineBackup         `json:"routines"`
	RoutineExercises []RoutineExerciseBackup `json:"routine_exercises"`
	Sessions         []SessionBackup         `json:"sessions"`
	Sets             []WorkoutSetBackup      `json:"sets"`
	DailyLogs        []DailyLogBackup        `json:"daily_logs"`
}

// ExerciseBackup flattens one exercise row.
type ExerciseBackup struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category *string `json:"category"`
	ImageURI *string `json:"image_uri"`
	Notes    *string `json:"notes"`
}

// PersonalRecordBackup flattens one personal record row.
type PersonalRecordBackup struct {
	ExerciseID        int64   `json:"exercise_id"`
	BestWeightKg      float64 `json:"best_weight_kg"`
	BestReps          int     `json:"best_reps"`
	FirstAchievedDate string  `json:"first_achieved_date"`
}

// ExerciseHistoryBackup flattens one usage mark.
type ExerciseHistoryBackup struct {
	ExerciseID int64  `json:"exercise_id"`
	Date       string `json:"date"`
}

// RoutineBackup flattens one routine row.
type RoutineBackup struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// RoutineExerciseBackup flattens one routine exercise reference.
type RoutineExerciseBackup struct {
	ID         int64 `json:"id"`
	RoutineID  int64 `json:"routine_id"`
	ExerciseID int64 `json:"exercise_id"`
	Position   int   `json:"position"`
}

// SessionBackup flattens one completed session.
type SessionBackup struct {
	ID        int64   `json:"id"`
	Date      string  `json:"date"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Notes     *string `json:"notes"`
}

// WorkoutSetBackup flattens one performed set.
type WorkoutSetBackup struct {
	ID         int64   `json:"id"`
	SessionID  int64   `json:"session_id"`
	ExerciseID int64   `json:"exercise_id"`
	SetIndex   int     `json:"set_index"`
	WeightKg   float64 `json:"weight_kg"`
	Reps       int     `json:"reps"`
}

// DailyLogBackup flattens one daily log row.
type DailyLogBackup struct {
	Date         string `json:"date"`
	DidWorkout   bool   `json:"did_workout"`
	TookCreatine bool   `json:"took_creatine"`
}

// ExportBackup snapshots every entity into a backup document.
func (s *Store) ExportBackup(ctx context.Context) (BackupDocument, error) {
	doc := BackupDocument{
		Exercises:        []ExerciseBackup{},
		PersonalRecords:  []PersonalRecordBackup{},
		ExerciseHistory:  []ExerciseHistoryBackup{},
		Routines:         []RoutineBackup{},
		RoutineExercises: []RoutineExerciseBackup{},
		Sessions:         []SessionBackup{},
		Sets:             []WorkoutSetBackup{},
		DailyLogs:        []DailyLogBackup{},
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exercises []Exercise
		if err := tx.Order("id ASC").Find(&exercises).Error; err != nil {
			return newStoreError(opExportBackup, "exercise_query_failed", err)
		}
		for _, row := range exercises {
			doc.Exercises = append(doc.Exercises, ExerciseBackup{
				ID: row.ID, Name: row.Name, Category: row.Category, ImageURI: row.ImageURI, Notes: row.Notes,
			})
		}

		var personalRecords []PersonalRecord
		if err := tx.Order("exercise_id ASC").Find(&personalRecords).Error; err != nil {
			return newStoreError(opExportBackup, "record_query_failed", err)
		}
		for _, row := range personalRecords {
			doc.PersonalRecords = append(doc.PersonalRecords, PersonalRecordBackup{
				ExerciseID: row.ExerciseID, BestWeightKg: row.BestWeightKg, BestReps: row.BestReps, FirstAchievedDate: row.FirstAchievedDate,
			})
		}

		var history []ExerciseHistoryEntry
		if err := tx.Order("exercise_id ASC, date ASC").Find(&history).Error; err != nil {
			return newStoreError(opExportBackup, "history_query_failed", err)
		}
		for _, row := range history {
			doc.ExerciseHistory = append(doc.ExerciseHistory, ExerciseHistoryBackup{ExerciseID: row.ExerciseID, Date: row.Date})
		}

		var routines []Routine
		if err := tx.Order("id ASC").Find(&routines).Error; err != nil {
			return newStoreError(opExportBackup, "routine_query_failed", err)
		}
		for _, row := range routines {
			doc.Routines = append(doc.Routines, RoutineBackup{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt})
		}

		var references []RoutineExercise
		if err := tx.Order("id ASC").Find(&references).Error; err != nil {
			return newStoreError(opExportBackup, "reference_query_failed", err)
		}
		for _, row := range references {
			doc.RoutineExercises = append(doc.RoutineExercises, RoutineExerciseBackup{
				ID: row.ID, RoutineID: row.RoutineID, ExerciseID: row.ExerciseID, Position: row.Position,
			})
		}

		var sessions []WorkoutSession
		if err := tx.Order("id ASC").Find(&sessions).Error; err != nil {
			return newStoreError(opExportBackup, "session_query_failed", err)
		}
		for _, row := range sessions {
			doc.Sessions = append(doc.Sessions, SessionBackup{
				ID: row.ID, Date: row.Date, StartTime: row.StartTime, EndTime: row.EndTime, Notes: row.Notes,
			})
		}

		var sets []WorkoutSet
		if err := tx.Order("id ASC").Find(&sets).Error; err != nil {
			return newStoreError(opExportBackup, "set_query_failed", err)
		}
		for _, row := range sets {
			doc.Sets = append(doc.Sets, WorkoutSetBackup{
				ID: row.ID, SessionID: row.SessionID, ExerciseID: row.ExerciseID, SetIndex: row.SetIndex, WeightKg: row.WeightKg, Reps: row.Reps,
			})
		}

		var logs []DailyLog
		if err := tx.Order("date ASC").Find(&logs).Error; err != nil {
			return newStoreError(opExportBackup, "log_query_failed", err)
		}
		for _, row := range logs {
			doc.DailyLogs = append(doc.DailyLogs, DailyLogBackup{Date: row.Date, DidWorkout: row.DidWorkout, TookCreatine: row.TookCreatine})
		}
		return nil
	})
	if txErr != nil {
		s.logError(opExportBackup, "transaction_failed", txErr)
		return BackupDocument{}, txErr
	}
	return doc, nil
}

// WriteBackup streams the backup document as JSON into the sink.
func (s *Store) WriteBackup(ctx context.Context, sink io.Writer) error {
	doc, err := s.ExportBackup(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(sink)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		s.logError(opExportBackup, "encode_failed", err)
		return newStoreError(opExportBackup, "encode_failed", err)
	}
	return nil
}

// ReadBackup decodes a backup document from the source.
func ReadBackup(source io.Reader) (BackupDocument, error) {
	var doc BackupDocument
	decoder := json.NewDecoder(source)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return BackupDocument{}, newStoreError(opImportBackup, "decode_failed", ErrSerialization)
	}
	return doc, nil
}

// ImportBackup destructively replaces the whole dataset with the
// document's contents, preserving original ids and relationships. The
// document is validated in full before any row is touched; the clear
// and reinsert run in one transaction, so a mid-import failure leaves
// the previous dataset intact.
func (s *Store) ImportBackup(ctx context.Context, doc BackupDocument) error {
	if err := validateBackup(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children before parents, mirroring delete-cascade order.
		for _, model := range []interface{}{
			&WorkoutSet{}, &ExerciseHistoryEntry{}, &PersonalRecord{}, &RoutineExercise{},
			&WorkoutSession{}, &Routine{}, &Exercise{}, &DailyLog{}, &draftSlot{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return newStoreError(opImportBackup, "clear_failed", err)
			}
		}

		for _, row := range doc.Exercises {
			exercise := Exercise{ID: row.ID, Name: row.Name, Category: row.Category, ImageURI: row.ImageURI, Notes: row.Notes}
			if err := tx.Create(&exercise).Error; err != nil {
				return newStoreError(opImportBackup, "exercise_insert_failed", err)
			}
		}
		for _, row := range doc.PersonalRecords {
			record := PersonalRecord{ExerciseID: row.ExerciseID, BestWeightKg: row.BestWeightKg, BestReps: row.BestReps, FirstAchievedDate: row.FirstAchievedDate}
			if err := tx.Create(&record).Error; err != nil {
				return newStoreError(opImportBackup, "record_insert_failed", err)
			}
		}
		for _, row := range doc.ExerciseHistory {
			entry := ExerciseHistoryEntry{ExerciseID: row.ExerciseID, Date: row.Date}
			if err := tx.Create(&entry).Error; err != nil {
				return newStoreError(opImportBackup, "history_insert_failed", err)
			}
		}
		for _, row := range doc.Routines {
			routine := Routine{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
			if err := tx.Create(&routine).Error; err != nil {
				return newStoreError(opImportBackup, "routine_insert_failed", err)
			}
		}
		for _, row := range doc.RoutineExercises {
			reference := RoutineExercise{ID: row.ID, RoutineID: row.RoutineID, ExerciseID: row.ExerciseID, Position: row.Position}
			if err := tx.Create(&reference).Error; err != nil {
				return newStoreError(opImportBackup, "reference_insert_failed", err)
			}
		}
		for _, row := range doc.Sessions {
			session := WorkoutSession{ID: row.ID, Date: row.Date, StartTime: row.StartTime, EndTime: row.EndTime, Notes: row.Notes}
			if err := tx.Create(&session).Error; err != nil {
				return newStoreError(opImportBackup, "session_insert_failed", err)
			}
		}
		for _, row := range doc.Sets {
			set := WorkoutSet{ID: row.ID, SessionID: row.SessionID, ExerciseID: row.ExerciseID, SetIndex: row.SetIndex, WeightKg: row.WeightKg, Reps: row.Reps}
			if err := tx.Create(&set).Error; err != nil {
				return newStoreError(opImportBackup, "set_insert_failed", err)
			}
		}
		for _, row := range doc.DailyLogs {
			log := DailyLog{Date: row.Date, DidWorkout: row.DidWorkout, TookCreatine: row.TookCreatine}
			if err := tx.Create(&log).Error; err != nil {
				return newStoreError(opImportBackup, "log_insert_failed", err)
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opImportBackup, "transaction_failed", txErr)
		return txErr
	}

	s.draftFeed.publish(nil)
	s.publishDailyLogs(ctx)
	s.publishExerciseOverviews(ctx)
	return nil
}

// validateBackup checks required fields, date formats and id
// references before the destructive phase starts.
func validateBackup(doc BackupDocument) error {
	exerciseIDs := make(map[int64]struct{}, len(doc.Exercises))
	for _, row := range doc.Exercises {
		if row.ID == 0 || strings.TrimSpace(row.Name) == "" {
			return newStoreError(opImportBackup, "exercise_invalid", ErrSerialization)
		}
		if _, ok := exerciseIDs[row.ID]; ok {
			return newStoreError(opImportBackup, "exercise_id_duplicated", ErrSerialization)
		}
		exerciseIDs[row.ID] = struct{}{}
	}

	for _, row := range doc.PersonalRecords {
		if _, ok := exerciseIDs[row.ExerciseID]; !ok {
			return newStoreError(opImportBackup, "record_exercise_unknown", ErrSerialization)
		}
		if _, err := parseDate(row.FirstAchievedDate); err != nil {
			return newStoreError(opImportBackup, "record_date_invalid", ErrSerialization)
		}
	}

	for _, row := range doc.ExerciseHistory {
		if _, ok := exerciseIDs[row.ExerciseID]; !ok {
			return newStoreError(opImportBackup, "history_exercise_unknown", ErrSerialization)
		}
		if _, err := parseDate(row.Date); err != nil {
			return newStoreError(opImportBackup, "history_date_invalid", ErrSerialization)
		}
	}

	routineIDs := make(map[int64]struct{}, len(doc.Routines))
	for _, row := range doc.Routines {
		if row.ID == 0 || strings.TrimSpace(row.Name) == "" {
			return newStoreError(opImportBackup, "routine_invalid", ErrSerialization)
		}
		if _, err := parseTimestamp(row.CreatedAt); err != nil {
			return newStoreError(opImportBackup, "routine_created_at_invalid", ErrSerialization)
		}
		routineIDs[row.ID] = struct{}{}
	}

	for _, row := range doc.RoutineExercises {
		if _, ok := routineIDs[row.RoutineID]; !ok {
			return newStoreError(opImportBackup, "reference_routine_unknown", ErrSerialization)
		}
		if _, ok := exerciseIDs[row.ExerciseID]; !ok {
			return newStoreError(opImportBackup, "reference_exercise_unknown", ErrSerialization)
		}
	}

	sessionIDs := make(map[int64]struct{}, len(doc.Sessions))
	for _, row := range doc.Sessions {
		if row.ID == 0 {
			return newStoreError(opImportBackup, "session_invalid", ErrSerialization)
		}
		if _, err := parseDate(row.Date); err != nil {
			return newStoreError(opImportBackup, "session_date_invalid", ErrSerialization)
		}
		if _, err := parseClock(row.StartTime); err != nil {
			return newStoreError(opImportBackup, "session_start_invalid", ErrSerialization)
		}
		if _, err := parseClock(row.EndTime); err != nil {
			return newStoreError(opImportBackup, "session_end_invalid", ErrSerialization)
		}
		sessionIDs[row.ID] = struct{}{}
	}

	for _, row := range doc.Sets {
		if _, ok := sessionIDs[row.SessionID]; !ok {
			return newStoreError(opImportBackup, "set_session_unknown", ErrSerialization)
		}
		if _, ok := exerciseIDs[row.ExerciseID]; !ok {
			return newStoreError(opImportBackup, "set_exercise_unknown", ErrSerialization)
		}
		if row.WeightKg <= 0 || row.Reps <= 0 {
			return newStoreError(opImportBackup, "set_values_invalid", ErrSerialization)
		}
	}

	seenDates := make(map[string]struct{}, len(doc.DailyLogs))
	for _, row := range doc.DailyLogs {
		if _, err := parseDate(row.Date); err != nil {
			return newStoreError(opImportBackup, "log_date_invalid", ErrSerialization)
		}
		if _, ok := seenDates[row.Date]; ok {
			return newStoreError(opImportBackup, "log_date_duplicated", ErrSerialization)
		}
		seenDates[row.Date] = struct{}{}
	}
	return nil
}
