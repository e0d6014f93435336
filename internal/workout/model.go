package workout

import (
	"fmt"
	"time"
)

// Dates and clock times are persisted as ISO-8601 strings so rows stay
// readable in the database file and map one-to-one onto the backup
// document format.
const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04:05"
	timestampLayout = time.RFC3339
)

// Exercise is a user-defined movement with optional metadata.
type Exercise struct {
	ID       int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string  `gorm:"column:name;size:190;not null"`
	Category *string `gorm:"column:category;size:190"`
	ImageURI *string `gorm:"column:image_uri;type:text"`
	Notes    *string `gorm:"column:notes;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (Exercise) TableName() string {
	return "exercises"
}

// PersonalRecord holds the best lift per exercise. It is overwritten in
// place; FirstAchievedDate only advances on a strict improvement.
type PersonalRecord struct {
	ExerciseID        int64   `gorm:"column:exercise_id;primaryKey"`
	BestWeightKg      float64 `gorm:"column:best_weight_kg;not null"`
	BestReps          int     `gorm:"column:best_reps;not null"`
	FirstAchievedDate string  `gorm:"column:first_achieved_date;size:32;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PersonalRecord) TableName() string {
	return "personal_records"
}

// ExerciseHistoryEntry marks that an exercise was used on a date. The
// composite key keeps one mark per exercise per day.
type ExerciseHistoryEntry struct {
	ExerciseID int64  `gorm:"column:exercise_id;primaryKey"`
	Date       string `gorm:"column:date;primaryKey;size:32;index:idx_history_date"`
}

// TableName provides the explicit table binding for GORM.
func (ExerciseHistoryEntry) TableName() string {
	return "exercise_history"
}

// Routine is a reusable workout template.
type Routine struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string `gorm:"column:name;size:190;not null"`
	CreatedAt string `gorm:"column:created_at;size:64;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Routine) TableName() string {
	return "routines"
}

// RoutineExercise orders one exercise inside a routine. Position is a
// dense zero-based index unique per routine.
type RoutineExercise struct {
	ID         int64 `gorm:"column:id;primaryKey;autoIncrement"`
	RoutineID  int64 `gorm:"column:routine_id;not null;index:idx_routine_exercises_routine"`
	ExerciseID int64 `gorm:"column:exercise_id;not null;index:idx_routine_exercises_exercise"`
	Position   int   `gorm:"column:position;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RoutineExercise) TableName() string {
	return "routine_exercises"
}

// WorkoutSession is a completed workout. Rows are created only by the
// completion transaction and never partially committed.
type WorkoutSession struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Date      string  `gorm:"column:date;size:32;not null;index:idx_sessions_date"`
	StartTime string  `gorm:"column:start_time;size:32;not null"`
	EndTime   string  `gorm:"column:end_time;size:32;not null"`
	Notes     *string `gorm:"column:notes;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (WorkoutSession) TableName() string {
	return "workout_sessions"
}

// WorkoutSet is one performed set inside a session. Immutable once
// written.
type WorkoutSet struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID  int64   `gorm:"column:session_id;not null;index:idx_sets_session"`
	ExerciseID int64   `gorm:"column:exercise_id;not null;index:idx_sets_exercise"`
	SetIndex   int     `gorm:"column:set_index;not null"`
	WeightKg   float64 `gorm:"column:weight_kg;not null"`
	Reps       int     `gorm:"column:reps;not null"`
}

// TableName provides the explicit table binding for GORM.
func (WorkoutSet) TableName() string {
	return "workout_sets"
}

// DailyLog tracks two independent flags per calendar date.
type DailyLog struct {
	Date         string `gorm:"column:date;primaryKey;size:32"`
	DidWorkout   bool   `gorm:"column:did_workout;not null;default:false"`
	TookCreatine bool   `gorm:"column:took_creatine;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (DailyLog) TableName() string {
	return "daily_logs"
}

// draftSlot is the singleton row backing the active workout draft. The
// fixed primary key enforces the 0-or-1 invariant through upserts.
type draftSlot struct {
	Slot        int    `gorm:"column:slot;primaryKey;autoIncrement:false"`
	RoutineID   *int64 `gorm:"column:routine_id"`
	StartDate   string `gorm:"column:start_date;size:32;not null"`
	StartTime   string `gorm:"column:start_time;size:32;not null"`
	PayloadJSON string `gorm:"column:payload_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (draftSlot) TableName() string {
	return "active_workout"
}

const draftSlotKey = 0

// DraftSet is one planned set inside the active draft.
type DraftSet struct {
	WeightKg float64 `json:"weight_kg"`
	Reps     int     `json:"reps"`
}

// DraftExercise pairs an exercise with its ordered sets inside the
// active draft. The name is denormalized so the draft stays renderable
// even while exercises are renamed.
type DraftExercise struct {
	ExerciseID int64      `json:"exercise_id"`
	Name       string     `json:"name"`
	Sets       []DraftSet `json:"sets"`
}

// Draft is the single in-progress workout.
type Draft struct {
	RoutineID *int64
	StartDate time.Time
	StartTime time.Time
	Exercises []DraftExercise
}

// RecordView is the personal-record projection attached to overviews.
type RecordView struct {
	BestWeightKg      float64
	BestReps          int
	FirstAchievedDate time.Time
}

// ExerciseOverview is the display-layer projection of one exercise.
type ExerciseOverview struct {
	ID         int64
	Name       string
	Category   *string
	ImageURI   *string
	Notes      *string
	Record     *RecordView
	UsageCount int
}

// SetHistoryEntry is one historical set with its session context.
type SetHistoryEntry struct {
	SessionID    int64
	Date         time.Time
	StartTime    time.Time
	EndTime      time.Time
	SetIndex     int
	WeightKg     float64
	Reps         int
	SessionNotes *string
}

// ExerciseDetail combines an overview with usage history and sets.
type ExerciseDetail struct {
	Overview ExerciseOverview
	History  []time.Time
	Sets     []SetHistoryEntry
}

// RoutineExerciseItem is one ordered entry of a routine overview.
type RoutineExerciseItem struct {
	ID         int64
	ExerciseID int64
	Name       string
	Position   int
}

// RoutineOverview is the display-layer projection of one routine.
type RoutineOverview struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	Exercises []RoutineExerciseItem
}

// DailyLogView is the parsed form of a daily log row.
type DailyLogView struct {
	Date         time.Time
	DidWorkout   bool
	TookCreatine bool
}

// RecordBreak reports one personal record broken by a completed
// workout.
type RecordBreak struct {
	ExerciseName string
	WeightKg     float64
	Reps         int
}

// Summary is returned by the workout completion transaction.
type Summary struct {
	SessionID      int64
	Duration       time.Duration
	TotalExercises int
	TotalSets      int
	BrokenRecords  []RecordBreak
}

// ActivitySummary aggregates a month of activity for the profile view.
type ActivitySummary struct {
	MonthlySessions       int
	TopExercises          []string
	RecentPersonalRecords []string
}

// Entities lists every persisted model so the database layer can run
// schema migration without reaching into package internals.
func Entities() []interface{} {
	return []interface{}{
		&Exercise{}, &PersonalRecord{}, &ExerciseHistoryEntry{},
		&Routine{}, &RoutineExercise{},
		&WorkoutSession{}, &WorkoutSet{},
		&DailyLog{}, &draftSlot{},
	}
}

func formatDate(value time.Time) string {
	return value.Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return parsed, nil
}

func formatClock(value time.Time) string {
	return value.Format(clockLayout)
}

func parseClock(value string) (time.Time, error) {
	parsed, err := time.Parse(clockLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return parsed, nil
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return parsed, nil
}
