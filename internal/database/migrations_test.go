package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gymtrack/backend/internal/workout"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsNormalizesRoutinePositions(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	models := workout.Entities()
	models = append(models, &migrationRecord{})
	if err := database.AutoMigrate(models...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	seed := []workout.RoutineExercise{
		{RoutineID: 1, ExerciseID: 10, Position: 3},
		{RoutineID: 1, ExerciseID: 11, Position: 7},
		{RoutineID: 2, ExerciseID: 10, Position: 5},
	}
	for index := range seed {
		if err := database.Create(&seed[index]).Error; err != nil {
			testContext.Fatalf("failed to insert routine exercise: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var normalized []workout.RoutineExercise
	if err := database.Order("routine_id ASC, position ASC").Find(&normalized).Error; err != nil {
		testContext.Fatalf("failed to reload routine exercises: %v", err)
	}
	expected := []struct {
		routineID  int64
		exerciseID int64
		position   int
	}{
		{routineID: 1, exerciseID: 10, position: 0},
		{routineID: 1, exerciseID: 11, position: 1},
		{routineID: 2, exerciseID: 10, position: 0},
	}
	if len(normalized) != len(expected) {
		testContext.Fatalf("expected %d rows, got %d", len(expected), len(normalized))
	}
	for index, want := range expected {
		got := normalized[index]
		if got.RoutineID != want.routineID || got.ExerciseID != want.exerciseID || got.Position != want.position {
			testContext.Fatalf("row %d: expected %+v, got %+v", index, want, got)
		}
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationNormalizeRoutinePositions).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	// A second run is a no-op because the record is present.
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("reapplying migrations failed: %v", err)
	}
}
