package workout

import "time"

func testDate() time.Time {
	return time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
}

func testClock(hour, minute int) time.Time {
	return time.Date(0, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func draftWithSets(exerciseID int64, setCount int) Draft {
	sets := make([]DraftSet, 0, setCount)
	for i := 0; i < setCount; i++ {
		sets = append(sets, DraftSet{WeightKg: 60, Reps: 8})
	}
	return Draft{
		StartDate: testDate(),
		StartTime: testClock(18, 30),
		Exercises: []DraftExercise{{ExerciseID: exerciseID, Name: "Exercise", Sets: sets}},
	}
}
