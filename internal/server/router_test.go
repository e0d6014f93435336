package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gymtrack/backend/internal/preferences"
	"github.com/gymtrack/backend/internal/workout"
	"gorm.io/gorm"
)

var testDBSequence int64

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSequence, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := workout.Entities()
	models = append(models, preferences.Entities()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Date(2024, time.January, 10, 18, 30, 0, 0, time.UTC) }
	store, err := workout.NewStore(workout.StoreConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	prefs, err := preferences.NewService(preferences.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct preferences: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{Store: store, Preferences: prefs, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func performJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func createExercise(t *testing.T, handler http.Handler, name string) int64 {
	t.Helper()
	recorder := performJSON(t, handler, http.MethodPost, "/exercises", fmt.Sprintf(`{"name":%q}`, name))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	var response struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, recorder, &response)
	return response.ID
}

func TestCreateExerciseValidation(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performJSON(t, handler, http.MethodPost, "/exercises", `{"name":"   "}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}

	createExercise(t, handler, "Bench Press")
	recorder = performJSON(t, handler, http.MethodGet, "/exercises", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var response struct {
		Exercises []struct {
			Name string `json:"name"`
		} `json:"exercises"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Exercises) != 1 || response.Exercises[0].Name != "Bench Press" {
		t.Fatalf("unexpected exercises %+v", response.Exercises)
	}
}

func TestExerciseDetailNotFound(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performJSON(t, handler, http.MethodGet, "/exercises/42", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
	if recorder.Code == http.StatusNotFound && !strings.Contains(recorder.Body.String(), "not_found") {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestRoutineDuplicateExerciseConflict(t *testing.T) {
	handler := newTestHandler(t)
	id := createExercise(t, handler, "Squat")

	body := fmt.Sprintf(`{"name":"Legs","exercise_ids":[%d,%d]}`, id, id)
	recorder := performJSON(t, handler, http.MethodPost, "/routines", body)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, recorder.Code, recorder.Body.String())
	}
}

func TestWorkoutFlowOverHTTP(t *testing.T) {
	handler := newTestHandler(t)
	bench := createExercise(t, handler, "Bench")
	squat := createExercise(t, handler, "Squat")

	routineBody := fmt.Sprintf(`{"name":"Push","exercise_ids":[%d,%d]}`, bench, squat)
	recorder := performJSON(t, handler, http.MethodPost, "/routines", routineBody)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("routine creation failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var routine struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, recorder, &routine)

	recorder = performJSON(t, handler, http.MethodPost, "/workout/start", fmt.Sprintf(`{"routine_id":%d}`, routine.ID))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("start failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var draft struct {
		Exercises []struct {
			ExerciseID int64 `json:"exercise_id"`
		} `json:"exercises"`
	}
	decodeBody(t, recorder, &draft)
	if len(draft.Exercises) != 2 {
		t.Fatalf("expected seeded draft, got %+v", draft.Exercises)
	}

	setPath := fmt.Sprintf("/workout/draft/exercises/%d/sets", bench)
	recorder = performJSON(t, handler, http.MethodPost, setPath, `{"weight_kg":80,"reps":5}`)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("add set failed: %d %s", recorder.Code, recorder.Body.String())
	}
	recorder = performJSON(t, handler, http.MethodPost, setPath, `{"weight_kg":0,"reps":5}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid set rejection, got %d", recorder.Code)
	}

	recorder = performJSON(t, handler, http.MethodPost, "/workout/complete", `{"end_time":"19:30:00"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("complete failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var summary struct {
		DurationSeconds int64 `json:"duration_s"`
		TotalExercises  int   `json:"total_exercises"`
		TotalSets       int   `json:"total_sets"`
		BrokenRecords   []struct {
			ExerciseName string `json:"exercise_name"`
		} `json:"broken_records"`
	}
	decodeBody(t, recorder, &summary)
	if summary.TotalExercises != 1 || summary.TotalSets != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.DurationSeconds != 3600 {
		t.Fatalf("expected 3600s duration, got %d", summary.DurationSeconds)
	}
	if len(summary.BrokenRecords) != 1 || summary.BrokenRecords[0].ExerciseName != "Bench" {
		t.Fatalf("unexpected broken records %+v", summary.BrokenRecords)
	}

	recorder = performJSON(t, handler, http.MethodGet, "/workout/draft", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("draft should be cleared, got %d", recorder.Code)
	}

	recorder = performJSON(t, handler, http.MethodGet, "/streak", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("streak failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var streakResponse struct {
		CurrentStreak int    `json:"current_streak"`
		Mode          string `json:"mode"`
	}
	decodeBody(t, recorder, &streakResponse)
	if streakResponse.CurrentStreak != 1 || streakResponse.Mode != "days" {
		t.Fatalf("unexpected streak %+v", streakResponse)
	}

	recorder = performJSON(t, handler, http.MethodGet, "/calendar?year=2024&month=1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("calendar failed: %d", recorder.Code)
	}
	var calendar struct {
		Days []int `json:"days"`
	}
	decodeBody(t, recorder, &calendar)
	if len(calendar.Days) != 1 || calendar.Days[0] != 10 {
		t.Fatalf("unexpected calendar %+v", calendar)
	}
}

func TestBackupEndpointsRoundTrip(t *testing.T) {
	handler := newTestHandler(t)
	createExercise(t, handler, "Deadlift")

	recorder := performJSON(t, handler, http.MethodGet, "/backup", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("export failed: %d", recorder.Code)
	}
	exported := recorder.Body.String()

	target := newTestHandler(t)
	recorder = performJSON(t, target, http.MethodPost, "/backup", exported)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("import failed: %d %s", recorder.Code, recorder.Body.String())
	}

	recorder = performJSON(t, target, http.MethodGet, "/exercises", "")
	var response struct {
		Exercises []struct {
			Name string `json:"name"`
		} `json:"exercises"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Exercises) != 1 || response.Exercises[0].Name != "Deadlift" {
		t.Fatalf("imported dataset missing: %+v", response.Exercises)
	}
}

func TestImportBackupRejectsMalformedDocument(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performJSON(t, handler, http.MethodPost, "/backup", `{"exercises":[{"id":1,"name":""}]}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performJSON(t, handler, http.MethodGet, "/preferences", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("load failed: %d", recorder.Code)
	}
	var prefs struct {
		Theme      string `json:"theme"`
		StreakMode string `json:"streak_mode"`
	}
	decodeBody(t, recorder, &prefs)
	if prefs.Theme != "system" || prefs.StreakMode != "days" {
		t.Fatalf("unexpected defaults %+v", prefs)
	}

	recorder = performJSON(t, handler, http.MethodPut, "/preferences/streak-mode", `{"streak_mode":"weeks"}`)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("update failed: %d %s", recorder.Code, recorder.Body.String())
	}
	recorder = performJSON(t, handler, http.MethodPut, "/preferences/theme", `{"theme":"sepia"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid theme rejection, got %d", recorder.Code)
	}

	// The streak endpoint picks the stored mode up as its default.
	recorder = performJSON(t, handler, http.MethodGet, "/streak", "")
	var streakResponse struct {
		Mode string `json:"mode"`
	}
	decodeBody(t, recorder, &streakResponse)
	if streakResponse.Mode != "weeks" {
		t.Fatalf("expected stored mode, got %+v", streakResponse)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performJSON(t, handler, http.MethodGet, "/exercises", "")
	if recorder.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id header")
	}

	request := httptest.NewRequest(http.MethodGet, "/exercises", http.NoBody)
	request.Header.Set(requestIDHeader, "fixed-id")
	echo := httptest.NewRecorder()
	handler.ServeHTTP(echo, request)
	if echo.Header().Get(requestIDHeader) != "fixed-id" {
		t.Fatalf("expected request id to be echoed, got %q", echo.Header().Get(requestIDHeader))
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t)

	request := httptest.NewRequest(http.MethodOptions, "/exercises", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight")
	}
}
