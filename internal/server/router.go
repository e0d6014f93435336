package server

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gymtrack/backend/internal/preferences"
	"github.com/gymtrack/backend/internal/streak"
	"github.com/gymtrack/backend/internal/workout"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	errMissingStore       = errors.New("workout store dependency required")
	errMissingPreferences = errors.New("preferences service dependency required")
)

// Dependencies lists what the HTTP surface needs to operate.
type Dependencies struct {
	Store       *workout.Store
	Preferences *preferences.Service
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewHTTPHandler builds the gin router exposing the store and the
// preference service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Preferences == nil {
		return nil, errMissingPreferences
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:  deps.Store,
		prefs:  deps.Preferences,
		logger: logger,
		clock:  clock,
	}

	router.GET("/exercises", handler.handleListExercises)
	router.POST("/exercises", handler.handleCreateExercise)
	router.GET("/exercises/:id", handler.handleExerciseDetail)
	router.PUT("/exercises/:id", handler.handleUpdateExercise)
	router.PUT("/exercises/:id/notes", handler.handleUpdateExerciseNotes)
	router.PUT("/exercises/:id/image", handler.handleUpdateExerciseImage)
	router.DELETE("/exercises/:id", handler.handleDeleteExercise)
	router.GET("/categories", handler.handleCategories)

	router.GET("/routines", handler.handleListRoutines)
	router.POST("/routines", handler.handleCreateRoutine)
	router.GET("/routines/:id", handler.handleRoutineDetail)
	router.PUT("/routines/:id", handler.handleUpdateRoutine)
	router.DELETE("/routines/:id", handler.handleDeleteRoutine)

	router.POST("/workout/start", handler.handleStartWorkout)
	router.GET("/workout/draft", handler.handleDraft)
	router.DELETE("/workout/draft", handler.handleClearDraft)
	router.POST("/workout/draft/exercises", handler.handleAddDraftExercise)
	router.DELETE("/workout/draft/exercises/:exerciseId", handler.handleRemoveDraftExercise)
	router.POST("/workout/draft/exercises/:exerciseId/sets", handler.handleAddDraftSet)
	router.DELETE("/workout/draft/exercises/:exerciseId/sets/:index", handler.handleRemoveDraftSet)
	router.POST("/workout/complete", handler.handleCompleteWorkout)

	router.GET("/daily-logs", handler.handleDailyLogs)
	router.POST("/daily-logs/creatine", handler.handleToggleCreatine)
	router.POST("/daily-logs/workout", handler.handleMarkWorkoutDay)
	router.GET("/streak", handler.handleStreak)
	router.GET("/summary", handler.handleActivitySummary)
	router.GET("/calendar", handler.handleCalendar)

	router.GET("/backup", handler.handleExportBackup)
	router.POST("/backup", handler.handleImportBackup)

	router.GET("/events", handler.handleEvents)

	router.GET("/preferences", handler.handlePreferences)
	router.PUT("/preferences/theme", handler.handleUpdateTheme)
	router.PUT("/preferences/weight-unit", handler.handleUpdateWeightUnit)
	router.PUT("/preferences/streak-mode", handler.handleUpdateStreakMode)
	router.PUT("/preferences/creatine-reminder", handler.handleUpdateCreatineReminder)

	return router, nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

type httpHandler struct {
	store  *workout.Store
	prefs  *preferences.Service
	logger *zap.Logger
	clock  func() time.Time
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workout.ErrInvalidInput),
		errors.Is(err, workout.ErrSerialization),
		errors.Is(err, preferences.ErrInvalidPreference):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case errors.Is(err, workout.ErrDuplicateExercise):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_exercise"})
	case errors.Is(err, workout.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.Writer.Header().Get(requestIDHeader)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

// bindOptionalJSON decodes the body when one is present. A missing
// body leaves the target at its zero value.
func bindOptionalJSON(c *gin.Context, target interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

func (h *httpHandler) yearMonth(c *gin.Context) (int, time.Month, bool) {
	now := h.clock()
	year := now.Year()
	month := now.Month()

	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_year"})
			return 0, 0, false
		}
		year = parsed
	}
	if raw := c.Query("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
			return 0, 0, false
		}
		month = time.Month(parsed)
	}
	return year, month, true
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

type recordPayload struct {
	BestWeightKg      float64 `json:"best_weight_kg"`
	BestReps          int     `json:"best_reps"`
	FirstAchievedDate string  `json:"first_achieved_date"`
}

type exerciseOverviewPayload struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Category   *string        `json:"category"`
	ImageURI   *string        `json:"image_uri"`
	Notes      *string        `json:"notes"`
	Record     *recordPayload `json:"record"`
	UsageCount int            `json:"usage_count"`
}

func overviewPayload(overview workout.ExerciseOverview) exerciseOverviewPayload {
	payload := exerciseOverviewPayload{
		ID:         overview.ID,
		Name:       overview.Name,
		Category:   overview.Category,
		ImageURI:   overview.ImageURI,
		Notes:      overview.Notes,
		UsageCount: overview.UsageCount,
	}
	if overview.Record != nil {
		payload.Record = &recordPayload{
			BestWeightKg:      overview.Record.BestWeightKg,
			BestReps:          overview.Record.BestReps,
			FirstAchievedDate: overview.Record.FirstAchievedDate.Format(dateLayout),
		}
	}
	return payload
}

func (h *httpHandler) handleListExercises(c *gin.Context) {
	overviews, err := h.store.ExerciseOverviews(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	payload := make([]exerciseOverviewPayload, 0, len(overviews))
	for _, overview := range overviews {
		payload = append(payload, overviewPayload(overview))
	}
	c.JSON(http.StatusOK, gin.H{"exercises": payload})
}

type exerciseRequestPayload struct {
	Name     string  `json:"name"`
	Category *string `json:"category"`
	ImageURI *string `json:"image_uri"`
	Notes    *string `json:"notes"`
}

func (h *httpHandler) handleCreateExercise(c *gin.Context) {
	var request exerciseRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id, err := h.store.InsertExercise(c.Request.Context(), request.Name, request.Category, request.ImageURI, request.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *httpHandler) handleUpdateExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var request exerciseRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.UpdateExercise(c.Request.Context(), id, request.Name, request.Category, request.ImageURI, request.Notes); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateExerciseNotes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var request struct {
		Notes *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.UpdateExerciseNotes(c.Request.Context(), id, request.Notes); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateExerciseImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var request struct {
		ImageURI *string `json:"image_uri"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.UpdateExerciseImage(c.Request.Context(), id, request.ImageURI); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteExercise(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleExerciseDetail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.store.ExerciseDetail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	history := make([]string, 0, len(detail.History))
	for _, date := range detail.History {
		history = append(history, date.Format(dateLayout))
	}
	sets := make([]gin.H, 0, len(detail.Sets))
	for _, set := range detail.Sets {
		sets = append(sets, gin.H{
			"session_id": set.SessionID,
			"date":       set.Date.Format(dateLayout),
			"start_time": set.StartTime.Format(clockLayout),
			"end_time":   set.EndTime.Format(clockLayout),
			"set_index":  set.SetIndex,
			"weight_kg":  set.WeightKg,
			"reps":       set.Reps,
			"notes":      set.SessionNotes,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"exercise": overviewPayload(detail.Overview),
		"history":  history,
		"sets":     sets,
	})
}

func (h *httpHandler) handleCategories(c *gin.Context) {
	categories, err := h.store.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type routinePayload struct {
	ID        int64                 `json:"id"`
	Name      string                `json:"name"`
	CreatedAt string                `json:"created_at"`
	Exercises []routineEntryPayload `json:"exercises"`
}

type routineEntryPayload struct {
	ID         int64  `json:"id"`
	ExerciseID int64  `json:"exercise_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}

func routineToPayload(overview workout.RoutineOverview) routinePayload {
	entries := make([]routineEntryPayload, 0, len(overview.Exercises))
	for _, item := range overview.Exercises {
		entries = append(entries, routineEntryPayload{
			ID:         item.ID,
			ExerciseID: item.ExerciseID,
			Name:       item.Name,
			Position:   item.Position,
		})
	}
	return routinePayload{
		ID:        overview.ID,
		Name:      overview.Name,
		CreatedAt: overview.CreatedAt.Format(time.RFC3339),
		Exercises: entries,
	}
}

func (h *httpHandler) handleListRoutines(c *gin.Context) {
	overviews, err := h.store.RoutineOverviews(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	payload := make([]routinePayload, 0, len(overviews))
	for _, overview := range overviews {
		payload = append(payload, routineToPayload(overview))
	}
	c.JSON(http.StatusOK, gin.H{"routines": payload})
}

func (h *httpHandler) handleRoutineDetail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	overview, err := h.store.RoutineOverview(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, routineToPayload(overview))
}

type routineRequestPayload struct {
	Name        string  `json:"name"`
	ExerciseIDs []int64 `json:"exercise_ids"`
}

func (h *httpHandler) handleCreateRoutine(c *gin.Context) {
	var request routineRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	id, err := h.store.UpsertRoutine(c.Request.Context(), nil, request.Name, request.ExerciseIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *httpHandler) handleUpdateRoutine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var request routineRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if _, err := h.store.UpsertRoutine(c.Request.Context(), &id, request.Name, request.ExerciseIDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteRoutine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteRoutine(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type draftResponsePayload struct {
	RoutineID *int64                  `json:"routine_id"`
	StartDate string                  `json:"start_date"`
	StartTime string                  `json:"start_time"`
	Exercises []workout.DraftExercise `json:"exercises"`
}

func draftToPayload(draft workout.Draft) draftResponsePayload {
	return draftResponsePayload{
		RoutineID: draft.RoutineID,
		StartDate: draft.StartDate.Format(dateLayout),
		StartTime: draft.StartTime.Format(clockLayout),
		Exercises: draft.Exercises,
	}
}

func (h *httpHandler) handleStartWorkout(c *gin.Context) {
	var request struct {
		RoutineID *int64 `json:"routine_id"`
	}
	if !bindOptionalJSON(c, &request) {
		return
	}
	draft, err := h.store.StartWorkout(c.Request.Context(), request.RoutineID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draftToPayload(draft))
}

func (h *httpHandler) handleDraft(c *gin.Context) {
	draft, err := h.store.Draft(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftToPayload(draft))
}

func (h *httpHandler) handleClearDraft(c *gin.Context) {
	if err := h.store.ClearDraft(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddDraftExercise(c *gin.Context) {
	var request struct {
		ExerciseID int64 `json:"exercise_id"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.AddExerciseToDraft(c.Request.Context(), request.ExerciseID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveDraftExercise(c *gin.Context) {
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	if err := h.store.RemoveExerciseFromDraft(c.Request.Context(), exerciseID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddDraftSet(c *gin.Context) {
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	var request struct {
		WeightKg float64 `json:"weight_kg"`
		Reps     int     `json:"reps"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.AddSetToDraft(c.Request.Context(), exerciseID, request.WeightKg, request.Reps); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveDraftSet(c *gin.Context) {
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_index"})
		return
	}
	if err := h.store.RemoveSetFromDraft(c.Request.Context(), exerciseID, index); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCompleteWorkout(c *gin.Context) {
	var request struct {
		EndTime string  `json:"end_time"`
		Notes   *string `json:"notes"`
	}
	if !bindOptionalJSON(c, &request) {
		return
	}

	endTime := h.clock()
	if strings.TrimSpace(request.EndTime) != "" {
		parsed, err := time.Parse(clockLayout, request.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_end_time"})
			return
		}
		endTime = parsed
	}

	summary, err := h.store.CompleteWorkout(c.Request.Context(), endTime, request.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}

	broken := make([]gin.H, 0, len(summary.BrokenRecords))
	for _, record := range summary.BrokenRecords {
		broken = append(broken, gin.H{
			"exercise_name": record.ExerciseName,
			"weight_kg":     record.WeightKg,
			"reps":          record.Reps,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":      summary.SessionID,
		"duration_s":      int64(summary.Duration.Seconds()),
		"total_exercises": summary.TotalExercises,
		"total_sets":      summary.TotalSets,
		"broken_records":  broken,
	})
}

func (h *httpHandler) handleDailyLogs(c *gin.Context) {
	logs, err := h.store.DailyLogs(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	payload := make([]gin.H, 0, len(logs))
	for _, log := range logs {
		payload = append(payload, gin.H{
			"date":          log.Date.Format(dateLayout),
			"did_workout":   log.DidWorkout,
			"took_creatine": log.TookCreatine,
		})
	}
	c.JSON(http.StatusOK, gin.H{"daily_logs": payload})
}

func (h *httpHandler) handleToggleCreatine(c *gin.Context) {
	var request struct {
		Date         string `json:"date"`
		TookCreatine bool   `json:"took_creatine"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	date := h.clock()
	if strings.TrimSpace(request.Date) != "" {
		parsed, err := time.Parse(dateLayout, request.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		date = parsed
	}

	if err := h.store.ToggleCreatine(c.Request.Context(), date, request.TookCreatine); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkWorkoutDay(c *gin.Context) {
	var request struct {
		Date string `json:"date"`
	}
	if !bindOptionalJSON(c, &request) {
		return
	}

	date := h.clock()
	if strings.TrimSpace(request.Date) != "" {
		parsed, err := time.Parse(dateLayout, request.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		date = parsed
	}

	if err := h.store.EnsureWorkoutLog(c.Request.Context(), date); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleStreak(c *gin.Context) {
	mode := streak.Mode(c.Query("mode"))
	if mode == "" {
		prefs, err := h.prefs.Preferences(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		mode = prefs.StreakMode
	}
	if mode != streak.ModeDays && mode != streak.ModeWeeks {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_mode"})
		return
	}

	info, err := h.store.StreakInfo(c.Request.Context(), mode, h.clock())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current_streak": info.CurrentStreak,
		"mode":           string(info.Mode),
	})
}

func (h *httpHandler) handleActivitySummary(c *gin.Context) {
	year, month, ok := h.yearMonth(c)
	if !ok {
		return
	}
	summary, err := h.store.ActivitySummary(c.Request.Context(), year, month)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"monthly_sessions":        summary.MonthlySessions,
		"top_exercises":           summary.TopExercises,
		"recent_personal_records": summary.RecentPersonalRecords,
	})
}

func (h *httpHandler) handleCalendar(c *gin.Context) {
	year, month, ok := h.yearMonth(c)
	if !ok {
		return
	}
	marked, err := h.store.WorkoutCalendar(c.Request.Context(), year, month)
	if err != nil {
		h.writeError(c, err)
		return
	}
	days := make([]int, 0, len(marked))
	for day := range marked {
		days = append(days, day)
	}
	sort.Ints(days)
	c.JSON(http.StatusOK, gin.H{"year": year, "month": int(month), "days": days})
}

func (h *httpHandler) handleExportBackup(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="gymtrack-backup.json"`)
	if err := h.store.WriteBackup(c.Request.Context(), c.Writer); err != nil {
		h.writeError(c, err)
	}
}

func (h *httpHandler) handleImportBackup(c *gin.Context) {
	doc, err := workout.ReadBackup(c.Request.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.store.ImportBackup(c.Request.Context(), doc); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleEvents streams store snapshots as server-sent events. Each
// feed delivers its current state immediately, then every committed
// change.
func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()

	drafts, cancelDrafts, err := h.store.ObserveDraft(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer cancelDrafts()

	exercises, cancelExercises, err := h.store.ObserveExercises(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer cancelExercises()

	logs, cancelLogs, err := h.store.ObserveDailyLogs(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer cancelLogs()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case draft := <-drafts:
			if draft == nil {
				c.SSEvent("draft", gin.H{"active": false})
			} else {
				c.SSEvent("draft", draftToPayload(*draft))
			}
			return true
		case snapshot := <-exercises:
			payload := make([]exerciseOverviewPayload, 0, len(snapshot))
			for _, overview := range snapshot {
				payload = append(payload, overviewPayload(overview))
			}
			c.SSEvent("exercises", payload)
			return true
		case snapshot := <-logs:
			payload := make([]gin.H, 0, len(snapshot))
			for _, log := range snapshot {
				payload = append(payload, gin.H{
					"date":          log.Date.Format(dateLayout),
					"did_workout":   log.DidWorkout,
					"took_creatine": log.TookCreatine,
				})
			}
			c.SSEvent("daily_logs", payload)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *httpHandler) handlePreferences(c *gin.Context) {
	prefs, err := h.prefs.Preferences(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"theme":                  string(prefs.Theme),
		"weight_unit":            string(prefs.WeightUnit),
		"streak_mode":            string(prefs.StreakMode),
		"creatine_reminder_on":   prefs.CreatineReminderOn,
		"reminder_minute_of_day": prefs.ReminderMinuteOfDay,
	})
}

func (h *httpHandler) handleUpdateTheme(c *gin.Context) {
	var request struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.prefs.UpdateTheme(c.Request.Context(), preferences.Theme(request.Theme)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateWeightUnit(c *gin.Context) {
	var request struct {
		WeightUnit string `json:"weight_unit"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.prefs.UpdateWeightUnit(c.Request.Context(), preferences.WeightUnit(request.WeightUnit)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateStreakMode(c *gin.Context) {
	var request struct {
		StreakMode string `json:"streak_mode"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.prefs.UpdateStreakMode(c.Request.Context(), streak.Mode(request.StreakMode)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateCreatineReminder(c *gin.Context) {
	var request struct {
		Enabled     bool `json:"enabled"`
		MinuteOfDay *int `json:"minute_of_day"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.prefs.UpdateCreatineReminder(c.Request.Context(), request.Enabled, request.MinuteOfDay); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
