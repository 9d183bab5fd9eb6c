// ABOUTME: REST handlers for tasks, long-term tasks, journals, and memos
// ABOUTME: The web UI edits these directly, outside the assistant's tool gate

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/taskstream/assistant/internal/auth"
	"github.com/taskstream/assistant/internal/store"
)

type taskBody struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Status            int      `json:"status"`
	DueDate           string   `json:"due_date"`
	AssignedDate      string   `json:"assigned_date"`
	AssignedStartTime string   `json:"assigned_start_time"`
	AssignedEndTime   string   `json:"assigned_end_time"`
	Tags              []string `json:"tags"`
	RecordResult      bool     `json:"record_result"`
	Result            string   `json:"result"`
	ResultPictureURLs []string `json:"result_picture_url"`
	LongTermTaskID    *int64   `json:"long_term_task_id"`
}

type taskView struct {
	ID int64 `json:"id"`
	taskBody
}

func viewTask(t *store.Task) taskView {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	urls := t.ResultPictureURLs
	if urls == nil {
		urls = []string{}
	}
	return taskView{
		ID: t.ID,
		taskBody: taskBody{
			Title:             t.Title,
			Description:       t.Description,
			Status:            t.Status,
			DueDate:           t.DueDate,
			AssignedDate:      t.AssignedDate,
			AssignedStartTime: t.AssignedStartTime,
			AssignedEndTime:   t.AssignedEndTime,
			Tags:              tags,
			RecordResult:      t.RecordResult,
			Result:            t.Result,
			ResultPictureURLs: urls,
			LongTermTaskID:    t.LongTermTaskID,
		},
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")

	var (
		tasks []*store.Task
		err   error
	)
	if start != "" && end != "" {
		tasks, err = s.store.ListTasksInRange(r.Context(), userID, start, end)
	} else {
		tasks, err = s.store.ListTasks(r.Context(), userID)
	}
	if err != nil {
		s.logger.Error("listing tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = viewTask(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req taskBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.AssignedDate == "" {
		req.AssignedDate = time.Now().Format("2006-01-02")
	}

	task := &store.Task{
		UserID:            userID,
		Title:             req.Title,
		Description:       req.Description,
		Status:            req.Status,
		DueDate:           req.DueDate,
		AssignedDate:      req.AssignedDate,
		AssignedStartTime: req.AssignedStartTime,
		AssignedEndTime:   req.AssignedEndTime,
		Tags:              req.Tags,
		RecordResult:      req.RecordResult,
		Result:            req.Result,
		ResultPictureURLs: req.ResultPictureURLs,
		LongTermTaskID:    req.LongTermTaskID,
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		s.logger.Error("creating task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, viewTask(task))
}

// loadOwnedTask fetches a task and enforces ownership.
func (s *Server) loadOwnedTask(w http.ResponseWriter, r *http.Request) (*store.Task, bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return nil, false
	}

	task, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("loading task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if task.UserID != userID {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return task, true
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewTask(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedTask(w, r)
	if !ok {
		return
	}
	var req taskBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	task.Status = req.Status
	task.DueDate = req.DueDate
	task.AssignedDate = req.AssignedDate
	task.AssignedStartTime = req.AssignedStartTime
	task.AssignedEndTime = req.AssignedEndTime
	task.Tags = req.Tags
	task.RecordResult = req.RecordResult
	task.Result = req.Result
	task.ResultPictureURLs = req.ResultPictureURLs
	task.LongTermTaskID = req.LongTermTaskID

	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		s.logger.Error("updating task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, viewTask(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedTask(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(r.Context(), task.ID); err != nil {
		s.logger.Error("deleting task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type longTermBody struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	StartDate      string             `json:"start_date"`
	DueDate        string             `json:"due_date"`
	SubTaskWeights map[string]float64 `json:"sub_task_ids"`
}

type longTermView struct {
	ID int64 `json:"id"`
	longTermBody
	Progress float64 `json:"progress"`
}

func viewLongTerm(t *store.LongTermTask) longTermView {
	weights := t.SubTaskWeights
	if weights == nil {
		weights = map[string]float64{}
	}
	return longTermView{
		ID: t.ID,
		longTermBody: longTermBody{
			Title:          t.Title,
			Description:    t.Description,
			StartDate:      t.StartDate,
			DueDate:        t.DueDate,
			SubTaskWeights: weights,
		},
		Progress: t.Progress,
	}
}

func (s *Server) handleListLongTermTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	uncompletedOnly := r.URL.Query().Get("uncompleted_only") == "true"

	tasks, err := s.store.ListLongTermTasks(r.Context(), userID, uncompletedOnly)
	if err != nil {
		s.logger.Error("listing long-term tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]longTermView, len(tasks))
	for i, t := range tasks {
		out[i] = viewLongTerm(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateLongTermTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req longTermBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	task := &store.LongTermTask{
		UserID:         userID,
		Title:          req.Title,
		Description:    req.Description,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		SubTaskWeights: req.SubTaskWeights,
	}
	if err := s.store.CreateLongTermTask(r.Context(), task); err != nil {
		s.logger.Error("creating long-term task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, viewLongTerm(task))
}

func (s *Server) loadOwnedLongTerm(w http.ResponseWriter, r *http.Request) (*store.LongTermTask, bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return nil, false
	}

	task, err := s.store.GetLongTermTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "long-term task not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("loading long-term task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if task.UserID != userID {
		writeError(w, http.StatusNotFound, "long-term task not found")
		return nil, false
	}
	return task, true
}

func (s *Server) handleGetLongTermTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedLongTerm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewLongTerm(task))
}

func (s *Server) handleUpdateLongTermTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedLongTerm(w, r)
	if !ok {
		return
	}
	var req longTermBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	task.StartDate = req.StartDate
	task.DueDate = req.DueDate
	task.SubTaskWeights = req.SubTaskWeights

	if err := s.store.UpdateLongTermTask(r.Context(), task); err != nil {
		s.logger.Error("updating long-term task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	updated, err := s.store.GetLongTermTask(r.Context(), task.ID)
	if err != nil {
		s.logger.Error("reloading long-term task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, viewLongTerm(updated))
}

func (s *Server) handleDeleteLongTermTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.loadOwnedLongTerm(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteLongTermTask(r.Context(), task.ID); err != nil {
		s.logger.Error("deleting long-term task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}

	journals, err := s.store.ListJournalsInRange(r.Context(), userID, start, end)
	if err != nil {
		s.logger.Error("listing journals", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]map[string]string, len(journals))
	for i, j := range journals {
		out[i] = map[string]string{"date": j.Date, "content": j.Content}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	date := r.PathValue("date")

	journal, err := s.store.GetJournal(r.Context(), userID, date)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}
	if err != nil {
		s.logger.Error("loading journal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"date": journal.Date, "content": journal.Content})
}

func (s *Server) handlePutJournal(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	date := r.PathValue("date")
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	journal := &store.Journal{Date: date, UserID: userID, Content: req.Content}
	if err := s.store.UpsertJournal(r.Context(), journal); err != nil {
		s.logger.Error("saving journal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"date": date, "content": req.Content})
}

func (s *Server) handleGetMemo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	memo, err := s.store.GetMemo(r.Context(), userID)
	if err != nil {
		s.logger.Error("loading memo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": memo.Content})
}

func (s *Server) handlePutMemo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetMemo(r.Context(), &store.Memo{UserID: userID, Content: req.Content}); err != nil {
		s.logger.Error("saving memo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": req.Content})
}
