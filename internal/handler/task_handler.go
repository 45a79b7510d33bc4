package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// ListTasks は全タスクを作成日時昇順で返す。
	ListTasks(ctx context.Context) ([]*model.Task, error)
	// CreateTask は新規タスクを作成する。
	CreateTask(ctx context.Context, title, description string, completed bool) (*model.Task, error)
	// UpdateTask はタスクを部分更新する。nilのフィールドは変更しない。
	UpdateTask(ctx context.Context, id string, title, description *string, completed *bool) (*model.Task, error)
	// DeleteTask はタスクを削除する。
	DeleteTask(ctx context.Context, id string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// updateTaskRequest はタスク更新リクエストのボディ。
// ポインタで部分更新を表現し、省略されたフィールドは変更しない。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListTasks はタスク一覧を取得する。
// GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// CreateTask は新規タスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	task, err := h.service.CreateTask(r.Context(), req.Title, req.Description, req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(task))
}

// UpdateTask はタスクを部分更新する。
// PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	task, err := h.service.UpdateTask(r.Context(), taskID, req.Title, req.Description, req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	if err := h.service.DeleteTask(r.Context(), taskID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Message: "タスクを削除しました。"})
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(task *model.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		CreatedAt:   task.CreatedAt,
	}
}
