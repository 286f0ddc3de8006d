package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/api/transport"
	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	taskUC "github.com/fastygo/taskbot/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Param status query string false "pending, done or all"
// @Param tag query string false "tag without #"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	filter := taskUC.ListFilter{Tag: string(ctx.QueryArgs().Peek("tag"))}
	switch status := string(ctx.QueryArgs().Peek("status")); status {
	case "", "all":
		filter.All = true
	default:
		filter.Status = domain.TaskStatus(status)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.List(stdCtx, userID, filter)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.TaskListResponse{Tasks: transport.NewTaskViews(tasks)})
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	var remindAt *time.Time
	if req.RemindAt > 0 {
		at := time.Unix(req.RemindAt, 0).UTC()
		remindAt = &at
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.CreateAt(stdCtx, userID, req.Text, domain.ParsePriority(req.Priority), remindAt, req.Tags)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.TaskCreatedResponse{
		TaskID: task.ID,
		Task:   transport.NewTaskView(task),
	})
}

// @Summary Complete task
// @Tags tasks
// @Router /api/v1/tasks/{id}/complete [put]
func (h *TaskHandler) CompleteTask(ctx *fasthttp.RequestCtx) {
	userID, taskID, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	completion, err := h.uc.Complete(stdCtx, userID, taskID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"task":         transport.NewTaskView(completion.Task),
		"gamification": completion.Award,
	})
}

// @Summary Snooze task reminder
// @Tags tasks
// @Router /api/v1/tasks/{id}/snooze [put]
func (h *TaskHandler) SnoozeTask(ctx *fasthttp.RequestCtx) {
	userID, taskID, ok := h.target(ctx)
	if !ok {
		return
	}

	var req transport.SnoozeRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.respondInvalid(ctx, "invalid payload")
			return
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Snooze(stdCtx, userID, taskID, req.Delay)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskView(task))
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID, taskID, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	deletion, err := h.uc.Delete(stdCtx, userID, taskID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"taskId":  deletion.Task.ID,
		"penalty": deletion.Penalty,
	})
}

func (h *TaskHandler) target(ctx *fasthttp.RequestCtx) (int64, string, bool) {
	userID, ok := h.userID(ctx)
	if !ok {
		return 0, "", false
	}
	taskID, _ := ctx.UserValue("id").(string)
	if taskID == "" {
		h.respondInvalid(ctx, "missing task id")
		return 0, "", false
	}
	return userID, taskID, true
}
