package handler_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskbot/api/handler"
	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/internal/infrastructure/monitor"
	"github.com/fastygo/taskbot/internal/middleware"
	"github.com/fastygo/taskbot/internal/router"
	"github.com/fastygo/taskbot/internal/services/reminder"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	"github.com/fastygo/taskbot/repository/memory"
	"github.com/fastygo/taskbot/usecase/assistant"
	"github.com/fastygo/taskbot/usecase/auth"
	"github.com/fastygo/taskbot/usecase/chat"
	"github.com/fastygo/taskbot/usecase/gamification"
	"github.com/fastygo/taskbot/usecase/profile"
	"github.com/fastygo/taskbot/usecase/ratelimit"
	"github.com/fastygo/taskbot/usecase/task"
)

const (
	admin         = int64(1)
	user          = int64(42)
	webhookSecret = "hook-secret"
)

type captureMessenger struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func (m *captureMessenger) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMessenger) last() domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return domain.OutboundMessage{}
	}
	return m.sent[len(m.sent)-1]
}

type stubGenerator struct{ out string }

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.out, nil }

type stubJobs struct{}

func (stubJobs) Search(context.Context, domain.JobQuery) ([]domain.JobPosting, error) {
	return nil, nil
}

type server struct {
	handler   fasthttp.RequestHandler
	auth      *auth.UseCase
	messenger *captureMessenger
}

func newServer(t *testing.T) *server {
	t.Helper()
	messenger := &captureMessenger{}
	adapter := httpcontext.NewAdapter(time.Second)

	profiles := profile.New(memory.NewProfileRepository(), gamification.NewEngine(time.Now), admin, nil)
	scheduler := reminder.NewMemory(reminder.Config{}, nil)
	tasks := task.New(memory.NewTaskRepository(), scheduler, profiles, messenger, nil)
	scheduler.SetHandler(tasks.OnReminderFire)

	limiter := ratelimit.New(memory.NewCounterRepository(), ratelimit.Config{DailyLimit: 5}, nil)
	generator := stubGenerator{out: "```json\n{\"text\":\"Call mom\",\"priority\":\"HIGH\"}\n```"}
	assistants := assistant.New(generator, stubJobs{}, limiter, nil)

	authUC := auth.New(memory.NewLaunchTokenRepository(), auth.Config{
		BotToken:            "123:abc",
		TokenSecret:         "secret",
		AllowUserIDFallback: true,
	}, nil)
	chatUC := chat.New(tasks, profiles, assistants, authUC, messenger, chat.Config{}, nil)

	mon := monitor.New(nil, nil, time.Minute, nil)
	mon.Refresh()

	r := router.New(router.Handlers{
		Auth:      handler.NewAuthHandler(authUC, adapter, nil),
		Profile:   handler.NewProfileHandler(profiles, adapter, nil),
		Task:      handler.NewTaskHandler(tasks, adapter, nil),
		Assistant: handler.NewAssistantHandler(assistants, adapter, nil),
		Webhook:   handler.NewWebhookHandler(chatUC, webhookSecret, adapter, nil),
		Health:    handler.NewHealthHandler(mon, adapter, nil),
	}, middleware.TelegramAuth(authUC, nil))

	return &server{handler: r.Handler, auth: authUC, messenger: messenger}
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, method, uri, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	s.handler(&ctx)

	var env envelope
	if raw := ctx.Response.Body(); len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return ctx.Response.StatusCode(), env
}

func as(userID int64) string {
	if userID == admin {
		return "?userId=1"
	}
	return "?userId=42"
}

func TestTasks_CreateListCompleteDelete(t *testing.T) {
	s := newServer(t)

	remindAt := time.Now().Add(2 * time.Hour).Unix()
	status, env := s.do(t, "POST", "/api/v1/tasks"+as(user),
		`{"text":"Write report #work","priority":"high","remindAt":`+jsonInt(remindAt)+`,"tags":["urgent"]}`, nil)
	require.Equal(t, fasthttp.StatusCreated, status)

	var created struct {
		TaskID string `json:"taskId"`
		Task   struct {
			Priority string   `json:"priority"`
			RemindAt int64    `json:"remindAt"`
			Tags     []string `json:"tags"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.TaskID)
	assert.Equal(t, "high", created.Task.Priority)
	assert.Equal(t, remindAt, created.Task.RemindAt)
	assert.Equal(t, []string{"urgent", "work"}, created.Task.Tags)

	status, env = s.do(t, "GET", "/api/v1/tasks"+as(user), "", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var list struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, created.TaskID, list.Tasks[0].ID)

	status, env = s.do(t, "PUT", "/api/v1/tasks/"+created.TaskID+"/complete"+as(user), "", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var completion struct {
		Gamification struct {
			XPEarned int `json:"xpEarned"`
		} `json:"gamification"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &completion))
	assert.Positive(t, completion.Gamification.XPEarned)

	status, env = s.do(t, "PUT", "/api/v1/tasks/"+created.TaskID+"/complete"+as(user), "", nil)
	assert.Equal(t, fasthttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)

	status, _ = s.do(t, "DELETE", "/api/v1/tasks/"+created.TaskID+as(user), "", nil)
	assert.Equal(t, fasthttp.StatusOK, status)

	status, env = s.do(t, "DELETE", "/api/v1/tasks/"+created.TaskID+as(user), "", nil)
	assert.Equal(t, fasthttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestTasks_Validation(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "POST", "/api/v1/tasks"+as(user), `{"text":"   "}`, nil)
	assert.Equal(t, fasthttp.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)

	status, _ = s.do(t, "POST", "/api/v1/tasks"+as(user), `not json`, nil)
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, _ = s.do(t, "PUT", "/api/v1/tasks/missing/complete"+as(user), "", nil)
	assert.Equal(t, fasthttp.StatusNotFound, status)
}

func TestTasks_Snooze(t *testing.T) {
	s := newServer(t)

	_, env := s.do(t, "POST", "/api/v1/tasks"+as(user), `{"text":"Stretch"}`, nil)
	var created struct {
		TaskID string `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	before := time.Now()
	status, env := s.do(t, "PUT", "/api/v1/tasks/"+created.TaskID+"/snooze"+as(user), `{"delay":"3h"}`, nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var snoozed struct {
		RemindAt int64 `json:"remindAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snoozed))
	assert.GreaterOrEqual(t, snoozed.RemindAt, before.Add(3*time.Hour).Unix()-1)
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "GET", "/api/v1/tasks", "", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestProfile_ViewAndMotivation(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "GET", "/api/v1/profile"+as(user), "", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var view struct {
		UserID            int64 `json:"userId"`
		Level             int   `json:"level"`
		XPForNextLevel    int   `json:"xpForNextLevel"`
		TotalAchievements int   `json:"totalAchievements"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, user, view.UserID)
	assert.Equal(t, 1, view.Level)
	assert.Equal(t, 100, view.XPForNextLevel)
	assert.Equal(t, len(domain.Achievements), view.TotalAchievements)

	status, env = s.do(t, "PUT", "/api/v1/profile/motivation"+as(user), `{"enabled":true}`, nil)
	require.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(env.Data), `"motivationEnabled":true`)
}

func TestAdminStats_OnlyAdmin(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "GET", "/api/v1/admin/stats"+as(user), "", nil)
	assert.Equal(t, fasthttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, env = s.do(t, "GET", "/api/v1/admin/stats"+as(admin), "", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(env.Data), `"totalUsers"`)
}

func TestAssistant_ParseTask(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "POST", "/api/v1/ai"+as(user), `{"action":"parse_task","data":{"text":"call mom asap"}}`, nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var suggestion domain.TaskSuggestion
	require.NoError(t, json.Unmarshal(env.Data, &suggestion))
	assert.Equal(t, "Call mom", suggestion.Text)
	assert.Equal(t, domain.PriorityHigh, suggestion.Priority)

	status, _ = s.do(t, "POST", "/api/v1/ai"+as(user), `{"action":"suggest_tasks","text":"x"}`, nil)
	assert.Equal(t, fasthttp.StatusBadRequest, status)
}

func TestSession_ExchangeThenBearer(t *testing.T) {
	s := newServer(t)

	launch, err := s.auth.IssueLaunchToken(context.Background(), user)
	require.NoError(t, err)

	status, env := s.do(t, "POST", "/api/v1/auth/session", `{"token":"`+launch+`"}`, nil)
	require.Equal(t, fasthttp.StatusCreated, status)
	var session auth.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, user, session.UserID)

	status, _ = s.do(t, "GET", "/api/v1/profile", "", map[string]string{"Authorization": "Bearer " + session.Token})
	assert.Equal(t, fasthttp.StatusOK, status)

	status, _ = s.do(t, "POST", "/api/v1/auth/session", `{"token":"`+launch+`"}`, nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestWebhook(t *testing.T) {
	s := newServer(t)
	update := `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"},"date":1,"text":"/help"}}`

	status, _ := s.do(t, "POST", "/telegram/webhook", update, map[string]string{handler.HeaderWebhookSecret: "wrong"})
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
	assert.Empty(t, s.messenger.last().Text)

	status, _ = s.do(t, "POST", "/telegram/webhook", update, map[string]string{handler.HeaderWebhookSecret: webhookSecret})
	assert.Equal(t, fasthttp.StatusOK, status)
	reply := s.messenger.last()
	assert.Equal(t, int64(42), reply.ChatID)
	assert.True(t, strings.Contains(reply.Text, "/tasks"), reply.Text)
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "success", env.Status)
}

func jsonInt(v int64) string {
	out, _ := json.Marshal(v)
	return string(out)
}
