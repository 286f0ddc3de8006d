// Package chat turns incoming chat messages into task, profile and assistant
// operations and renders the replies.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
	"github.com/fastygo/taskbot/usecase/ratelimit"
	"github.com/fastygo/taskbot/usecase/task"
)

type TaskService interface {
	Create(ctx context.Context, ownerID int64, text string, priority domain.Priority) (*domain.Task, error)
	Complete(ctx context.Context, ownerID int64, taskID string) (*task.Completion, error)
	Delete(ctx context.Context, ownerID int64, taskID string) (*task.Deletion, error)
	Snooze(ctx context.Context, ownerID int64, taskID, delay string) (*domain.Task, error)
	List(ctx context.Context, ownerID int64, filter task.ListFilter) ([]domain.Task, error)
	Tags(ctx context.Context, ownerID int64) ([]string, error)
	Stats(ctx context.Context, ownerID int64) (*task.Stats, error)
}

type ProfileService interface {
	Get(ctx context.Context, userID int64) (*domain.UserProfile, error)
	SetMotivation(ctx context.Context, userID int64, enabled bool) (*domain.UserProfile, error)
}

type Assistant interface {
	Analyze(ctx context.Context, userID int64, text string) (string, ratelimit.Decision, error)
	FindJobs(ctx context.Context, userID int64, query string) ([]domain.JobPosting, error)
}

type TokenIssuer interface {
	IssueLaunchToken(ctx context.Context, userID int64) (string, error)
}

type Config struct {
	// MiniAppURL is opened by the /app button; empty disables the command.
	MiniAppURL string
}

// Incoming is a chat message from a user.
type Incoming struct {
	UserID int64
	ChatID int64
	Text   string
}

type UseCase struct {
	tasks      TaskService
	profiles   ProfileService
	assistant  Assistant
	tokens     TokenIssuer
	messenger  usecase.Messenger
	cfg        Config
	logger     *zap.Logger
	dispatcher *Dispatcher
}

func New(
	tasks TaskService,
	profiles ProfileService,
	assistant Assistant,
	tokens TokenIssuer,
	messenger usecase.Messenger,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		tasks:      tasks,
		profiles:   profiles,
		assistant:  assistant,
		tokens:     tokens,
		messenger:  messenger,
		cfg:        cfg,
		logger:     logger,
		dispatcher: NewDispatcher(),
	}
	uc.register()
	return uc
}

func (uc *UseCase) register() {
	d := uc.dispatcher
	d.Register("start", uc.help)
	d.Register("help", uc.help)
	d.Register("app", uc.app)
	d.Register("tasks", uc.list)
	d.Register("done", uc.complete)
	d.Register("urgent", uc.urgent)
	d.Register("snooze", uc.snooze)
	d.Register("delete", uc.remove)
	d.Register("tags", uc.tags)
	d.Register("stats", uc.stats)
	d.Register("profile", uc.profile)
	d.Register("ai", uc.analyze)
	d.Register("jobs", uc.jobs)
	d.Register("motivation", uc.motivation)
	d.HandleText(uc.create)
	d.HandleUnknown(func(context.Context, Command) (Reply, error) {
		return Reply{Text: "Unknown command. See /help"}, nil
	})
}

// Handle processes one incoming message and sends the reply.
func (uc *UseCase) Handle(ctx context.Context, in Incoming) error {
	if in.UserID == 0 || strings.TrimSpace(in.Text) == "" {
		return nil
	}
	if in.ChatID == 0 {
		in.ChatID = in.UserID
	}

	reply := uc.Respond(ctx, in)
	if reply.Text == "" {
		return nil
	}
	return uc.messenger.Send(ctx, domain.OutboundMessage{
		ChatID:  in.ChatID,
		Text:    reply.Text,
		Kind:    domain.MessageReply,
		Buttons: reply.Buttons,
	})
}

// Respond computes the reply to a message. Errors are rendered into the reply text.
func (uc *UseCase) Respond(ctx context.Context, in Incoming) Reply {
	cmd := Parse(in.Text)
	cmd.UserID, cmd.ChatID = in.UserID, in.ChatID

	reply, err := uc.dispatcher.Execute(ctx, cmd)
	if err != nil {
		return Reply{Text: uc.errorText(cmd, err)}
	}
	return reply
}

func (uc *UseCase) errorText(cmd Command, err error) string {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		dErr = &domain.Error{Code: domain.ErrCodeInternal}
	}
	switch dErr.Code {
	case domain.ErrCodeInvalid:
		return "⚠️ " + esc(dErr.Message)
	case domain.ErrCodeNotFound:
		return "❌ Task not found."
	case domain.ErrCodeConflict:
		return "ℹ️ " + esc(dErr.Message)
	case domain.ErrCodeRateLimited:
		return "⏳ Daily AI limit reached. Try again tomorrow."
	default:
		uc.logger.Error("chat command failed",
			zap.String("command", cmd.Name),
			zap.Int64("user_id", cmd.UserID),
			zap.Error(err))
		return "Something went wrong. Please try again later."
	}
}

func (uc *UseCase) help(context.Context, Command) (Reply, error) {
	return Reply{Text: helpText()}, nil
}

func (uc *UseCase) create(ctx context.Context, cmd Command) (Reply, error) {
	return uc.createWith(ctx, cmd, domain.PriorityMedium)
}

func (uc *UseCase) urgent(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Args == "" {
		return Reply{Text: "Usage: /urgent &lt;task text with time&gt;"}, nil
	}
	return uc.createWith(ctx, cmd, domain.PriorityHigh)
}

func (uc *UseCase) createWith(ctx context.Context, cmd Command, priority domain.Priority) (Reply, error) {
	created, err := uc.tasks.Create(ctx, cmd.UserID, cmd.Args, priority)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatCreated(created)}, nil
}

func (uc *UseCase) list(ctx context.Context, cmd Command) (Reply, error) {
	tag := strings.TrimPrefix(strings.TrimSpace(cmd.Args), "#")
	tasks, err := uc.tasks.List(ctx, cmd.UserID, task.ListFilter{Tag: tag})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatTaskList(tasks, tag)}, nil
}

func (uc *UseCase) complete(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Args == "" {
		return Reply{Text: "Usage: /done &lt;id&gt;"}, nil
	}
	result, err := uc.tasks.Complete(ctx, cmd.UserID, firstField(cmd.Args))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatCompletion(result)}, nil
}

func (uc *UseCase) remove(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Args == "" {
		return Reply{Text: "Usage: /delete &lt;id&gt;"}, nil
	}
	result, err := uc.tasks.Delete(ctx, cmd.UserID, firstField(cmd.Args))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatDeletion(result)}, nil
}

func (uc *UseCase) snooze(ctx context.Context, cmd Command) (Reply, error) {
	fields := strings.Fields(cmd.Args)
	if len(fields) < 2 {
		return Reply{Text: "Usage: /snooze &lt;id&gt; &lt;30m|2h|tomorrow|week&gt;"}, nil
	}
	snoozed, err := uc.tasks.Snooze(ctx, cmd.UserID, fields[0], fields[1])
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatSnoozed(snoozed)}, nil
}

func (uc *UseCase) tags(ctx context.Context, cmd Command) (Reply, error) {
	tags, err := uc.tasks.Tags(ctx, cmd.UserID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatTags(tags)}, nil
}

func (uc *UseCase) stats(ctx context.Context, cmd Command) (Reply, error) {
	stats, err := uc.tasks.Stats(ctx, cmd.UserID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatStats(stats)}, nil
}

func (uc *UseCase) profile(ctx context.Context, cmd Command) (Reply, error) {
	p, err := uc.profiles.Get(ctx, cmd.UserID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatProfile(p)}, nil
}

func (uc *UseCase) analyze(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Args == "" {
		return Reply{Text: "Usage: /ai &lt;task description&gt;"}, nil
	}
	answer, decision, err := uc.assistant.Analyze(ctx, cmd.UserID, cmd.Args)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("🤖 <b>AI analysis</b>\n\n%s\n\n<i>%d AI requests left today</i>", esc(answer), decision.Remaining)}, nil
}

func (uc *UseCase) jobs(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Args == "" {
		return Reply{Text: "Usage: /jobs &lt;role&gt; [in &lt;location&gt;]"}, nil
	}
	jobs, err := uc.assistant.FindJobs(ctx, cmd.UserID, cmd.Args)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatJobs(jobs)}, nil
}

func (uc *UseCase) motivation(ctx context.Context, cmd Command) (Reply, error) {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(cmd.Args)) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return Reply{Text: "Usage: /motivation on|off"}, nil
	}
	if _, err := uc.profiles.SetMotivation(ctx, cmd.UserID, enabled); err != nil {
		return Reply{}, err
	}
	if enabled {
		return Reply{Text: "💪 Daily motivation enabled."}, nil
	}
	return Reply{Text: "Daily motivation disabled."}, nil
}

func (uc *UseCase) app(ctx context.Context, cmd Command) (Reply, error) {
	if uc.cfg.MiniAppURL == "" {
		return Reply{Text: "The Mini App is not configured."}, nil
	}
	token, err := uc.tokens.IssueLaunchToken(ctx, cmd.UserID)
	if err != nil {
		return Reply{}, err
	}
	link, err := launchURL(uc.cfg.MiniAppURL, token)
	if err != nil {
		return Reply{}, domain.WrapError(domain.ErrCodeInternal, "build mini app url", err)
	}
	return Reply{
		Text:    "📱 Open your tasks, profile and achievements in the app:",
		Buttons: [][]domain.Button{{{Text: "📱 Open App", WebAppURL: link}}},
	}, nil
}

func launchURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func firstField(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
