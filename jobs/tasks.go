package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/recruitdesk/recruitdesk/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSendVerification is the task type for e-mail verification messages.
	TaskSendVerification = "users:send_verification"
)

// VerificationPayload identifies the account whose address must be verified.
type VerificationPayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// NewSendVerificationTask constructs an Asynq task.
func NewSendVerificationTask(payload VerificationPayload) (*asynq.Task, error) {
	if payload.UserID <= 0 || payload.Email == "" {
		return nil, errors.New("jobs: verification task requires user id and email")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendVerification, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Mailer delivers verification messages.
type Mailer interface {
	SendVerification(ctx context.Context, payload VerificationPayload) error
}

// LogMailer writes verification messages to the log instead of an SMTP relay.
type LogMailer struct {
	Logger *slog.Logger
}

// SendVerification implements Mailer.
func (m LogMailer) SendVerification(_ context.Context, payload VerificationPayload) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification email sent",
		slog.Int64("user_id", payload.UserID),
		slog.String("email", payload.Email),
		slog.String("name", payload.Name))
	return nil
}

// VerificationJob handles TaskSendVerification tasks.
type VerificationJob struct {
	mailer  Mailer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewVerificationJob wires a VerificationJob.
func NewVerificationJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *VerificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationJob{mailer: mailer, logger: logger, metrics: metrics}
}

// Handle processes a verification task. Malformed payloads are not retried.
func (j *VerificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskSendVerification)
	var payload VerificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Warn("decode verification payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	if err := j.mailer.SendVerification(ctx, payload); err != nil {
		j.logger.Error("send verification", slog.Int64("user_id", payload.UserID), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
