package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/queue"
	"github.com/loyaltyclub/backend/internal/referral"
)

// RegistrationPayload is a first /start of a user
type RegistrationPayload struct {
	ChatID string `json:"chat_id"`
	Token  string `json:"token,omitempty"`
}

// TransactionBonusPayload is a qualifying client transaction
type TransactionBonusPayload struct {
	ChatID        string `json:"chat_id"`
	EarnedPoints  int64  `json:"earned_points"`
	TransactionID string `json:"transaction_id"`
}

// PartnerCheckPayload is a check processed by a partner venue
type PartnerCheckPayload struct {
	PartnerChatID string          `json:"partner_chat_id"`
	CheckAmount   decimal.Decimal `json:"check_amount"`
	TransactionID string          `json:"transaction_id"`
}

// ReferralEngine is what the referral jobs drive
type ReferralEngine interface {
	RegisterUser(ctx context.Context, chatID, token string) (*referral.Registration, error)
	AwardTransactionBonuses(ctx context.Context, client string, earnedPoints int64, transactionID string) referral.FanOutResult
	AwardPartnerCommissions(ctx context.Context, partner string, checkAmount decimal.Decimal, transactionID string) referral.FanOutResult
}

// ReferralJobs runs registration and bonus fan-outs off the request path
type ReferralJobs struct {
	engine     ReferralEngine
	queue      queue.Enqueuer
	maxRetries int
	logger     *slog.Logger
}

// NewReferralJobs creates the referral job handlers
func NewReferralJobs(engine ReferralEngine, q queue.Enqueuer, logger *slog.Logger) *ReferralJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferralJobs{
		engine: engine,
		queue:  q,
		logger: logger.With("component", "referral_jobs"),
	}
}

// SetMaxRetries overrides the queue default retry budget for new jobs
func (j *ReferralJobs) SetMaxRetries(n int) {
	j.maxRetries = n
}

func (j *ReferralJobs) enqueue(ctx context.Context, queueName string, payload interface{}) (string, error) {
	var opts []queue.EnqueueOption
	if j.maxRetries > 0 {
		opts = append(opts, queue.WithMaxRetries(j.maxRetries))
	}
	return j.queue.Enqueue(ctx, queueName, payload, opts...)
}

// RegisterHandlers binds the referral queues to p
func (j *ReferralJobs) RegisterHandlers(p *queue.JobProcessor) {
	p.RegisterHandler(queue.QueueRegistration, j.ProcessRegistration)
	p.RegisterHandler(queue.QueueTransactionBonus, j.ProcessTransactionBonus)
	p.RegisterHandler(queue.QueuePartnerCheck, j.ProcessPartnerCheck)
}

// EnqueueRegistration queues a registration
func (j *ReferralJobs) EnqueueRegistration(ctx context.Context, payload RegistrationPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}
	return j.enqueue(ctx, queue.QueueRegistration, payload)
}

// EnqueueTransactionBonus queues a transaction bonus fan-out
func (j *ReferralJobs) EnqueueTransactionBonus(ctx context.Context, payload TransactionBonusPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}
	return j.enqueue(ctx, queue.QueueTransactionBonus, payload)
}

// EnqueuePartnerCheck queues a partner commission fan-out
func (j *ReferralJobs) EnqueuePartnerCheck(ctx context.Context, payload PartnerCheckPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}
	return j.enqueue(ctx, queue.QueuePartnerCheck, payload)
}

// ProcessRegistration registers the user and fans out registration bonuses.
// Store failures while the user or the tree is written are retried; the
// redelivery finishes the registration without paying a level twice. Level
// failures are logged.
func (j *ReferralJobs) ProcessRegistration(ctx context.Context, job *queue.Job) error {
	var payload RegistrationPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if err := payload.validate(); err != nil {
		return queue.Permanent(err)
	}

	reg, err := j.engine.RegisterUser(ctx, payload.ChatID, payload.Token)
	if err != nil {
		return retryable(err)
	}
	j.logLevelFailures(job, reg.Bonuses)
	return nil
}

// ProcessTransactionBonus fans out a transaction bonus. The purchase itself
// already succeeded, so per-level failures never fail the job.
func (j *ReferralJobs) ProcessTransactionBonus(ctx context.Context, job *queue.Job) error {
	var payload TransactionBonusPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if err := payload.validate(); err != nil {
		return queue.Permanent(err)
	}

	res := j.engine.AwardTransactionBonuses(ctx, payload.ChatID, payload.EarnedPoints, payload.TransactionID)
	if err := res.Aborted(); err != nil {
		return retryable(err)
	}
	j.logLevelFailures(job, res)
	return nil
}

// ProcessPartnerCheck records partner commissions for a check
func (j *ReferralJobs) ProcessPartnerCheck(ctx context.Context, job *queue.Job) error {
	var payload PartnerCheckPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if err := payload.validate(); err != nil {
		return queue.Permanent(err)
	}

	res := j.engine.AwardPartnerCommissions(ctx, payload.PartnerChatID, payload.CheckAmount, payload.TransactionID)
	if err := res.Aborted(); err != nil {
		return retryable(err)
	}
	j.logLevelFailures(job, res)
	return nil
}

func (j *ReferralJobs) logLevelFailures(job *queue.Job, res referral.FanOutResult) {
	for _, f := range res.Failed {
		j.logger.Warn("fan-out level failed",
			"job_id", job.ID,
			"queue", job.Queue,
			"referrer", f.ReferrerID,
			"level", f.Level,
			"stage", f.Stage,
			"error", f.Err,
		)
	}
}

// retryable keeps store outages retryable and marks everything else permanent
func retryable(err error) error {
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		return err
	}
	return queue.Permanent(err)
}

func (p RegistrationPayload) validate() error {
	if strings.TrimSpace(p.ChatID) == "" {
		return apperrors.Invalid("chat_id is required")
	}
	return nil
}

func (p TransactionBonusPayload) validate() error {
	if strings.TrimSpace(p.ChatID) == "" {
		return apperrors.Invalid("chat_id is required")
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		return apperrors.Invalid("transaction_id is required")
	}
	if p.EarnedPoints < 0 {
		return apperrors.Invalid("earned_points must not be negative")
	}
	return nil
}

func (p PartnerCheckPayload) validate() error {
	if strings.TrimSpace(p.PartnerChatID) == "" {
		return apperrors.Invalid("partner_chat_id is required")
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		return apperrors.Invalid("transaction_id is required")
	}
	if !p.CheckAmount.IsPositive() {
		return apperrors.Invalid("check_amount must be positive")
	}
	return nil
}
