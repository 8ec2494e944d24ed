package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/certchain/certchain/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeCertMint anchors a freshly issued certificate on chain.
	TaskTypeCertMint = "cert:mint"
	// TaskTypeCertTransfer moves an anchored token to the claiming candidate.
	TaskTypeCertTransfer = "cert:transfer"
	// TaskTypeClaimSweep purges claim tokens that lapsed unclaimed.
	TaskTypeClaimSweep = "cert:claim_sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CertMintPayload identifies the certificate waiting for its chain anchor.
type CertMintPayload struct {
	CertificateID string `json:"certificate_id"`
}

// CertTransferPayload identifies a claimed certificate and its new holder.
type CertTransferPayload struct {
	CertificateID string `json:"certificate_id"`
	HolderID      string `json:"holder_id"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewCertMintTask constructs a mint task.
func NewCertMintTask(payload CertMintPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCertMint, data), nil
}

// NewCertTransferTask constructs a transfer task.
func NewCertTransferTask(payload CertTransferPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCertTransfer, data), nil
}

// NewClaimSweepTask constructs the cron sweep task.
func NewClaimSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeClaimSweep, nil)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// CertFinalizer completes certificate lifecycle transitions that need the
// chain gateway. The certs service implements it.
type CertFinalizer interface {
	FinalizeMint(ctx context.Context, certificateID string) error
	FinalizeTransfer(ctx context.Context, certificateID, holderID string) error
}

// ClaimSweeper purges lapsed claim tokens.
type ClaimSweeper interface {
	SweepExpiredClaims(ctx context.Context) error
}

// NewSendEmailHandler processes TaskTypeSendEmail tasks.
func NewSendEmailHandler(mailer Mailer, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			metrics.RecordJob(TaskTypeSendEmail, "invalid")
			return asynq.SkipRetry
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			metrics.RecordJob(TaskTypeSendEmail, "error")
			logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		metrics.RecordJob(TaskTypeSendEmail, "ok")
		return nil
	}
}

// NewCertMintHandler processes TaskTypeCertMint tasks.
func NewCertMintHandler(finalizer CertFinalizer, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CertMintPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			metrics.RecordJob(TaskTypeCertMint, "invalid")
			return asynq.SkipRetry
		}
		if err := finalizer.FinalizeMint(ctx, payload.CertificateID); err != nil {
			metrics.RecordJob(TaskTypeCertMint, "error")
			logger.Error("mint certificate", slog.String("certificate", payload.CertificateID), slog.Any("error", err))
			return err
		}
		metrics.RecordJob(TaskTypeCertMint, "ok")
		return nil
	}
}

// NewCertTransferHandler processes TaskTypeCertTransfer tasks.
func NewCertTransferHandler(finalizer CertFinalizer, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CertTransferPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			metrics.RecordJob(TaskTypeCertTransfer, "invalid")
			return asynq.SkipRetry
		}
		if err := finalizer.FinalizeTransfer(ctx, payload.CertificateID, payload.HolderID); err != nil {
			metrics.RecordJob(TaskTypeCertTransfer, "error")
			logger.Error("transfer certificate", slog.String("certificate", payload.CertificateID), slog.Any("error", err))
			return err
		}
		metrics.RecordJob(TaskTypeCertTransfer, "ok")
		return nil
	}
}

// NewClaimSweepHandler processes TaskTypeClaimSweep tasks.
func NewClaimSweepHandler(sweeper ClaimSweeper, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := sweeper.SweepExpiredClaims(ctx); err != nil {
			metrics.RecordJob(TaskTypeClaimSweep, "error")
			logger.Error("claim sweep", slog.Any("error", err))
			return err
		}
		metrics.RecordJob(TaskTypeClaimSweep, "ok")
		return nil
	}
}
