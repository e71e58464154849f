package services

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"moneytracker/internal/core"
)

type sagaState string

const (
	sagaStarted            sagaState = "started"
	sagaCreated            sagaState = "created"
	sagaAttachmentPending  sagaState = "attachment_pending"
	sagaAttachmentAttached sagaState = "attachment_attached"
	sagaRolledBack         sagaState = "rolled_back"
)

// compensation undoes one completed step.
type compensation struct {
	name string
	run  func(ctx context.Context) error
}

// createSaga persists a transaction and its attachment as ordered steps:
//
//	started -> created -> attachment_pending -> attachment_attached
//	                                         \-> rolled_back
//
// Every completed step pushes a compensation; a later failure runs them in
// reverse order.
type createSaga struct {
	svc    *LedgerService
	tx     core.Transaction
	upload *core.Upload

	state         sagaState
	compensations []compensation
}

func newCreateSaga(svc *LedgerService, tx core.Transaction, upload *core.Upload) *createSaga {
	return &createSaga{svc: svc, tx: tx, upload: upload, state: sagaStarted}
}

func (sg *createSaga) run(ctx context.Context) (core.Transaction, error) {
	s := sg.svc
	tx := sg.tx

	if err := s.repo.Insert(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	sg.advance(ctx, sagaCreated)
	sg.push("delete transaction", func(ctx context.Context) error {
		return s.repo.Delete(ctx, tx.OwnerID, tx.ID)
	})

	if sg.upload == nil {
		return tx, nil
	}

	sg.advance(ctx, sagaAttachmentPending)
	ref, err := s.store.Upload(ctx, sg.upload.Data, sg.upload.Filename, sg.upload.ContentType, tx.OwnerID, tx.ID)
	if err != nil {
		sg.rollback(ctx, err)
		return core.Transaction{}, storageError("upload", err)
	}
	sg.push("delete attachment", func(ctx context.Context) error {
		if err := s.store.Delete(ctx, ref); err != nil {
			s.scheduleCleanup(ctx, ref)
			return err
		}
		return nil
	})

	if err := s.repo.SetAttachment(ctx, tx.OwnerID, tx.ID, &ref, tx.UpdatedAt); err != nil {
		sg.rollback(ctx, err)
		return core.Transaction{}, err
	}
	tx.AttachmentRef = &ref
	sg.advance(ctx, sagaAttachmentAttached)
	return tx, nil
}

func (sg *createSaga) push(name string, fn func(ctx context.Context) error) {
	sg.compensations = append(sg.compensations, compensation{name: name, run: fn})
}

func (sg *createSaga) advance(ctx context.Context, next sagaState) {
	slog.DebugContext(ctx, "Create saga transition",
		"transaction_id", sg.tx.ID, "from", sg.state, "to", next)
	sg.state = next
}

// rollback runs the compensations newest first on a context the caller
// cannot cancel. Their errors are logged; the original cause is what the
// caller receives.
func (sg *createSaga) rollback(ctx context.Context, cause error) {
	cctx, cancel := sg.svc.compensationContext(ctx)
	defer cancel()

	var result *multierror.Error
	for i := len(sg.compensations) - 1; i >= 0; i-- {
		c := sg.compensations[i]
		if err := c.run(cctx); err != nil {
			result = multierror.Append(result, err)
			slog.ErrorContext(ctx, "Create saga compensation failed",
				"transaction_id", sg.tx.ID, "step", c.name, "error", err)
		}
	}
	sg.compensations = nil
	sg.advance(ctx, sagaRolledBack)

	slog.WarnContext(ctx, "Create saga rolled back",
		"transaction_id", sg.tx.ID, "cause", cause, "compensation_errors", result.ErrorOrNil())
}
