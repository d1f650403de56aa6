package reconcile

import (
	"fmt"
	"os"

	"github.com/treasuryops/payout-reconciler/internal/domain"
	"github.com/treasuryops/payout-reconciler/internal/mail"
	"github.com/treasuryops/payout-reconciler/internal/timewindow"
)

// Export finalizes the sink to the configured output path and records the
// location. Calling it again without another run is a harmless re-save.
func (r *Reconciler) Export() error {
	if err := r.sink.Finalize(r.outputPath); err != nil {
		return fmt.Errorf("export %s: %w", r.outputPath, err)
	}
	r.exported = r.outputPath
	r.log.WithField("file", r.outputPath).Info("export saved")
	return nil
}

// Send mails the exported artifact through the configured transport,
// exporting first if needed. After a successful send the artifact is
// removed unless keepExported is set; on failure it stays on disk so the
// operator can resend or attach it manually.
func (r *Reconciler) Send(keepExported bool) error {
	if r.mailer == nil {
		return fmt.Errorf("%w: mail driver not configured - check mail parameters", domain.ErrInvalidParameter)
	}
	if r.exported == "" {
		if err := r.Export(); err != nil {
			return err
		}
	}

	msg := mail.NewMessage().
		Subject("GoCardless Payment Reconciliation").
		From(r.from).
		To(r.to...).
		CC(r.cc...).
		BCC(r.bcc...).
		Body(fmt.Sprintf("GoCardless payments for %s are attached.", timewindow.Duration(r.window))).
		Attach(r.exported)

	if err := r.mailer.Send(msg); err != nil {
		return err
	}
	r.log.WithField("file", r.exported).Info("reconciliation mailed")

	if !keepExported {
		if err := os.Remove(r.exported); err != nil {
			return fmt.Errorf("remove exported file: %w", err)
		}
		r.exported = ""
	}
	return nil
}
