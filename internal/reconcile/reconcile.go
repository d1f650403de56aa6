// Package reconcile joins customer payments to the bank payouts they were
// settled into, producing exportable matched records net of processor fees.
package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/treasuryops/payout-reconciler/internal/descparse"
	"github.com/treasuryops/payout-reconciler/internal/domain"
	"github.com/treasuryops/payout-reconciler/internal/export"
	"github.com/treasuryops/payout-reconciler/internal/fees"
	"github.com/treasuryops/payout-reconciler/internal/gocardless"
	"github.com/treasuryops/payout-reconciler/internal/mail"
	"github.com/treasuryops/payout-reconciler/internal/paging"
	"github.com/treasuryops/payout-reconciler/internal/timewindow"
)

// PaymentsAPI is the slice of the upstream payments API the engine
// consumes. *gocardless.Client satisfies it; tests substitute fakes.
type PaymentsAPI interface {
	ListPayouts(req gocardless.PayoutListRequest) (paging.Page[domain.Payout], error)
	ListEvents(req gocardless.EventListRequest) (paging.Page[domain.Event], error)
	GetPayment(id string) (*domain.Payment, error)
}

// Record is one matched payment flattened with its payout, keyed by field
// name. Amount fields hold major units with two decimals, derived from the
// exact minor-unit values.
type Record map[string]string

// Projection is the ordered set of record fields exported per row, with
// their display headings. Both slices are always the same length.
type Projection struct {
	Columns  []string
	Headings []string
}

// DefaultProjection exports the payout date and reference plus the net
// amount and parsed description fields of each payment.
func DefaultProjection() Projection {
	return Projection{
		Columns: []string{
			"payout_date",
			"payout_reference",
			"payment_amount_net",
			descparse.ScheduleKey,
			descparse.EventKey,
		},
		Headings: []string{
			"Payout Date",
			"Payout Reference",
			"Amount",
			"Schedule",
			"Event",
		},
	}
}

// Row projects a record into ordered cells. A record lacking a requested
// key degrades to an empty cell, never an error.
func (p Projection) Row(rec Record) []string {
	cells := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		cells[i] = rec[col]
	}
	return cells
}

// Options configure one reconciliation run. API and Sink are required;
// everything else has a default.
type Options struct {
	API  PaymentsAPI
	Sink export.Sink

	// Window limits how far back payouts are fetched: week, month, year,
	// calyear, finyear or all. Defaults to month.
	Window string

	// OutputPath is where Export writes the artifact. Defaults to
	// "export.xlsx".
	OutputPath string

	// Columns and Headings override the exported projection and must be the
	// same length. Headings fall back to Columns when only Columns is set.
	Columns  []string
	Headings []string

	// Parser replaces the default description parser.
	Parser descparse.Func

	// Schedule selects the fee formula. Defaults to fees.Default().
	Schedule fees.Schedule

	// Mailer, with the addresses below, lets Send deliver the artifact.
	Mailer mail.Driver
	From   string
	To     []string
	CC     []string
	BCC    []string

	// PayerMetadataKey is the payment metadata key surfaced as payer_name.
	// Defaults to "Member".
	PayerMetadataKey string

	Logger *logrus.Logger

	// Now overrides the reference instant for window resolution, in tests.
	Now func() time.Time
}

// Reconciler drives one reconciliation run. It is single-threaded and owns
// its payout index and matched records exclusively; nothing is shared
// between runs.
type Reconciler struct {
	api        PaymentsAPI
	sink       export.Sink
	window     string
	since      time.Time
	projection Projection
	parser     descparse.Func
	schedule   fees.Schedule
	payerKey   string
	outputPath string

	mailer mail.Driver
	from   string
	to     []string
	cc     []string
	bcc    []string

	log   *logrus.Entry
	runID uuid.UUID

	index    map[string]domain.PayoutMeta
	order    []string
	matched  []Record
	exported string
}

// New validates the options and prepares a run. All configuration errors
// surface here, before any network call; the heading row is appended to
// the sink immediately.
func New(opts Options) (*Reconciler, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("%w: payments API missing - check parameters", domain.ErrInvalidParameter)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: export sink missing - check parameters", domain.ErrInvalidParameter)
	}

	window := opts.Window
	if window == "" {
		window = timewindow.Month
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	since, err := timewindow.Resolve(window, now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
	}

	projection := DefaultProjection()
	if len(opts.Columns) > 0 {
		headings := opts.Headings
		if headings == nil {
			headings = opts.Columns
		}
		if len(headings) != len(opts.Columns) {
			return nil, fmt.Errorf("%w: %d columns but %d headings",
				domain.ErrInvalidParameter, len(opts.Columns), len(headings))
		}
		projection = Projection{Columns: opts.Columns, Headings: headings}
	} else if len(opts.Headings) > 0 {
		return nil, fmt.Errorf("%w: headings given without columns", domain.ErrInvalidParameter)
	}

	parser := opts.Parser
	if parser == nil {
		parser = descparse.Parse
	}
	schedule := opts.Schedule
	if schedule == nil {
		schedule = fees.Default()
	}
	payerKey := opts.PayerMetadataKey
	if payerKey == "" {
		payerKey = "Member"
	}
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = "export.xlsx"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	runID := uuid.New()
	r := &Reconciler{
		api:        opts.API,
		sink:       opts.Sink,
		window:     window,
		since:      since,
		projection: projection,
		parser:     parser,
		schedule:   schedule,
		payerKey:   payerKey,
		outputPath: outputPath,
		mailer:     opts.Mailer,
		from:       opts.From,
		to:         opts.To,
		cc:         opts.CC,
		bcc:        opts.BCC,
		log:        logger.WithField("run_id", runID),
		runID:      runID,
		index:      make(map[string]domain.PayoutMeta),
	}

	if err := r.sink.AppendRow(r.projection.Headings); err != nil {
		return nil, fmt.Errorf("append heading row: %w", err)
	}
	return r, nil
}

// RunID identifies this run in logs.
func (r *Reconciler) RunID() uuid.UUID {
	return r.runID
}

// Matched returns the records joined so far, in walk order.
func (r *Reconciler) Matched() []Record {
	return r.matched
}
