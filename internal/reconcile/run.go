package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/treasuryops/payout-reconciler/internal/domain"
	"github.com/treasuryops/payout-reconciler/internal/fees"
	"github.com/treasuryops/payout-reconciler/internal/gocardless"
	"github.com/treasuryops/payout-reconciler/internal/paging"
	"github.com/treasuryops/payout-reconciler/internal/timewindow"
)

// Reconcile builds the payout index, then walks every payout's child
// payment events, appending each matched record to the sink as it is
// joined. The first failure aborts the run; there is no partial-success
// mode and no retrying.
func (r *Reconciler) Reconcile() error {
	if err := r.buildPayoutIndex(); err != nil {
		return err
	}
	if err := r.walkPayoutEvents(); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"payouts":  len(r.order),
		"payments": len(r.matched),
	}).Info("reconciliation complete")
	return nil
}

// buildPayoutIndex fetches every paid payout created at or after the
// window's lower bound and records its date, bank reference and
// originating paid event, keyed by payout ID. Insertion order is kept so
// the subsequent walk is deterministic.
func (r *Reconciler) buildPayoutIndex() error {
	filter := timewindow.FilterTimestamp(r.since)

	payouts, err := paging.Walk(func(after string) (paging.Page[domain.Payout], error) {
		return r.api.ListPayouts(gocardless.PayoutListRequest{
			Status:       "paid",
			CreatedAtGte: filter,
			After:        after,
		})
	})
	if err != nil {
		return fmt.Errorf("list payouts: %w", err)
	}

	for _, p := range payouts {
		// Exactly one paid event is expected per payout; it is the parent
		// of every payment event reconciled below.
		page, err := r.api.ListEvents(gocardless.EventListRequest{
			Action: "paid",
			Payout: p.ID,
		})
		if err != nil {
			return fmt.Errorf("list paid events for %s: %w", p.ID, err)
		}
		if len(page.Records) == 0 {
			return fmt.Errorf("%w: payout %s has no paid event", domain.ErrIntegrity, p.ID)
		}

		r.index[p.ID] = domain.PayoutMeta{
			Date:      p.ArrivalDate,
			Reference: p.Reference,
			EventID:   page.Records[0].ID,
		}
		r.order = append(r.order, p.ID)
	}

	r.log.WithField("payouts", len(r.order)).Info("payout index built")
	return nil
}

func (r *Reconciler) walkPayoutEvents() error {
	for _, payoutID := range r.order {
		if err := r.walkChildEvents(r.index[payoutID].EventID); err != nil {
			return err
		}
	}
	return nil
}

// walkChildEvents resolves each payment settled under one payout's paid
// event and appends its matched record to the sink.
func (r *Reconciler) walkChildEvents(parent string) error {
	events, err := paging.Walk(func(after string) (paging.Page[domain.Event], error) {
		return r.api.ListEvents(gocardless.EventListRequest{
			ResourceType: "payments",
			ParentEvent:  parent,
			Include:      "payment",
			After:        after,
		})
	})
	if err != nil {
		return fmt.Errorf("list child events of %s: %w", parent, err)
	}

	for _, ev := range events {
		payment, err := r.api.GetPayment(ev.Links.Payment)
		if err != nil {
			return fmt.Errorf("get payment %s: %w", ev.Links.Payment, err)
		}

		rec, err := r.match(payment)
		if err != nil {
			return err
		}

		r.matched = append(r.matched, rec)
		if err := r.sink.AppendRow(r.projection.Row(rec)); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return nil
}

// match joins a payment against the payout index and computes its fee
// breakdown. A payout ID absent from the index means the upstream data is
// inconsistent; the record never reaches the sink.
func (r *Reconciler) match(p *domain.Payment) (Record, error) {
	meta, ok := r.index[p.Links.Payout]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s references unknown payout %q",
			domain.ErrIntegrity, p.ID, p.Links.Payout)
	}

	fee := r.schedule.Fee(p.Amount)
	rec := Record{
		"payout_id":            p.Links.Payout,
		"payout_date":          meta.Date,
		"payout_reference":     meta.Reference,
		"payment_id":           p.ID,
		"payment_date":         p.ChargeDate,
		"payment_description":  p.Description,
		"payment_amount_gross": majorUnits(p.Amount),
		"payment_amount_fees":  majorUnits(fee),
		"payment_amount_net":   majorUnits(fees.Net(p.Amount, fee)),
		"payer_name":           p.Metadata[r.payerKey],
	}
	for k, v := range r.parser(p.Description) {
		rec[k] = v
	}
	return rec, nil
}

// majorUnits formats an exact minor-unit amount as major units with two
// decimals, e.g. 9685 -> "96.85".
func majorUnits(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
