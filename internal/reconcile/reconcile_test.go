package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasuryops/payout-reconciler/internal/descparse"
	"github.com/treasuryops/payout-reconciler/internal/domain"
	"github.com/treasuryops/payout-reconciler/internal/gocardless"
	"github.com/treasuryops/payout-reconciler/internal/mail"
	"github.com/treasuryops/payout-reconciler/internal/paging"
	"github.com/treasuryops/payout-reconciler/internal/timewindow"
)

// fakeAPI serves canned pages. Payout pages and per-parent child-event
// pages are returned in sequence, one per call.
type fakeAPI struct {
	payoutPages []paging.Page[domain.Payout]
	payoutCalls int

	paidEvents map[string][]domain.Event

	childPages map[string][]paging.Page[domain.Event]
	childCalls map[string]int

	payments map[string]*domain.Payment

	lastPayoutReq gocardless.PayoutListRequest
}

func (f *fakeAPI) ListPayouts(req gocardless.PayoutListRequest) (paging.Page[domain.Payout], error) {
	f.lastPayoutReq = req
	i := f.payoutCalls
	f.payoutCalls++
	if i >= len(f.payoutPages) {
		return paging.Page[domain.Payout]{}, nil
	}
	return f.payoutPages[i], nil
}

func (f *fakeAPI) ListEvents(req gocardless.EventListRequest) (paging.Page[domain.Event], error) {
	if req.Action == "paid" {
		return paging.Page[domain.Event]{Records: f.paidEvents[req.Payout]}, nil
	}

	if f.childCalls == nil {
		f.childCalls = make(map[string]int)
	}
	i := f.childCalls[req.ParentEvent]
	f.childCalls[req.ParentEvent]++
	pages := f.childPages[req.ParentEvent]
	if i >= len(pages) {
		return paging.Page[domain.Event]{}, nil
	}
	return pages[i], nil
}

func (f *fakeAPI) GetPayment(id string) (*domain.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("no such payment %q", id)
	}
	return p, nil
}

type memSink struct {
	rows      [][]string
	finalized []string
	writeFile bool
}

func (s *memSink) AppendRow(cells []string) error {
	s.rows = append(s.rows, append([]string(nil), cells...))
	return nil
}

func (s *memSink) Finalize(path string) error {
	s.finalized = append(s.finalized, path)
	if s.writeFile {
		return os.WriteFile(path, []byte("artifact"), 0o644)
	}
	return nil
}

type fakeMailer struct {
	sent []*mail.Message
	err  error
}

func (m *fakeMailer) Send(msg *mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func singlePayoutAPI() *fakeAPI {
	return &fakeAPI{
		payoutPages: []paging.Page[domain.Payout]{{
			Records: []domain.Payout{
				{ID: "PO1", ArrivalDate: "2024-04-10", Reference: "REF1", Status: "paid"},
			},
		}},
		paidEvents: map[string][]domain.Event{
			"PO1": {{ID: "EV1", Action: "paid"}},
		},
		childPages: map[string][]paging.Page[domain.Event]{
			"EV1": {{
				Records: []domain.Event{
					{ID: "CE1", ResourceType: "payments", Links: domain.EventLinks{Payment: "PM1", ParentEvent: "EV1"}},
				},
			}},
		},
		payments: map[string]*domain.Payment{
			"PM1": {
				ID:          "PM1",
				Amount:      10000,
				ChargeDate:  "2024-04-08",
				Description: "Membership (Spring Term)",
				Metadata:    map[string]string{"Member": "A Scout"},
				Links:       domain.PaymentLinks{Payout: "PO1"},
			},
		},
	}
}

func TestReconcileSinglePayout(t *testing.T) {
	api := singlePayoutAPI()
	sink := &memSink{}

	r, err := New(Options{API: api, Sink: sink, Window: timewindow.All})
	require.NoError(t, err)
	require.NoError(t, r.Reconcile())

	assert.Equal(t, "paid", api.lastPayoutReq.Status)
	assert.Equal(t, "1970-01-01T00:00:00.000Z", api.lastPayoutReq.CreatedAtGte)

	require.Len(t, r.Matched(), 1)
	rec := r.Matched()[0]
	assert.Equal(t, "PO1", rec["payout_id"])
	assert.Equal(t, "100.00", rec["payment_amount_gross"])
	assert.Equal(t, "3.15", rec["payment_amount_fees"])
	assert.Equal(t, "96.85", rec["payment_amount_net"])
	assert.Equal(t, "Membership", rec[descparse.ScheduleKey])
	assert.Equal(t, "Spring Term", rec[descparse.EventKey])
	assert.Equal(t, "A Scout", rec["payer_name"])

	require.Len(t, sink.rows, 2)
	assert.Equal(t, []string{"Payout Date", "Payout Reference", "Amount", "Schedule", "Event"}, sink.rows[0])
	assert.Equal(t, []string{"2024-04-10", "REF1", "96.85", "Membership", "Spring Term"}, sink.rows[1])
}

func TestReconcilePagedChildEvents(t *testing.T) {
	api := singlePayoutAPI()
	api.childPages["EV1"] = []paging.Page[domain.Event]{
		{
			Records: []domain.Event{
				{ID: "CE1", ResourceType: "payments", Links: domain.EventLinks{Payment: "PM1"}},
				{ID: "CE2", ResourceType: "payments", Links: domain.EventLinks{Payment: "PM2"}},
			},
			After: "c1",
		},
		{
			Records: []domain.Event{
				{ID: "CE3", ResourceType: "payments", Links: domain.EventLinks{Payment: "PM3"}},
			},
		},
	}
	for _, id := range []string{"PM2", "PM3"} {
		api.payments[id] = &domain.Payment{
			ID:     id,
			Amount: 5000,
			Links:  domain.PaymentLinks{Payout: "PO1"},
		}
	}
	sink := &memSink{}

	r, err := New(Options{API: api, Sink: sink, Window: timewindow.All})
	require.NoError(t, err)
	require.NoError(t, r.Reconcile())

	assert.Len(t, r.Matched(), 3)
	assert.Equal(t, 2, api.childCalls["EV1"])
	assert.Len(t, sink.rows, 4)
}

func TestReconcileUnknownPayoutIsFatal(t *testing.T) {
	api := singlePayoutAPI()
	api.payments["PM1"].Links.Payout = "GHOST"
	sink := &memSink{}

	r, err := New(Options{API: api, Sink: sink, Window: timewindow.All})
	require.NoError(t, err)

	err = r.Reconcile()
	assert.ErrorIs(t, err, domain.ErrIntegrity)

	// The offending record never reaches the sink.
	assert.Len(t, sink.rows, 1)
	assert.Empty(t, r.Matched())
}

func TestReconcilePayoutWithoutPaidEvent(t *testing.T) {
	api := singlePayoutAPI()
	api.paidEvents["PO1"] = nil

	r, err := New(Options{API: api, Sink: &memSink{}, Window: timewindow.All})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Reconcile(), domain.ErrIntegrity)
}

func TestNewValidatesEagerly(t *testing.T) {
	api := singlePayoutAPI()

	_, err := New(Options{Sink: &memSink{}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = New(Options{API: api})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = New(Options{API: api, Sink: &memSink{}, Window: "fortnight"})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = New(Options{
		API: api, Sink: &memSink{},
		Columns:  []string{"payout_id", "payment_id"},
		Headings: []string{"Payout"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	assert.Zero(t, api.payoutCalls, "validation must happen before any network call")
}

func TestCustomColumnsMissingKeyIsEmptyCell(t *testing.T) {
	api := singlePayoutAPI()
	sink := &memSink{}

	r, err := New(Options{
		API: api, Sink: sink, Window: timewindow.All,
		Columns: []string{"payout_reference", "nonexistent", "payer_name"},
	})
	require.NoError(t, err)
	require.NoError(t, r.Reconcile())

	// Headings fall back to the column keys.
	assert.Equal(t, []string{"payout_reference", "nonexistent", "payer_name"}, sink.rows[0])
	assert.Equal(t, []string{"REF1", "", "A Scout"}, sink.rows[1])
}

func TestCustomParserReplacesDefault(t *testing.T) {
	api := singlePayoutAPI()
	sink := &memSink{}

	r, err := New(Options{
		API: api, Sink: sink, Window: timewindow.All,
		Columns: []string{"term"},
		Parser: func(description string) map[string]string {
			return map[string]string{"term": "parsed:" + description}
		},
	})
	require.NoError(t, err)
	require.NoError(t, r.Reconcile())

	assert.Equal(t, []string{"parsed:Membership (Spring Term)"}, sink.rows[1])
}

func TestProjectionRow(t *testing.T) {
	p := Projection{Columns: []string{"b", "missing", "a"}, Headings: []string{"B", "M", "A"}}
	rec := Record{"a": "1", "b": "2"}

	assert.Equal(t, []string{"2", "", "1"}, p.Row(rec))
}

func TestExportTwiceIsResave(t *testing.T) {
	sink := &memSink{}
	r, err := New(Options{API: singlePayoutAPI(), Sink: sink, OutputPath: "out.xlsx"})
	require.NoError(t, err)

	require.NoError(t, r.Export())
	require.NoError(t, r.Export())

	assert.Equal(t, []string{"out.xlsx", "out.xlsx"}, sink.finalized)
}

func TestSendWithoutMailer(t *testing.T) {
	r, err := New(Options{API: singlePayoutAPI(), Sink: &memSink{}})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Send(false), domain.ErrInvalidParameter)
}

func TestSendRemovesArtifact(t *testing.T) {
	mailer := &fakeMailer{}
	output := filepath.Join(t.TempDir(), "payments.xlsx")

	r, err := New(Options{
		API:        singlePayoutAPI(),
		Sink:       &memSink{writeFile: true},
		Window:     timewindow.All,
		OutputPath: output,
		Mailer:     mailer,
		From:       "Treasurer <treasurer@example.org>",
		To:         []string{"ops@example.org"},
	})
	require.NoError(t, err)
	require.NoError(t, r.Reconcile())

	require.NoError(t, r.Send(false))
	assert.Len(t, mailer.sent, 1)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "artifact should be removed after a successful send")
}

func TestSendKeepsArtifactOnFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	output := filepath.Join(t.TempDir(), "payments.xlsx")

	r, err := New(Options{
		API:        singlePayoutAPI(),
		Sink:       &memSink{writeFile: true},
		Window:     timewindow.All,
		OutputPath: output,
		Mailer:     mailer,
		From:       "Treasurer <treasurer@example.org>",
		To:         []string{"ops@example.org"},
	})
	require.NoError(t, err)

	require.Error(t, r.Send(false))

	_, statErr := os.Stat(output)
	assert.NoError(t, statErr, "artifact must stay on disk when the send fails")
}
