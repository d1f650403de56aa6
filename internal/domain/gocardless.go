package domain

// Payout is one bank-deposit batch paid out by the processor.
// https://developer.gocardless.com/api-reference/#core-endpoints-payouts
type Payout struct {
	ID          string `json:"id"`
	ArrivalDate string `json:"arrival_date"`
	Reference   string `json:"reference"`
	Status      string `json:"status"`
}

// EventLinks are the resources an event points at.
type EventLinks struct {
	Payment     string `json:"payment,omitempty"`
	Payout      string `json:"payout,omitempty"`
	ParentEvent string `json:"parent_event,omitempty"`
}

// Event is a processor-side state change. The event marking a payout as
// paid is the parent of one child event per payment settled into it.
// https://developer.gocardless.com/api-reference/#core-endpoints-events
type Event struct {
	ID           string     `json:"id"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	Links        EventLinks `json:"links"`
}

// PaymentLinks are the resources a payment points at.
type PaymentLinks struct {
	Payout string `json:"payout,omitempty"`
}

// Payment is a single customer payment. Amount is in minor currency units.
type Payment struct {
	ID          string            `json:"id"`
	Amount      int64             `json:"amount"`
	ChargeDate  string            `json:"charge_date"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	Links       PaymentLinks      `json:"links"`
}

// PayoutMeta is what the payout index keeps per payout: the exported date
// and reference, plus the originating paid event used as the join key.
type PayoutMeta struct {
	Date      string
	Reference string
	EventID   string
}
