package domain

// EventType identifies a committed registry change.
type EventType string

const (
	EventUpdaterChanged          EventType = "updater_changed"
	EventReporterAdded           EventType = "reporter_added"
	EventReporterRemoved         EventType = "reporter_removed"
	EventPriceUpdated            EventType = "price_updated"
	EventFiatRemoved             EventType = "fiat_removed"
	EventReportSubmitted         EventType = "report_submitted"
	EventSettingsUpdated         EventType = "settings_updated"
	EventCommissionsUpdated      EventType = "commissions_updated"
	EventReferralPercentsUpdated EventType = "referral_percents_updated"
	EventTransferFeeUpdated      EventType = "transfer_fee_updated"
)

// Event is published after a mutation has been persisted.
type Event struct {
	Type      EventType `json:"type"`
	Actor     string    `json:"actor"`             // caller that performed the change
	Asset     string    `json:"asset,omitempty"`   // affected asset, if any
	Subject   string    `json:"subject,omitempty"` // affected role identity, if any
	Timestamp uint64    `json:"timestamp,omitempty"`
	Price     uint64    `json:"price,omitempty"`
	At        int64     `json:"at"` // commit time (ms)
}
