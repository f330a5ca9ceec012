package domain

import "time"

// DecisionKind is the outcome an official gives a pending report.
type DecisionKind string

const (
	DecisionVerify DecisionKind = "verify"
	DecisionReject DecisionKind = "reject"
)

// Status returns the verification status a report moves to.
func (k DecisionKind) Status() VerificationStatus {
	if k == DecisionVerify {
		return StatusVerified
	}
	return StatusRejected
}

// Decision records one triage action. It is published as an event after the
// data service accepts the change.
type Decision struct {
	EventID    string       `json:"event_id"`
	ReportID   LakeID       `json:"report_id"`
	Decision   DecisionKind `json:"decision"`
	OfficialID int64        `json:"official_id"`
	DecidedAt  time.Time    `json:"decided_at"`
}

// ApplyDecision returns a copy of lake with the decision recorded against it.
func ApplyDecision(lake Lake, d Decision) Lake {
	at := d.DecidedAt
	who := &Official{ID: d.OfficialID}
	lake.Status = d.Decision.Status()
	switch d.Decision {
	case DecisionVerify:
		lake.VerifiedBy, lake.VerifiedAt = who, &at
	case DecisionReject:
		lake.DeclinedBy, lake.DeclinedAt = who, &at
	}
	return lake
}
