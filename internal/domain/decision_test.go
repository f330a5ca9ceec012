package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDecision(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	lake := Lake{ID: 5, Name: "Thulagi", RiskLevel: RiskHigh, Status: StatusPending}

	verified := ApplyDecision(lake, Decision{ReportID: 5, Decision: DecisionVerify, OfficialID: 7, DecidedAt: at})
	assert.Equal(t, StatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, int64(7), verified.VerifiedBy.ID)
	assert.Equal(t, at, *verified.VerifiedAt)
	assert.Nil(t, verified.DeclinedBy)

	rejected := ApplyDecision(lake, Decision{ReportID: 5, Decision: DecisionReject, OfficialID: 8, DecidedAt: at})
	assert.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.DeclinedBy)
	assert.Equal(t, int64(8), rejected.DeclinedBy.ID)
	assert.Nil(t, rejected.VerifiedBy)

	assert.Equal(t, StatusPending, lake.Status, "input is not modified")
}
