package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tungahq/payments/project/domain"
)

func participation(userID string, status domain.ParticipationStatus, weight int64) *domain.Participation {
	return &domain.Participation{
		ID:          userID,
		ProjectID:   "9",
		UserID:      userID,
		Status:      status,
		ShareWeight: decimal.NewFromInt(weight),
		Prepaid:     domain.PrepaidFalse,
	}
}

func TestShares(t *testing.T) {
	tests := []struct {
		name           string
		participations []*domain.Participation
		wantUsers      []string
		wantFractions  []string
		wantErr        error
	}{
		{
			name: "single accepted participant",
			participations: []*domain.Participation{
				participation("77", domain.ParticipationAccepted, 1),
			},
			wantUsers:     []string{"77"},
			wantFractions: []string{"1"},
		},
		{
			name: "weighted split ordered descending",
			participations: []*domain.Participation{
				participation("78", domain.ParticipationAccepted, 1),
				participation("77", domain.ParticipationAccepted, 2),
			},
			wantUsers:     []string{"77", "78"},
			wantFractions: []string{"0.6666666666666667", "0.3333333333333333"},
		},
		{
			name: "zero total weight falls back to equal split",
			participations: []*domain.Participation{
				participation("77", domain.ParticipationAccepted, 0),
				participation("78", domain.ParticipationAccepted, 0),
			},
			wantUsers:     []string{"77", "78"},
			wantFractions: []string{"0.5", "0.5"},
		},
		{
			name: "ties break on ascending user id",
			participations: []*domain.Participation{
				participation("79", domain.ParticipationAccepted, 1),
				participation("77", domain.ParticipationAccepted, 1),
				participation("78", domain.ParticipationAccepted, 1),
			},
			wantUsers:     []string{"77", "78", "79"},
			wantFractions: []string{"0.3333333333333333", "0.3333333333333333", "0.3333333333333333"},
		},
		{
			name: "invited and rejected participations do not count",
			participations: []*domain.Participation{
				participation("77", domain.ParticipationAccepted, 1),
				participation("78", domain.ParticipationInvited, 5),
				participation("79", domain.ParticipationRejected, 5),
			},
			wantUsers:     []string{"77"},
			wantFractions: []string{"1"},
		},
		{
			name:           "no accepted participations yields empty list",
			participations: []*domain.Participation{participation("77", domain.ParticipationInvited, 1)},
		},
		{
			name: "negative weight rejected",
			participations: []*domain.Participation{
				{UserID: "77", Status: domain.ParticipationAccepted, ShareWeight: decimal.NewFromInt(-1)},
			},
			wantErr: ErrNegativeShareWeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Shares(tt.participations)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
			assert.Len(t, shares, len(tt.wantUsers))

			for i, share := range shares {
				assert.Equal(t, tt.wantUsers[i], share.UserID)
				assert.Equal(t, tt.wantFractions[i], share.Fraction.String())
			}
		})
	}
}

func TestShares_SumIsOne(t *testing.T) {
	participations := []*domain.Participation{
		participation("77", domain.ParticipationAccepted, 2),
		participation("78", domain.ParticipationAccepted, 1),
		participation("79", domain.ParticipationAccepted, 1),
	}

	shares, err := Shares(participations)
	assert.NoError(t, err)

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share.Fraction)
	}

	assert.True(t, sum.Equal(decimal.NewFromInt(1)), "sum of shares is %s", sum)
}

func TestShares_InternalPrepaidNotPayable(t *testing.T) {
	internalUnset := participation("90", domain.ParticipationAccepted, 1)
	internalUnset.Internal = true
	internalUnset.Prepaid = domain.PrepaidUnset

	internalNotPrepaid := participation("91", domain.ParticipationAccepted, 1)
	internalNotPrepaid.Internal = true
	internalNotPrepaid.Prepaid = domain.PrepaidFalse

	external := participation("92", domain.ParticipationAccepted, 2)

	shares, err := Shares([]*domain.Participation{internalUnset, internalNotPrepaid, external})
	assert.NoError(t, err)
	assert.Len(t, shares, 3)

	byUser := map[string]bool{}
	for _, share := range shares {
		byUser[share.UserID] = share.Payable
	}

	assert.False(t, byUser["90"], "internal UNSET prepaid is treated as prepaid")
	assert.True(t, byUser["91"])
	assert.True(t, byUser["92"])

	// prepaid mass stays in the denominator
	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share.Fraction)
	}

	assert.True(t, sum.Equal(decimal.NewFromInt(1)))
}
