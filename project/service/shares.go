package service

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tungahq/payments/project/domain"
)

var (
	ErrNegativeShareWeight = errors.New("share weight must not be negative")
)

var one = decimal.NewFromInt(1)

// Shares computes each accepted participant's fraction of the project
// payment. The sum of fractions is 1. When every accepted weight is zero the
// split is equal. Internal prepaid participants keep their fraction but are
// flagged non-payable so they never receive a purchase invoice.
//
// The result is ordered by descending fraction, ties broken by ascending
// user id, so residual absorption is deterministic.
func Shares(participations []*domain.Participation) ([]domain.Share, error) {
	var accepted []*domain.Participation

	for _, p := range participations {
		if p.Status != domain.ParticipationAccepted {
			continue
		}

		if p.ShareWeight.IsNegative() {
			return nil, ErrNegativeShareWeight
		}

		accepted = append(accepted, p)
	}

	if len(accepted) == 0 {
		return nil, nil
	}

	total := decimal.Zero
	for _, p := range accepted {
		total = total.Add(p.ShareWeight)
	}

	equalSplit := total.IsZero()
	count := decimal.NewFromInt(int64(len(accepted)))

	shares := make([]domain.Share, 0, len(accepted))

	for _, p := range accepted {
		var fraction decimal.Decimal
		if equalSplit {
			fraction = one.Div(count)
		} else {
			fraction = p.ShareWeight.Div(total)
		}

		shares = append(shares, domain.Share{
			UserID:   p.UserID,
			Fraction: fraction,
			Payable:  !p.PrepaidEffective(),
		})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		if !shares[i].Fraction.Equal(shares[j].Fraction) {
			return shares[i].Fraction.GreaterThan(shares[j].Fraction)
		}

		return shares[i].UserID < shares[j].UserID
	})

	return shares, nil
}
