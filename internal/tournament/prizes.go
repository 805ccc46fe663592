package tournament

import "fmt"

// DefaultPrizes is the gbux payout for first, second and third place.
func DefaultPrizes() []int64 {
	return []int64{5000, 2500, 1000}
}

// ValidatePrizes rejects negative payouts and payouts that increase with rank.
func ValidatePrizes(prizes []int64) error {
	for index, prize := range prizes {
		if prize < 0 {
			return fmt.Errorf("tournament: prize for rank %d is negative", index+1)
		}
		if index > 0 && prize > prizes[index-1] {
			return fmt.Errorf("tournament: prize for rank %d exceeds rank %d", index+1, index)
		}
	}
	return nil
}

// RewardForRank returns the payout for a 1-based rank, zero outside the table.
func RewardForRank(prizes []int64, rank int) int64 {
	if rank < 1 || rank > len(prizes) {
		return 0
	}
	return prizes[rank-1]
}
