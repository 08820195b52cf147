package marketplace

// RatingCounts is the per-star breakdown of a user's reviews.
type RatingCounts struct {
	FiveStar  int `json:"five_star"`
	FourStar  int `json:"four_star"`
	ThreeStar int `json:"three_star"`
	TwoStar   int `json:"two_star"`
	OneStar   int `json:"one_star"`
}

// RatingSummary represents aggregated rating data for a user
type RatingSummary struct {
	UserID        string       `json:"user_id"`
	TotalReviews  int          `json:"total_reviews"`
	AverageRating float64      `json:"average_rating"`
	RatingCounts  RatingCounts `json:"rating_counts"`
}

// AverageRating is the arithmetic mean of ratings, or exactly 0 when there
// are none.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// Summarize builds the rating summary for userID from its review ratings.
// Ratings outside 1-5 count toward the average but not the breakdown.
func Summarize(userID string, ratings []int) RatingSummary {
	summary := RatingSummary{
		UserID:        userID,
		TotalReviews:  len(ratings),
		AverageRating: AverageRating(ratings),
	}
	for _, rating := range ratings {
		switch rating {
		case 5:
			summary.RatingCounts.FiveStar++
		case 4:
			summary.RatingCounts.FourStar++
		case 3:
			summary.RatingCounts.ThreeStar++
		case 2:
			summary.RatingCounts.TwoStar++
		case 1:
			summary.RatingCounts.OneStar++
		}
	}
	return summary
}
