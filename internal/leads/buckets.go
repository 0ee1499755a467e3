package leads

import "github.com/frametech/leads-dashboard/internal/models"

// Raw warmth values the bucketing matches against. Matching is exact:
// "Hot" or " hot" does not land in a bucket.
const (
	WarmthHot  = "hot"
	WarmthWarm = "warm"
	WarmthCold = "cold"
)

const (
	// BucketRows is how many leads each warmth table shows.
	BucketRows = 10
	// CallLogRows is how many calls the call log shows.
	CallLogRows = 20
)

// Buckets partitions leads by warmth. Rows with any other warmth value,
// including a missing one, are in none of the lists.
type Buckets struct {
	Hot  []models.Lead `json:"hot"`
	Warm []models.Lead `json:"warm"`
	Cold []models.Lead `json:"cold"`
}

// Bucket splits rows (in storage order) into the three warmth lists,
// keeping storage order inside each list.
func Bucket(rows []models.Lead) Buckets {
	var b Buckets
	for _, l := range rows {
		if l.LeadWarmth == nil {
			continue
		}
		switch *l.LeadWarmth {
		case WarmthHot:
			b.Hot = append(b.Hot, l)
		case WarmthWarm:
			b.Warm = append(b.Warm, l)
		case WarmthCold:
			b.Cold = append(b.Cold, l)
		}
	}
	return b
}

// Newest returns the last n rows of a storage-ordered list, newest first.
func Newest(rows []models.Lead, n int) []models.Lead {
	if n > len(rows) {
		n = len(rows)
	}
	if n <= 0 {
		return []models.Lead{}
	}
	out := make([]models.Lead, 0, n)
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		out = append(out, rows[i])
	}
	return out
}

// ForDisplay trims every bucket to its newest BucketRows entries.
func (b Buckets) ForDisplay() Buckets {
	return Buckets{
		Hot:  Newest(b.Hot, BucketRows),
		Warm: Newest(b.Warm, BucketRows),
		Cold: Newest(b.Cold, BucketRows),
	}
}

// CallLog returns the newest CallLogRows rows, newest first.
func CallLog(rows []models.Lead) []models.Lead {
	return Newest(rows, CallLogRows)
}
