package engine

import (
	"math"
	"strconv"
	"time"

	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
)

// AgingClassifier buckets ages in days using ascending cut points. Buckets are
// closed on the cut: with cuts 30/60/90 an age of exactly 30 lands in "0-30".
// Days past the last cut land in the overflow bucket ("90+"). With no cuts
// every age lands in "0+".
type AgingClassifier struct {
	cuts   []int
	labels []string
}

// NewAgingClassifier derives bucket labels from the cut points.
func NewAgingClassifier(cuts []int) *AgingClassifier {
	c := &AgingClassifier{cuts: append([]int(nil), cuts...)}
	lower := 0
	for _, cut := range c.cuts {
		c.labels = append(c.labels, strconv.Itoa(lower)+"-"+strconv.Itoa(cut))
		lower = cut + 1
	}
	if len(c.cuts) == 0 {
		c.labels = append(c.labels, "0+")
	} else {
		c.labels = append(c.labels, strconv.Itoa(c.cuts[len(c.cuts)-1])+"+")
	}
	return c
}

// Buckets returns every label, lowest band first.
func (c *AgingClassifier) Buckets() []string {
	return append([]string(nil), c.labels...)
}

// Classify returns the bucket label for an age.
func (c *AgingClassifier) Classify(ageDays int) string {
	for i, cut := range c.cuts {
		if ageDays <= cut {
			return c.labels[i]
		}
	}
	return c.labels[len(c.labels)-1]
}

// Summarize counts and sums pending receivables per bucket. Every bucket is
// listed, including empty ones, in band order.
func (c *AgingClassifier) Summarize(pending []domain.PendingReceivable) []domain.AgingBucket {
	pos := make(map[string]int, len(c.labels))
	out := make([]domain.AgingBucket, len(c.labels))
	for i, l := range c.labels {
		pos[l] = i
		out[i] = domain.AgingBucket{Bucket: l, Sum: decimal.Zero}
	}
	for _, p := range pending {
		i, ok := pos[p.Bucket]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Sum = out[i].Sum.Add(p.Amount)
	}
	return out
}

// AgeInDays returns the whole days elapsed from date to asOf.
func AgeInDays(asOf, date time.Time) int {
	return dayDiff(asOf, date)
}

// dayDiff returns a-b in calendar days.
func dayDiff(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(math.Round(da.Sub(db).Hours() / 24))
}
