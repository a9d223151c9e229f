// Package tier computes achievement milestones from the number of books a teacher selected.
package tier

// Kind identifies which break point a tier came from.
type Kind string

const (
	KindQuarter      Kind = "quarter"
	KindHalf         Kind = "half"
	KindThreeQuarter Kind = "three_quarter"
	KindAnnual       Kind = "annual"
	KindLifetime     Kind = "lifetime"
)

const (
	lifetimeFloor      = 25
	lifetimeMultiplier = 5
)

// Tier is a (book count, reward) milestone. BookCount is the key rewards are preserved by.
type Tier struct {
	BookCount int    `json:"bookCount"`
	Kind      Kind   `json:"kind"`
	Reward    string `json:"reward"`
	MultiYear bool   `json:"multiYear,omitempty"`
}

var defaultRewards = map[Kind]string{
	KindQuarter:      "Bookmark",
	KindHalf:         "Certificate of progress",
	KindThreeQuarter: "Reading champion badge",
	KindAnnual:       "Annual completion award",
	KindLifetime:     "Lifetime reader medal",
}

// DefaultReward is the description a tier gets until a teacher edits it.
func DefaultReward(k Kind) string { return defaultRewards[k] }

// Derive returns the tiers for bookCount, strictly increasing by BookCount.
// Zero books yield no tiers. For fewer than four books the proportional tiers that
// would reach the annual count are dropped so the list stays strictly increasing.
func Derive(bookCount int) []Tier {
	if bookCount <= 0 {
		return nil
	}
	t1 := max(1, ceilDiv(bookCount, 4))
	t2 := max(t1+1, ceilDiv(bookCount, 2))
	t3 := max(t2+1, ceilDiv(3*bookCount, 4))
	lifetime := max(lifetimeFloor, lifetimeMultiplier*bookCount)

	tiers := make([]Tier, 0, 5)
	for _, p := range []struct {
		count int
		kind  Kind
	}{{t1, KindQuarter}, {t2, KindHalf}, {t3, KindThreeQuarter}} {
		if p.count < bookCount {
			tiers = append(tiers, newTier(p.count, p.kind))
		}
	}
	tiers = append(tiers, newTier(bookCount, KindAnnual))

	life := newTier(lifetime, KindLifetime)
	life.MultiYear = true
	return append(tiers, life)
}

// Reconcile re-derives tiers for bookCount and keeps the edited reward text of every
// existing tier whose BookCount is still present. Text that is still the default of its
// old kind is dropped so the new kind gets its own default. Position is irrelevant.
func Reconcile(existing []Tier, bookCount int) []Tier {
	rewards := make(map[int]string, len(existing))
	for _, t := range existing {
		if t.Reward != DefaultReward(t.Kind) {
			rewards[t.BookCount] = t.Reward
		}
	}
	tiers := Derive(bookCount)
	for i := range tiers {
		if r, ok := rewards[tiers[i].BookCount]; ok {
			tiers[i].Reward = r
		}
	}
	return tiers
}

func newTier(count int, kind Kind) Tier {
	return Tier{BookCount: count, Kind: kind, Reward: DefaultReward(kind)}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
