// Package analytics builds role-appropriate dashboard rollups from raw
// activity collections. The aggregator only reads; every number it emits
// is a pure function of the rows the Source hands back.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// Window is the length of a trend period. Current covers [now-Window, now),
// previous covers the equal-length period immediately before it.
const Window = 30 * 24 * time.Hour

// hotMarketWindow bounds the watchlist activity considered for market
// ranking.
const hotMarketWindow = 2 * Window

// hotMarketLimit caps the ranked market list.
const hotMarketLimit = 3

// Source is the read port the aggregator pulls activity rows through.
// Implementations must not mutate anything on behalf of this package.
type Source interface {
	// ListingsByOwner returns every listing owned by ownerID, any status.
	ListingsByOwner(ctx context.Context, ownerID string) ([]model.Listing, error)
	// LiveListings returns all listings whose status is live.
	LiveListings(ctx context.Context) ([]model.Listing, error)
	// WatchlistCount returns how many listings userID has saved.
	WatchlistCount(ctx context.Context, userID string) (int, error)
	// WatchlistSince returns userID's watchlist entries created at or
	// after since, with listing location joined in.
	WatchlistSince(ctx context.Context, userID string, since time.Time) ([]model.WatchlistEntry, error)
	// MessagesFrom returns every message userID has sent.
	MessagesFrom(ctx context.Context, userID string) ([]model.Message, error)
	// MessagesTo returns every message addressed to userID.
	MessagesTo(ctx context.Context, userID string) ([]model.Message, error)
	// AIAnalysisCount returns how many AI analyses userID has run.
	AIAnalysisCount(ctx context.Context, userID string) (int, error)
	// MarketSnapshots returns the latest market snapshot rows.
	MarketSnapshots(ctx context.Context) ([]model.MarketSnapshot, error)
}

// HotMarket is one entry of the ranked market list.
type HotMarket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// StatusBreakdown partitions a wholesaler's listings by lifecycle state.
type StatusBreakdown struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Sold    int `json:"sold"`
}

// InvestorSnapshot is the dashboard rollup for investor accounts.
type InvestorSnapshot struct {
	SavedListings int         `json:"savedListings"`
	ContactsMade  int         `json:"contactsMade"`
	AIAnalyses    int         `json:"aiAnalyses"`
	Watchlists    int         `json:"watchlists"`
	DealsViewed   TrendStat   `json:"dealsViewed"`
	HotMarkets    []HotMarket `json:"hotMarkets"`
	ActivityScore int         `json:"activityScore"`
}

// WholesalerSnapshot is the dashboard rollup for wholesaler accounts.
type WholesalerSnapshot struct {
	SavedListings    int             `json:"savedListings"`
	ContactsMade     int             `json:"contactsMade"`
	AIAnalyses       int             `json:"aiAnalyses"`
	MessagesReceived int             `json:"messagesReceived"`
	ViewsReceived    int             `json:"viewsReceived"`
	ListingsPosted   TrendStat       `json:"listingsPosted"`
	LeadsGenerated   TrendStat       `json:"leadsGenerated"`
	StatusBreakdown  StatusBreakdown `json:"listingStatusBreakdown"`
	AvgResponseHours *float64        `json:"avgResponseTimeHours"`
	ConversionRate   *float64        `json:"conversionRate"`
}

// Snapshot is the role-tagged union returned by Aggregator.Snapshot.
type Snapshot struct {
	Role       model.Role          `json:"role"`
	Investor   *InvestorSnapshot   `json:"investor,omitempty"`
	Wholesaler *WholesalerSnapshot `json:"wholesaler,omitempty"`
}

// Aggregator computes per-user analytics through a Source.
type Aggregator struct {
	src Source
	now func() time.Time
}

// New returns an Aggregator reading through src.
func New(src Source) *Aggregator {
	return &Aggregator{src: src, now: time.Now}
}

// NewAt returns an Aggregator with a fixed clock, for deterministic use.
func NewAt(src Source, now func() time.Time) *Aggregator {
	return &Aggregator{src: src, now: now}
}

// Snapshot dispatches on the viewer's role.
func (a *Aggregator) Snapshot(ctx context.Context, v model.Viewer) (*Snapshot, error) {
	if v.Wholesaler() {
		ws, err := a.Wholesaler(ctx, v.UserID)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Role: model.RoleWholesaler, Wholesaler: ws}, nil
	}
	is, err := a.Investor(ctx, v.UserID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Role: model.RoleInvestor, Investor: is}, nil
}

// Investor builds the investor rollup for userID.
func (a *Aggregator) Investor(ctx context.Context, userID string) (*InvestorSnapshot, error) {
	now := a.now()
	periodStart := now.Add(-Window)
	rankStart := now.Add(-hotMarketWindow)

	var (
		saved     int
		analyses  int
		sent      []model.Message
		watchlist []model.WatchlistEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		saved, err = a.src.WatchlistCount(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		analyses, err = a.src.AIAnalysisCount(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		sent, err = a.src.MessagesFrom(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		watchlist, err = a.src.WatchlistSince(gctx, userID, rankStart)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analytics: load investor activity")
	}

	contacts := distinctListings(sent, time.Time{}, now)
	dealsViewed := NewTrendStat("Deals Viewed",
		distinctListings(sent, periodStart, now),
		distinctListings(sent, rankStart, periodStart),
	)

	snap := &InvestorSnapshot{
		SavedListings: saved,
		ContactsMade:  contacts,
		AIAnalyses:    analyses,
		Watchlists:    saved,
		DealsViewed:   dealsViewed,
		HotMarkets:    rankMarkets(watchlist),
	}
	snap.ActivityScore = activityScore(snap)
	return snap, nil
}

// Wholesaler builds the wholesaler rollup for userID.
func (a *Aggregator) Wholesaler(ctx context.Context, userID string) (*WholesalerSnapshot, error) {
	now := a.now()
	periodStart := now.Add(-Window)
	prevStart := now.Add(-2 * Window)

	var (
		saved    int
		analyses int
		inbound  []model.Message
		owned    []model.Listing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		saved, err = a.src.WatchlistCount(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		analyses, err = a.src.AIAnalysisCount(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		inbound, err = a.src.MessagesTo(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		owned, err = a.src.ListingsByOwner(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analytics: load wholesaler activity")
	}

	listingsPosted := NewTrendStat("Listings Posted",
		countCreated(owned, periodStart, now),
		countCreated(owned, prevStart, periodStart),
	)
	leads := NewTrendStat("Leads Generated",
		distinctSenders(inbound, periodStart, now),
		distinctSenders(inbound, prevStart, periodStart),
	)

	var conversion *float64
	if listingsPosted.Current > 0 {
		r := math.Min(1, float64(leads.Current)/float64(listingsPosted.Current))
		conversion = &r
	}

	views := 0
	breakdown := StatusBreakdown{}
	for _, l := range owned {
		if l.Views != nil {
			views += *l.Views
		}
		breakdown.Total++
		switch {
		case l.Status.Closed():
			breakdown.Sold++
		case l.Status == model.StatusPending:
			breakdown.Pending++
		default:
			breakdown.Active++
		}
	}

	return &WholesalerSnapshot{
		SavedListings:    saved,
		ContactsMade:     distinctSenders(inbound, time.Time{}, now),
		AIAnalyses:       analyses,
		MessagesReceived: len(inbound),
		ViewsReceived:    views,
		ListingsPosted:   listingsPosted,
		LeadsGenerated:   leads,
		StatusBreakdown:  breakdown,
		AvgResponseHours: avgResponseHours(inbound),
		ConversionRate:   conversion,
	}, nil
}

// activityScore condenses investor engagement into a bounded 0..100 score.
func activityScore(s *InvestorSnapshot) int {
	base := s.SavedListings*5 +
		s.ContactsMade*12 +
		s.Watchlists*4 +
		s.AIAnalyses*8 +
		s.DealsViewed.Current*10
	score := int(math.Round(float64(base) / 2))
	if score > 100 {
		return 100
	}
	return score
}

// distinctListings counts the distinct non-nil listing ids among messages
// created in [from, to). A zero from drops the lower bound.
func distinctListings(msgs []model.Message, from, to time.Time) int {
	seen := map[string]struct{}{}
	for _, m := range msgs {
		if m.ListingID == nil || *m.ListingID == "" {
			continue
		}
		if !inWindow(m.CreatedAt, from, to) {
			continue
		}
		seen[*m.ListingID] = struct{}{}
	}
	return len(seen)
}

// distinctSenders counts the distinct senders among messages created in
// [from, to). A zero from drops the lower bound.
func distinctSenders(msgs []model.Message, from, to time.Time) int {
	seen := map[string]struct{}{}
	for _, m := range msgs {
		if m.FromID == "" {
			continue
		}
		if !inWindow(m.CreatedAt, from, to) {
			continue
		}
		seen[m.FromID] = struct{}{}
	}
	return len(seen)
}

// countCreated counts listings created in [from, to). Listings without a
// creation timestamp are skipped.
func countCreated(listings []model.Listing, from, to time.Time) int {
	n := 0
	for _, l := range listings {
		if l.CreatedAt == nil {
			continue
		}
		if inWindow(*l.CreatedAt, from, to) {
			n++
		}
	}
	return n
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	return t.Before(to)
}

// avgResponseHours averages read_at minus created_at over read messages,
// rounded to one decimal. Returns nil when no message has been read.
// Rows where read_at precedes created_at are bad data and are skipped.
func avgResponseHours(msgs []model.Message) *float64 {
	total := 0.0
	samples := 0
	for _, m := range msgs {
		if m.ReadAt == nil || m.ReadAt.Before(m.CreatedAt) {
			continue
		}
		total += m.ReadAt.Sub(m.CreatedAt).Hours()
		samples++
	}
	if samples == 0 {
		return nil
	}
	avg := math.Round(total/float64(samples)*10) / 10
	return &avg
}

// rankMarkets tallies watchlist entries per market label and returns the
// top markets by count. Ties break alphabetically so output is stable.
func rankMarkets(entries []model.WatchlistEntry) []HotMarket {
	counts := map[string]int{}
	for _, e := range entries {
		counts[marketLabel(e)]++
	}
	ranked := make([]HotMarket, 0, len(counts))
	for label, n := range counts {
		ranked = append(ranked, HotMarket{Label: label, Value: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Label < ranked[j].Label
	})
	if len(ranked) > hotMarketLimit {
		ranked = ranked[:hotMarketLimit]
	}
	return ranked
}

// marketLabel renders "City, ST", degrading to whichever location part the
// row actually carries.
func marketLabel(e model.WatchlistEntry) string {
	city := strDeref(e.City)
	state := strDeref(e.State)
	zip := strDeref(e.Zip)
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	case state != "":
		return state
	case zip != "":
		return zip
	}
	return "Unknown Market"
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
