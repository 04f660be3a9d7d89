package dashboard

import (
	"sort"
	"strconv"
	"time"
)

// TrendMonths is how many calendar months the trend covers, the current one included.
const TrendMonths = 5

// Scope restricts every dashboard query. Both ids nil means all non-draft SPM.
type Scope struct {
	OwnerID *int64
	OPDID   *int64
}

func (s Scope) NonDraft() bool {
	return s.OwnerID == nil && s.OPDID == nil
}

func (s Scope) token() string {
	switch {
	case s.OPDID != nil:
		return "opd-" + strconv.FormatInt(*s.OPDID, 10)
	case s.OwnerID != nil:
		return "owner-" + strconv.FormatInt(*s.OwnerID, 10)
	default:
		return "all"
	}
}

type StatusTotal struct {
	Status     string `json:"status"`
	Count      int64  `json:"count"`
	GrossTotal int64  `json:"gross_total"`
	NetTotal   int64  `json:"net_total"`
}

type MonthTrend struct {
	Month     string `json:"month"`
	Submitted int64  `json:"submitted"`
	Approved  int64  `json:"approved"`
	Revised   int64  `json:"revised"`
}

type OPDTotal struct {
	OPDID      int64  `json:"opd_id" gorm:"column:opd_id"`
	OPDName    string `json:"opd_name" gorm:"column:opd_name"`
	Count      int64  `json:"count"`
	GrossTotal int64  `json:"gross_total"`
}

type VendorTotal struct {
	NamaPenerima string `json:"nama_penerima"`
	Count        int64  `json:"count"`
	GrossTotal   int64  `json:"gross_total"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type Summary struct {
	Statuses    []StatusTotal `json:"statuses"`
	Trend       []MonthTrend  `json:"trend"`
	ByOPD       []OPDTotal    `json:"by_opd"`
	ByVendor    []VendorTotal `json:"by_vendor"`
	SP2D        []StatusCount `json:"sp2d"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Timeline holds the raw event times the trend is bucketed from.
type Timeline struct {
	Submitted []time.Time
	Approved  []time.Time
	Revised   []time.Time
}

// trendStart is the first instant of the oldest month in the trend window.
func trendStart(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(TrendMonths - 1), 0)
}

// BuildTrend buckets timeline into TrendMonths months ending with the month of now.
// Months with no activity are present with zero counts.
func BuildTrend(now time.Time, timeline Timeline) []MonthTrend {
	start := trendStart(now.UTC())
	trend := make([]MonthTrend, TrendMonths)
	index := make(map[string]int, TrendMonths)
	for i := 0; i < TrendMonths; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		trend[i] = MonthTrend{Month: month}
		index[month] = i
	}

	bucket := func(times []time.Time, inc func(*MonthTrend)) {
		for _, t := range times {
			if i, ok := index[t.UTC().Format("2006-01")]; ok {
				inc(&trend[i])
			}
		}
	}
	bucket(timeline.Submitted, func(m *MonthTrend) { m.Submitted++ })
	bucket(timeline.Approved, func(m *MonthTrend) { m.Approved++ })
	bucket(timeline.Revised, func(m *MonthTrend) { m.Revised++ })
	return trend
}

// withAllStatuses returns one entry per known status in workflow order, zero-filled.
func withAllStatuses(known []string, totals []StatusTotal) []StatusTotal {
	byStatus := make(map[string]StatusTotal, len(totals))
	for _, t := range totals {
		byStatus[t.Status] = t
	}
	out := make([]StatusTotal, 0, len(known))
	for _, status := range known {
		t, ok := byStatus[status]
		if !ok {
			t = StatusTotal{Status: status}
		}
		out = append(out, t)
	}
	return out
}

func sortVendors(vendors []VendorTotal) {
	sort.SliceStable(vendors, func(i, j int) bool {
		if vendors[i].GrossTotal != vendors[j].GrossTotal {
			return vendors[i].GrossTotal > vendors[j].GrossTotal
		}
		return vendors[i].NamaPenerima < vendors[j].NamaPenerima
	})
}
