package domain

import "time"

// AnalyticsHit is a single tracked request or page view.
type AnalyticsHit struct {
	Host      string
	Path      string
	Status    int
	VisitorID string
	Referrer  string
	At        time.Time
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx.
func (h AnalyticsHit) StatusClass() string {
	switch {
	case h.Status >= 500:
		return "5xx"
	case h.Status >= 400:
		return "4xx"
	case h.Status >= 300:
		return "3xx"
	case h.Status >= 200:
		return "2xx"
	}
	return "other"
}

// AnalyticsBucket aggregates hits for one hour.
type AnalyticsBucket struct {
	Start    time.Time
	Requests int64
	Visitors int64
	ByHost   map[string]int64
	ByPath   map[string]int64
	ByStatus map[string]int64
}

// AnalyticsSummary is the reporting view over a range of hourly buckets.
type AnalyticsSummary struct {
	From     time.Time
	To       time.Time
	Requests int64
	Visitors int64
	ByHost   map[string]int64
	ByPath   map[string]int64
	ByStatus map[string]int64
	Buckets  []AnalyticsBucket
}
