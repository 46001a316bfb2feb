package core

import "time"

// SiteStatus is one sample of the server's runtime state.
type SiteStatus struct {
	Time              time.Time `json:"time"`
	ActiveSessions    int       `json:"activeSessions"`
	MailQueue         int       `json:"mailQueue"`
	PendingDeliveries int       `json:"pendingDeliveries"`
	MailsSent         int       `json:"mailsSent"`
	MailsFailed       int       `json:"mailsFailed"`
	CacheHits         int64     `json:"cacheHits"`
	CacheMisses       int64     `json:"cacheMisses"`
	PreloadedModels   int       `json:"preloadedModels"`
}

// CacheHitRatio returns hits/(hits+misses), or 0 before the first lookup.
func (s SiteStatus) CacheHitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
