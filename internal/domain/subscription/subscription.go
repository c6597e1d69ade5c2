// internal/domain/subscription/subscription.go
package subscription

import (
	"time"

	"pnr_tracker/internal/domain/pnr"
)

// JourneyDetails is optional trip information supplied when subscribing.
type JourneyDetails struct {
	TrainNumber string     `json:"trainNumber" bson:"trainNumber"`
	TrainName   string     `json:"trainName" bson:"trainName"`
	FromStation string     `json:"fromStation" bson:"fromStation"`
	ToStation   string     `json:"toStation" bson:"toStation"`
	JourneyDate *time.Time `json:"journeyDate,omitempty" bson:"journeyDate,omitempty"`
	Class       string     `json:"class" bson:"class"`
	Quota       string     `json:"quota" bson:"quota"`
}

// HistoryEntry records one distinct status label and when it was first observed.
// NotificationSent is written once as false and never updated.
type HistoryEntry struct {
	Status           string    `json:"status" bson:"status"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
	NotificationSent bool      `json:"notificationSent" bson:"notificationSent"`
}

// Subscription is one user's tracking of one PNR.
type Subscription struct {
	ID            string              `json:"id" bson:"_id"`
	UserID        string              `json:"userId" bson:"userId"`
	PNRNumber     string              `json:"pnrNumber" bson:"pnrNumber"`
	PassengerName string              `json:"passengerName" bson:"passengerName"`
	Journey       JourneyDetails      `json:"journeyDetails" bson:"journeyDetails"`
	CurrentStatus *pnr.StatusSnapshot `json:"currentStatus,omitempty" bson:"currentStatus,omitempty"`
	StatusHistory []HistoryEntry      `json:"statusHistory" bson:"statusHistory"`
	IsActive      bool                `json:"isActive" bson:"isActive"`
	LastChecked   *time.Time          `json:"lastChecked,omitempty" bson:"lastChecked,omitempty"`
	Version       int64               `json:"-" bson:"version"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// ApplySnapshot is the single change-detection rule shared by the scheduled and the
// on-demand paths. A change is a missing current status or a different status label;
// only a change appends history. The snapshot and lastChecked are replaced either way.
func (s *Subscription) ApplySnapshot(snap pnr.StatusSnapshot, observedAt time.Time) bool {
	changed := s.CurrentStatus == nil || s.CurrentStatus.Status != snap.Status
	if changed {
		s.StatusHistory = append(s.StatusHistory, HistoryEntry{
			Status:           snap.Status,
			UpdatedAt:        observedAt,
			NotificationSent: false,
		})
	}
	current := snap
	s.CurrentStatus = &current
	checked := observedAt
	s.LastChecked = &checked
	s.UpdatedAt = observedAt
	return changed
}

// Clone returns a deep copy so stores can hand out values without sharing slices.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	if s.CurrentStatus != nil {
		cs := *s.CurrentStatus
		c.CurrentStatus = &cs
	}
	if s.LastChecked != nil {
		lc := *s.LastChecked
		c.LastChecked = &lc
	}
	if s.Journey.JourneyDate != nil {
		jd := *s.Journey.JourneyDate
		c.Journey.JourneyDate = &jd
	}
	c.StatusHistory = append([]HistoryEntry(nil), s.StatusHistory...)
	if c.StatusHistory == nil {
		c.StatusHistory = []HistoryEntry{}
	}
	return &c
}

// Patch carries the externally writable fields of a subscription.
// Status, history and lastChecked are owned by reconciliation and cannot be patched.
type Patch struct {
	PassengerName *string
	Journey       *JourneyDetails
	IsActive      *bool
}

// Apply copies the set fields of p onto s.
func (p Patch) Apply(s *Subscription, now time.Time) {
	if p.PassengerName != nil {
		s.PassengerName = *p.PassengerName
	}
	if p.Journey != nil {
		s.Journey = *p.Journey
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	s.UpdatedAt = now
}
