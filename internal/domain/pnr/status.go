// internal/domain/pnr/status.go
package pnr

import (
	"context"
	"errors"
	"fmt"
)

// Literal chart states carried in StatusSnapshot.ChartStatus.
const (
	ChartPrepared    = "Chart Prepared"
	ChartNotPrepared = "Chart Not Prepared"
)

// ErrUpstreamUnavailable is wrapped by every failure the status provider produces:
// timeouts, non-2xx responses, embedded error bodies and unparsable payloads.
var ErrUpstreamUnavailable = errors.New("pnr status provider unavailable")

// StatusSnapshot is the normalized current status of a PNR.
// Every field is always present; absent upstream values are blank strings.
type StatusSnapshot struct {
	Status          string `json:"status" bson:"status"`
	Coach           string `json:"coach" bson:"coach"`
	SeatNumber      string `json:"seatNumber" bson:"seatNumber"`
	BerthPreference string `json:"berthPreference" bson:"berthPreference"`
	CurrentLocation string `json:"currentLocation" bson:"currentLocation"`
	ChartStatus     string `json:"chartStatus" bson:"chartStatus"`
}

// ChartStatusFor maps the provider's chart-prepared flag onto its display literal.
func ChartStatusFor(prepared bool) string {
	if prepared {
		return ChartPrepared
	}
	return ChartNotPrepared
}

// Fetcher retrieves the live status of one PNR.
// Implementations make exactly one upstream call and never retry.
type Fetcher interface {
	FetchStatus(ctx context.Context, number string) (StatusSnapshot, error)
}

// FetchError describes why a status fetch failed.
type FetchError struct {
	PNR   string
	Cause string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch PNR status for %s: %s", e.PNR, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return ErrUpstreamUnavailable
}
