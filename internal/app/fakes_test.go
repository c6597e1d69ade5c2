package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/transport"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fetchResult struct {
	snap  pnr.StatusSnapshot
	err   error
	panic bool
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetchResult
	calls   map[string]int
	delay   time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: map[string]fetchResult{}, calls: map[string]int{}}
}

func (f *fakeFetcher) set(number, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[number] = fetchResult{snap: pnr.StatusSnapshot{
		Status:      status,
		Coach:       "S4",
		SeatNumber:  "42",
		ChartStatus: pnr.ChartNotPrepared,
	}}
}

func (f *fakeFetcher) setSnapshot(number string, snap pnr.StatusSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[number] = fetchResult{snap: snap}
}

func (f *fakeFetcher) fail(number, cause string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[number] = fetchResult{err: &pnr.FetchError{PNR: number, Cause: cause}}
}

func (f *fakeFetcher) explode(number string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[number] = fetchResult{panic: true}
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, number string) (pnr.StatusSnapshot, error) {
	f.mu.Lock()
	res, ok := f.results[number]
	f.calls[number]++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return pnr.StatusSnapshot{}, &pnr.FetchError{PNR: number, Cause: "unexpected status 404"}
	}
	if res.panic {
		panic("provider exploded")
	}
	return res.snap, res.err
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []transport.Message
	err  error
	boom bool
}

func (t *fakeTransport) Send(ctx context.Context, msg transport.Message) error {
	if t.boom {
		panic("transport exploded")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return t.err
}

func (t *fakeTransport) messages() []transport.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.Message(nil), t.sent...)
}

var errSMTPDown = errors.New("dial tcp: connection refused")
