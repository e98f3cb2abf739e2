package menu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

type moveCall struct {
	ChannelID     string
	DestinationID string
}

type noteCall struct {
	ChannelID string
	Mentions  string
	Content   string
}

type updateCall struct {
	Ref     MessageRef
	Display Display
}

type fakeTransport struct {
	mu      sync.Mutex
	seq     int
	sent    []Display
	updates []updateCall
	deletes []MessageRef
	symbols []string
	clears  int
	moves   []moveCall
	notes   []noteCall

	// failAttachAt makes the n-th symbol attach fail (1-based, 0 = never).
	failAttachAt int
	moveErr      error
	sendErr      error
}

func (f *fakeTransport) SendDisplay(ctx context.Context, recipientID string, d Display) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return MessageRef{}, f.sendErr
	}
	f.seq++
	f.sent = append(f.sent, d)
	return MessageRef{ChannelID: "dm-" + recipientID, MessageID: fmt.Sprintf("menu-%d", f.seq)}, nil
}

func (f *fakeTransport) UpdateDisplay(ctx context.Context, ref MessageRef, d Display) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Ref: ref, Display: d})
	return nil
}

func (f *fakeTransport) DeleteDisplay(ctx context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeTransport) AttachInputSymbol(ctx context.Context, ref MessageRef, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAttachAt > 0 && len(f.symbols)+1 >= f.failAttachAt {
		return errors.New("reaction rejected")
	}
	f.symbols = append(f.symbols, symbol)
	return nil
}

func (f *fakeTransport) ClearInputSymbols(ctx context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeTransport) MoveThread(ctx context.Context, channelID, destinationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, moveCall{ChannelID: channelID, DestinationID: destinationID})
	return f.moveErr
}

func (f *fakeTransport) SendNotification(ctx context.Context, channelID, mentionText, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, noteCall{ChannelID: channelID, Mentions: mentionText, Content: content})
	return nil
}

func (f *fakeTransport) counts() (sent, updates, deletes, moves, notes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), len(f.updates), len(f.deletes), len(f.moves), len(f.notes)
}

func (f *fakeTransport) attached() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.symbols...)
}

type fakeDirectory struct {
	missing  map[string]bool
	mentions map[string]string
}

func (d *fakeDirectory) LookupDestination(ctx context.Context, id string) (bool, error) {
	return !d.missing[id], nil
}

func (d *fakeDirectory) ResolveMention(ctx context.Context, t settings.MentionTarget) (string, error) {
	return d.mentions[t.ID], nil
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Fire runs the callback unless the timer was stopped.
func (t *fakeTimer) Fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
}

// FireLate runs the callback even if Stop was called, like a timer whose
// goroutine was already running when it was stopped.
func (t *fakeTimer) FireLate() {
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()
	t.f()
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

type staticConfig struct {
	mu  sync.Mutex
	cfg settings.Configuration
}

func (s *staticConfig) Snapshot() settings.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

func (s *staticConfig) set(cfg settings.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type harness struct {
	router    *Router
	transport *fakeTransport
	directory *fakeDirectory
	clock     *fakeClock
	config    *staticConfig
}

func newHarness(t *testing.T, strategy Strategy, cats ...settings.Category) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		directory: &fakeDirectory{missing: map[string]bool{}, mentions: map[string]string{}},
		clock:     newFakeClock(),
		config: &staticConfig{cfg: settings.Configuration{
			Enabled:         true,
			Categories:      cats,
			MenuDescription: "Pick one",
		}},
	}
	h.router = NewRouter(Deps{
		Transport: h.transport,
		Resolver:  NewResolver(h.config, h.directory, nil),
		Timeout:   time.Minute,
		AfterFunc: h.clock.AfterFunc,
		Now:       h.clock.Now,
	}, h.config, strategy)
	t.Cleanup(func() { h.router.Shutdown(context.Background()) })
	return h
}

func (h *harness) ready(t *testing.T, threadID string) *Menu {
	t.Helper()
	m, err := h.router.OnThreadReady(context.Background(), readyEvent(threadID))
	if err != nil {
		t.Fatalf("OnThreadReady failed: %v", err)
	}
	return m
}

func readyEvent(threadID string) ThreadReady {
	return ThreadReady{
		Thread: Thread{
			ID:               threadID,
			ChannelID:        "chan-" + threadID,
			RecipientIDs:     []string{threadID},
			GenesisMessageID: "genesis-" + threadID,
		},
		Initiating: MessageRef{ChannelID: "dm-" + threadID, MessageID: "initial-" + threadID},
	}
}

func billingAbuse() []settings.Category {
	return []settings.Category{
		{ID: "A", Label: "Billing", Mentions: []settings.MentionTarget{{ID: "role-billing", Kind: settings.MentionRole}}},
		{ID: "B", Label: "Abuse", Mentions: []settings.MentionTarget{{ID: "role-abuse", Kind: settings.MentionRole}, {ID: "user-gone"}}},
	}
}

func numberedCategories(n int) []settings.Category {
	out := make([]settings.Category, n)
	for i := range out {
		out[i] = settings.Category{ID: fmt.Sprintf("cat-%02d", i+1), Label: fmt.Sprintf("Category %d", i+1)}
	}
	return out
}
