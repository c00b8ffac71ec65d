package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_tv/internal/events"
	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/player"
	"github.com/friendsincode/hearth_tv/internal/schedule"
	"github.com/friendsincode/hearth_tv/internal/session"
)

type fakeRepo struct {
	items []models.MediaItem
}

func (r *fakeRepo) GetAll(ctx context.Context) ([]models.MediaItem, error) {
	return r.items, nil
}

func (r *fakeRepo) GetInterludes(ctx context.Context, today string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, item := range r.items {
		if item.MediaType == models.MediaTypeInterlude && item.ActiveOn(today) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	for _, item := range r.items {
		if item.ID == id {
			copied := item
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeSettings struct {
	settings models.SystemSettings
}

func (s *fakeSettings) Get() (*models.SystemSettings, error) {
	copied := s.settings
	return &copied, nil
}

type memStore struct {
	state session.QuotaState
}

func (m *memStore) LoadQuota() (session.QuotaState, error) { return m.state, nil }
func (m *memStore) SaveQuota(s session.QuotaState) error {
	m.state = s
	return nil
}

// fakePlayer replays a scripted sequence of statuses and records every
// command it receives.
type fakePlayer struct {
	mu       sync.Mutex
	statuses []player.Status
	statusAt int
	commands []string
	statErr  error
}

func (p *fakePlayer) nextStatus() player.Status {
	if p.statusAt < len(p.statuses) {
		s := p.statuses[p.statusAt]
		p.statusAt++
		return s
	}
	if len(p.statuses) > 0 {
		return p.statuses[len(p.statuses)-1]
	}
	return player.Status{State: player.StateStopped}
}

func (p *fakePlayer) record(cmd string) {
	p.mu.Lock()
	p.commands = append(p.commands, cmd)
	p.mu.Unlock()
}

func (p *fakePlayer) commandLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

func (p *fakePlayer) Connect(ctx context.Context) error { return nil }
func (p *fakePlayer) Disconnect() error                 { return nil }
func (p *fakePlayer) Play(ctx context.Context, path string) error {
	p.record("play " + path)
	return nil
}
func (p *fakePlayer) Enqueue(ctx context.Context, path string) error {
	p.record("enqueue " + path)
	return nil
}
func (p *fakePlayer) Clear(ctx context.Context) error { p.record("clear"); return nil }
func (p *fakePlayer) Pause(ctx context.Context) error { p.record("pause"); return nil }
func (p *fakePlayer) Stop(ctx context.Context) error  { p.record("stop"); return nil }
func (p *fakePlayer) Next(ctx context.Context) error  { p.record("next"); return nil }
func (p *fakePlayer) SetLoop(ctx context.Context, enabled bool) error {
	if enabled {
		p.record("loop on")
	} else {
		p.record("loop off")
	}
	return nil
}
func (p *fakePlayer) Status(ctx context.Context) (player.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statErr != nil {
		return player.Status{}, p.statErr
	}
	return p.nextStatus(), nil
}
func (p *fakePlayer) UpdateLogo(ctx context.Context, cfg player.LogoConfig) error { return nil }

func video(id string, duration float64) models.MediaItem {
	return models.MediaItem{ID: id, Path: "/m/videos/" + id + ".mp4", Filename: id + ".mp4", MediaType: models.MediaTypeVideo, DurationSeconds: duration}
}

type fixture struct {
	orch   *Orchestrator
	player *fakePlayer
	clock  *session.Clock
	bus    *events.Bus
}

func newFixture(t *testing.T, items []models.MediaItem, settings models.SystemSettings) *fixture {
	t.Helper()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{items: items}
	cfg := &fakeSettings{settings: settings}
	clock := session.NewWithNow(&memStore{}, zerolog.Nop(), func() time.Time { return now })
	sched := schedule.NewWithSeed(repo, cfg, clock, zerolog.Nop(), 1, func() time.Time { return now })
	fp := &fakePlayer{}
	bus := events.NewBus()

	orch := New(Config{
		PollInterval:      time.Millisecond,
		StopRecheckDelay:  time.Millisecond,
		DisconnectBackoff: 5 * time.Millisecond,
	}, fp, sched, clock, repo, nil, cfg, bus, zerolog.Nop())

	return &fixture{orch: orch, player: fp, clock: clock, bus: bus}
}

func playing(pos, dur float64) player.Status {
	return player.Status{IsPlaying: true, State: player.StatePlaying, PositionSeconds: pos, DurationSeconds: dur}
}

func stopped() player.Status {
	return player.Status{State: player.StateStopped}
}

func TestStartSessionPlaysAndPrequeues(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60), video("v3", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	log := f.player.commandLog()
	if len(log) < 3 || log[0] != "loop off" {
		t.Fatalf("session must open with loop mode off, got %v", log)
	}
	var played, enqueued bool
	for _, cmd := range log {
		if len(cmd) > 5 && cmd[:5] == "play " {
			played = true
		}
		if len(cmd) > 8 && cmd[:8] == "enqueue " {
			enqueued = true
		}
	}
	if !played || !enqueued {
		t.Fatalf("expected play + pre-queue, got %v", log)
	}
	state := f.orch.State()
	if state.Current == nil || state.OffAir {
		t.Fatalf("unexpected state after start: %+v", state)
	}
}

func TestPositionResetTriggersOneTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60), video("v3", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	before := f.orch.State().Current.ID

	f.player.statuses = []player.Status{
		playing(58, 60), // late in the track
		playing(1, 60),  // position reset: player auto-advanced
		playing(2, 60),  // settled into the new track, no second transition
	}
	for i := 0; i < 3; i++ {
		f.orch.iterate(context.Background())
	}

	after := f.orch.State().Current.ID
	if after == before {
		t.Fatal("position reset should advance the tracked current item")
	}

	// Exactly one advance: the enqueue count went up by one.
	enqueues := 0
	for _, cmd := range f.player.commandLog() {
		if len(cmd) > 8 && cmd[:8] == "enqueue " {
			enqueues++
		}
	}
	if enqueues != 2 { // one at session start, one on the transition
		t.Fatalf("expected 2 pre-queues, got %d: %v", enqueues, f.player.commandLog())
	}
}

func TestBeyondExpectedTriggersTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60), video("v3", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	before := f.orch.State().Current.ID

	f.player.statuses = []player.Status{
		playing(10, 60),
		playing(70, 60), // past duration + 5: short asset already auto-advanced
	}
	f.orch.iterate(context.Background())
	f.orch.iterate(context.Background())

	if f.orch.State().Current.ID == before {
		t.Fatal("beyond-expected position should advance the tracked current item")
	}
}

func TestConfirmedStopEntersOffAir(t *testing.T) {
	t.Parallel()
	items := []models.MediaItem{
		video("v1", 60), video("v2", 60),
		{ID: "offair", Path: "/m/offair/loop.mp4", Filename: "loop.mp4", MediaType: models.MediaTypeOffAir, DurationSeconds: 30},
	}
	f := newFixture(t, items, models.SystemSettings{ResetHour: 6, OffAirVideoID: "offair"})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}

	f.player.statuses = []player.Status{
		playing(30, 60), // establishes lastPosition > 3
		stopped(),       // first stopped poll
		stopped(),       // recheck confirms
	}
	f.orch.iterate(context.Background())
	f.orch.iterate(context.Background())

	state := f.orch.State()
	if !state.OffAir {
		t.Fatalf("confirmed stop should enter off-air, state: %+v", state)
	}

	// Off-air asset loops on the player's own flag.
	log := f.player.commandLog()
	var playedOffAir, loopOn bool
	for _, cmd := range log {
		if cmd == "play /m/offair/loop.mp4" {
			playedOffAir = true
		}
		if cmd == "loop on" {
			loopOn = true
		}
	}
	if !playedOffAir || !loopOn {
		t.Fatalf("off-air entry should play and loop the fallback asset, got %v", log)
	}

	// Subsequent iterations idle: no more status polls are scripted, and
	// off-air iterations never poll.
	polls := f.player.statusAt
	f.orch.iterate(context.Background())
	if f.player.statusAt != polls {
		t.Fatal("off-air iterations must not poll the player")
	}
}

func TestTransientBufferingDoesNotStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}

	f.player.statuses = []player.Status{
		playing(30, 60),
		stopped(),       // blip
		playing(31, 60), // recheck sees playback again
	}
	f.orch.iterate(context.Background())
	f.orch.iterate(context.Background())

	if f.orch.State().OffAir {
		t.Fatal("a transient stop must not enter off-air")
	}
}

func TestConnectionErrorBacksOffAndLogsOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}

	f.player.statErr = player.ErrNotConnected
	delay := f.orch.iterate(context.Background())
	if delay != f.orch.cfg.DisconnectBackoff {
		t.Fatalf("connection errors should back off, got delay %s", delay)
	}
	if !f.orch.disconnected {
		t.Fatal("disconnection episode flag should be set")
	}

	// Second failing iteration keeps the flag; recovery clears it.
	f.orch.iterate(context.Background())
	f.player.statErr = nil
	f.player.statuses = []player.Status{playing(5, 60)}
	f.player.statusAt = 0
	f.orch.iterate(context.Background())
	if f.orch.disconnected {
		t.Fatal("successful poll should clear the disconnection episode")
	}
}

func TestStopEndsSessionAndClock(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []models.MediaItem{video("v1", 60), video("v2", 60)}, models.SystemSettings{ResetHour: 6})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := f.orch.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if f.clock.IsActive() {
		t.Fatal("stop must end the session clock")
	}
	state := f.orch.State()
	if state.Current != nil || state.OffAir {
		t.Fatalf("stop should return to idle, state: %+v", state)
	}
}

func TestPlayNextWithoutSessionIsRejected(t *testing.T) {
	t.Parallel()
	items := []models.MediaItem{
		video("v1", 60),
		{ID: "offair", Path: "/m/offair/loop.mp4", Filename: "loop.mp4", MediaType: models.MediaTypeOffAir, DurationSeconds: 30},
	}
	f := newFixture(t, items, models.SystemSettings{ResetHour: 6, OffAirVideoID: "offair"})

	err := f.orch.PlayNext(context.Background())
	if !errors.Is(err, session.ErrSessionInactive) {
		t.Fatalf("skip without a session should be rejected, got %v", err)
	}
	state := f.orch.State()
	if state.OffAir || state.Current != nil {
		t.Fatalf("idle orchestrator must stay idle, state: %+v", state)
	}
	if log := f.player.commandLog(); len(log) != 0 {
		t.Fatalf("no player commands expected, got %v", log)
	}
}

func TestSkipQuotaAndResumeStartsFreshSession(t *testing.T) {
	t.Parallel()
	items := []models.MediaItem{
		video("v1", 600), video("v2", 600),
		{ID: "offair", Path: "/m/offair/loop.mp4", Filename: "loop.mp4", MediaType: models.MediaTypeOffAir, DurationSeconds: 30},
	}
	f := newFixture(t, items, models.SystemSettings{ResetHour: 6, SessionLimitMinutes: 10, OffAirVideoID: "offair"})

	if err := f.orch.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	// Drain the finite rotation until off-air.
	for i := 0; i < 5 && !f.orch.State().OffAir; i++ {
		if err := f.orch.PlayNext(context.Background()); err != nil {
			t.Fatalf("play next: %v", err)
		}
	}
	if !f.orch.State().OffAir {
		t.Fatal("finite rotation should have gone off-air")
	}

	if err := f.orch.SkipQuotaAndResume(context.Background()); err != nil {
		t.Fatalf("skip quota and resume: %v", err)
	}
	state := f.orch.State()
	if state.OffAir || state.Current == nil {
		t.Fatalf("resume should exit off-air into a live session, state: %+v", state)
	}
	if !state.Session.QuotaSkipped {
		t.Fatal("quota should report skipped after resume")
	}

	// With the quota skipped, the previously finite rotation is unlimited.
	for i := 0; i < 6; i++ {
		if err := f.orch.PlayNext(context.Background()); err != nil {
			t.Fatalf("play next: %v", err)
		}
		if f.orch.State().OffAir {
			t.Fatal("skipped-quota session must not re-enter off-air on budget grounds")
		}
	}
}
