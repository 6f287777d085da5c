package room

import (
	"sync"
	"testing"

	"github.com/jason-s-yu/caucus/internal/bus"
	"github.com/jason-s-yu/caucus/internal/models"
	"github.com/jason-s-yu/caucus/internal/names"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger, _ := test.NewNullLogger()
	return NewRegistry(names.NewGenerator(), logger)
}

func u8(v uint8) *uint8 { return &v }

func seats(st models.RoomState) []int {
	ids := make([]int, len(st.Players))
	for i, p := range st.Players {
		ids[i] = p.PlayerID
	}
	return ids
}

func TestCreateRoom(t *testing.T) {
	r := newTestRegistry()

	generated := r.CreateRoom("")
	assert.Equal(t, "SwiftFox", generated)

	assert.Equal(t, "Alpha", r.CreateRoom("Alpha"))
	st, ok := r.State("Alpha")
	require.True(t, ok)
	assert.Empty(t, st.Players)

	// Declaring an existing room again resets it.
	r.Join("Alpha")
	r.CreateRoom("Alpha")
	st, _ = r.State("Alpha")
	assert.Empty(t, st.Players)

	_, ok = r.State("missing")
	assert.False(t, ok)
}

func TestFirstJoinGetsSeatZero(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, 0, r.Join("fresh"))

	r.CreateRoom("declared")
	assert.Equal(t, 0, r.Join("declared"))

	st, ok := r.State("fresh")
	require.True(t, ok)
	require.Len(t, st.Players, 1)
	assert.Equal(t, models.DefaultPlayerName, st.Players[0].PlayerName)
	assert.Nil(t, st.Players[0].Value)
}

func TestJoinFillsLowestFreeSeat(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 4; i++ {
		require.Equal(t, i, r.Join("room"))
	}

	r.Leave("room", 1)
	assert.Equal(t, 1, r.Join("room"))

	r.Leave("room", 0)
	r.Leave("room", 2)
	assert.Equal(t, 0, r.Join("room"))
	assert.Equal(t, 2, r.Join("room"))
	assert.Equal(t, 4, r.Join("room"))
}

func TestJoinBeyondActiveSeatsWaits(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < models.ActiveSeats; i++ {
		r.Join("room")
	}

	first := r.Join("room")
	second := r.Join("room")
	assert.Equal(t, 16, first)
	assert.Equal(t, 17, second)
	assert.Greater(t, second, first)

	st, _ := r.State("room")
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 16, 17}, seats(st))
}

func TestLeavePromotesFirstWaiting(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 7; i++ {
		r.Join("room")
	}
	r.Apply("room", models.ChangeName{PlayerID: 16, Name: "Brazil"})
	r.Apply("room", models.ChangeValue{PlayerID: 16, Value: 8})

	st, exists := r.Leave("room", 3)
	require.True(t, exists)
	require.Len(t, st.Players, 6)
	assert.Equal(t, models.NotifyChange{CurrentID: 16, NewID: 3}, st.NotifyChange)

	i := st.Player(3)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "Brazil", st.Players[i].PlayerName)
	assert.Nil(t, st.Players[i].Value)
	assert.Equal(t, -1, st.Player(16))
}

func TestPromotionUsesListOrder(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 9; i++ {
		r.Join("room") // 0..5, 16, 17, 18
	}

	// A waiting seat leaving still promotes: 16 moves into 17 and goes to the back.
	st, _ := r.Leave("room", 17)
	assert.Equal(t, models.NotifyChange{CurrentID: 16, NewID: 17}, st.NotifyChange)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 18, 17}, seats(st))

	// 18 is listed before 17, so it wins even though 17 is numerically smaller.
	st, _ = r.Leave("room", 0)
	assert.Equal(t, models.NotifyChange{CurrentID: 18, NewID: 0}, st.NotifyChange)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 17, 0}, seats(st))
}

func TestLeaveWithoutWaitingClearsNotice(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 7; i++ {
		r.Join("room")
	}
	st, _ := r.Leave("room", 0)
	require.Equal(t, models.NotifyChange{CurrentID: 16, NewID: 0}, st.NotifyChange)

	st, _ = r.Leave("room", 1)
	assert.Equal(t, models.NotifyChange{}, st.NotifyChange)
	assert.Len(t, st.Players, 5)
}

func TestLeaveTwiceIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Join("room")
	r.Join("room")

	first, exists := r.Leave("room", 1)
	require.True(t, exists)
	second, exists := r.Leave("room", 1)
	require.True(t, exists)
	assert.Equal(t, first, second)

	_, exists = r.Leave("nowhere", 0)
	assert.False(t, exists)
}

func TestLastLeaveRemovesRoom(t *testing.T) {
	r := newTestRegistry()
	r.Join("room")

	_, exists := r.Leave("room", 0)
	assert.False(t, exists)
	_, ok := r.State("room")
	assert.False(t, ok)
	assert.Empty(t, r.Rooms())
}

func TestApplyUnknownSeatIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Join("room")
	before, _ := r.State("room")

	r.Apply("room", models.ChangeValue{PlayerID: 4, Value: 1})
	r.Apply("room", models.ChangeName{PlayerID: 4, Name: "ghost"})
	r.Apply("room", models.Pong{PlayerID: 0})

	after, _ := r.State("room")
	assert.Equal(t, before, after)
}

func TestApplyCreatesMissingRoom(t *testing.T) {
	r := newTestRegistry()
	st := r.Apply("new", models.RevealNumbers{Value: true})
	assert.True(t, st.AllRevealed)
	assert.Empty(t, st.Players)
	assert.Equal(t, []string{"new"}, r.Rooms())
}

func TestRevealResetLaw(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.Join("room")
	}
	r.Apply("room", models.ChangeValue{PlayerID: 0, Value: 3})
	r.Apply("room", models.ChangeValue{PlayerID: 2, Value: 8})

	// Hiding while already hidden keeps values.
	st := r.Apply("room", models.RevealNumbers{Value: false})
	assert.Equal(t, u8(3), st.Players[0].Value)

	r.Apply("room", models.RevealNumbers{Value: true})
	st = r.Apply("room", models.RevealNumbers{Value: false})
	assert.False(t, st.AllRevealed)
	assert.Equal(t, u8(0), st.Players[0].Value)
	assert.Nil(t, st.Players[1].Value)
	assert.Equal(t, u8(0), st.Players[2].Value)

	r.Apply("room", models.ChangeValue{PlayerID: 1, Value: 4})
	st = r.Apply("room", models.RevealNumbers{Value: false})
	assert.Equal(t, u8(4), st.Players[1].Value)
}

func TestScenarioAlpha(t *testing.T) {
	r := newTestRegistry()
	r.Join("Alpha")
	r.Join("Alpha")
	r.Join("Alpha")
	r.Apply("Alpha", models.ChangeValue{PlayerID: 1, Value: 5})
	r.Apply("Alpha", models.RevealNumbers{Value: true})

	st, ok := r.State("Alpha")
	require.True(t, ok)
	assert.Equal(t, models.RoomState{
		Players: []models.PlayerState{
			{PlayerID: 0, PlayerName: models.DefaultPlayerName},
			{PlayerID: 1, PlayerName: models.DefaultPlayerName, Value: u8(5)},
			{PlayerID: 2, PlayerName: models.DefaultPlayerName},
		},
		AllRevealed: true,
	}, st)
}

func TestSnapshotsAreDetached(t *testing.T) {
	r := newTestRegistry()
	r.Join("room")
	r.Apply("room", models.ChangeValue{PlayerID: 0, Value: 2})

	st, _ := r.State("room")
	*st.Players[0].Value = 99
	st.Players[0].PlayerName = "mutated"

	fresh, _ := r.State("room")
	assert.Equal(t, u8(2), fresh.Players[0].Value)
	assert.Equal(t, models.DefaultPlayerName, fresh.Players[0].PlayerName)
}

func TestPanicInsideOperationIsContained(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewRegistry(nil, logger) // no generator: CreateRoom("") panics inside the lock

	var id string
	assert.NotPanics(t, func() {
		id = r.CreateRoom("")
	})
	assert.Empty(t, id)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "room operation aborted", hook.LastEntry().Message)

	// The lock was released and the registry still works.
	assert.Equal(t, 0, r.Join("room"))
	assert.Equal(t, "named", r.CreateRoom("named"))
}

func TestConcurrentJoinsKeepSeatsUnique(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Join("busy")
		}()
	}
	wg.Wait()

	st, _ := r.State("busy")
	seen := make(map[int]bool)
	for _, id := range seats(st) {
		require.False(t, seen[id], "seat %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, st.Players, 20)
}

func TestJoinAfterPromotionNeverReusesWaitingSeat(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 8; i++ {
		r.Join("Delta")
	}
	st, _ := r.State("Delta")
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 16, 17}, seats(st))

	st, _ = r.Leave("Delta", 3)
	require.Equal(t, models.NotifyChange{CurrentID: 16, NewID: 3}, st.NotifyChange)
	require.Equal(t, []int{0, 1, 2, 4, 5, 17, 3}, seats(st))

	// 10 + 7 would be 17, which is still seated.
	assert.Equal(t, 18, r.Join("Delta"))

	// 18 moves into 17; with nobody waiting, ids still keep climbing.
	st, _ = r.Leave("Delta", 17)
	require.Equal(t, models.NotifyChange{CurrentID: 18, NewID: 17}, st.NotifyChange)
	assert.Equal(t, 19, r.Join("Delta"))

	st, _ = r.State("Delta")
	seen := make(map[int]bool)
	for _, id := range seats(st) {
		require.False(t, seen[id], "seat %d held twice", id)
		seen[id] = true
	}
}

func TestRecreatedRoomRestartsWaitingSeats(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 7; i++ {
		r.Join("Delta")
	}
	r.CreateRoom("Delta")
	for i := 0; i < 6; i++ {
		r.Join("Delta")
	}
	assert.Equal(t, 16, r.Join("Delta"))
}

// recordingPublisher keeps every published update in order.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []bus.Update
}

func (p *recordingPublisher) Publish(u bus.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingPublisher) last(room string) (models.RoomState, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var st models.RoomState
	n := 0
	for _, u := range p.updates {
		if u.Room == room {
			st = u.State
			n++
		}
	}
	return st, n
}

func TestChangesArePublished(t *testing.T) {
	r := newTestRegistry()
	pub := &recordingPublisher{}
	r.SetPublisher(pub)

	r.Join("Alpha")
	r.Join("Alpha")
	r.Apply("Alpha", models.ChangeValue{PlayerID: 1, Value: 4})

	last, n := pub.last("Alpha")
	assert.Equal(t, 3, n)
	require.Len(t, last.Players, 2)
	assert.Equal(t, u8(4), last.Players[1].Value)

	// Unknown seats change nothing and publish nothing.
	r.Leave("Alpha", 9)
	_, n = pub.last("Alpha")
	assert.Equal(t, 3, n)

	r.Leave("Alpha", 1)
	last, n = pub.last("Alpha")
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{0}, seats(last))

	// The room disappears with its last participant; nobody is left to tell.
	r.Leave("Alpha", 0)
	_, n = pub.last("Alpha")
	assert.Equal(t, 4, n)
}

func TestConcurrentWritersPublishInApplyOrder(t *testing.T) {
	r := newTestRegistry()
	pub := &recordingPublisher{}
	r.SetPublisher(pub)
	r.Join("Alpha")
	r.Join("Alpha")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if w%2 == 0 {
					r.Apply("Alpha", models.ChangeValue{PlayerID: 1, Value: uint8(w*50 + i)})
				} else {
					r.Apply("Alpha", models.ChangeName{PlayerID: 0, Name: "writer"})
				}
			}
		}(w)
	}
	wg.Wait()

	final, ok := r.State("Alpha")
	require.True(t, ok)
	last, n := pub.last("Alpha")
	assert.Equal(t, 2+8*50, n)
	assert.Equal(t, final, last)
}
