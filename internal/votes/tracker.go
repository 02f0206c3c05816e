package votes

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

// Policy decides what happens to the optimistic local state when a remote
// write fails
type Policy int

const (
	// PolicyKeep logs the failure and leaves local state as tapped. The next
	// LoadUserVotes/LoadCounters corrects it.
	PolicyKeep Policy = iota
	// PolicyRollback restores the pre-tap state if no later tap was made on
	// the same dish by the same user, compensates the remote writes that did succeed, and reports the error
	// through Sync.Wait.
	PolicyRollback
)

func (p Policy) String() string {
	if p == PolicyRollback {
		return "rollback"
	}
	return "keep"
}

// ParsePolicy maps "keep" and "rollback" to a Policy
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "keep":
		return PolicyKeep, true
	case "rollback":
		return PolicyRollback, true
	}
	return PolicyKeep, false
}

// Options configures a Tracker
type Options struct {
	Policy Policy
	// Serialize makes remote writes for the same (dish, user) run in tap
	// order. Without it concurrent taps may reach the store out of order.
	Serialize bool
	// Timeout bounds the remote writes of one tap. Zero means no timeout.
	Timeout time.Duration
	// IdleTTL drops the local state of users and dishes that have seen no
	// activity and have no pending writes for this long. Zero keeps
	// everything.
	IdleTTL time.Duration
}

type voteKey struct {
	dishID int64
	userID string
}

// activity tracks when a user or dish was last touched
type activity struct {
	seen    time.Time
	pending int
	loaded  bool
}

// Tracker holds the optimistic vote state for every (dish, user) pair and
// the counters of every dish it has seen. It is safe for concurrent use.
type Tracker struct {
	store remote.Store
	log   logger.Logger
	opts  Options

	mu        sync.Mutex
	states    map[voteKey]models.VoteState
	counters  map[int64]models.DishVoteCounter
	seqs      map[voteKey]uint64
	seq       uint64
	users     map[string]*activity
	dishes    map[int64]*activity
	lastSweep time.Time
	tails     map[voteKey]chan struct{}
	observers []func(models.DishVoteCounter)

	now     func() time.Time
	pending sync.WaitGroup
}

// NewTracker creates a tracker backed by store
func NewTracker(store remote.Store, log logger.Logger, opts Options) *Tracker {
	return &Tracker{
		store:    store,
		log:      log.With("component", "votes"),
		opts:     opts,
		states:   make(map[voteKey]models.VoteState),
		counters: make(map[int64]models.DishVoteCounter),
		seqs:     make(map[voteKey]uint64),
		users:    make(map[string]*activity),
		dishes:   make(map[int64]*activity),
		tails:    make(map[voteKey]chan struct{}),
		now:      time.Now,
	}
}

// OnChange registers fn to be called after every local counter change
func (t *Tracker) OnChange(fn func(models.DishVoteCounter)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// ToggleUpvote applies an upvote tap for userID on dishID. An empty userID is
// ignored and no store calls are made.
func (t *Tracker) ToggleUpvote(ctx context.Context, dishID int64, userID string) *Sync {
	return t.Toggle(ctx, dishID, userID, TapUpvote)
}

// ToggleDownvote applies a downvote tap for userID on dishID
func (t *Tracker) ToggleDownvote(ctx context.Context, dishID int64, userID string) *Sync {
	return t.Toggle(ctx, dishID, userID, TapDownvote)
}

// Toggle updates local state and counters immediately, then writes the
// counter RPCs and the ledger row in the background. The returned Sync
// completes when those writes settle.
func (t *Tracker) Toggle(ctx context.Context, dishID int64, userID string, tap Tap) *Sync {
	if userID == "" {
		return skippedSync()
	}

	k := voteKey{dishID: dishID, userID: userID}

	t.mu.Lock()
	now := t.now()
	t.userActivity(userID, now).pending++
	t.dishActivity(dishID, now).pending++
	t.sweep(now)
	prev := t.states[k]
	next, delta := Transition(prev, tap)
	counter := t.counters[dishID]
	counter.DishID = dishID
	counter = apply(counter, delta)
	t.setState(k, next)
	t.counters[dishID] = counter
	t.seq++
	seq := t.seq
	t.seqs[k] = seq

	s := newSync(next, counter, delta)
	var after chan struct{}
	if t.opts.Serialize {
		after = t.tails[k]
		t.tails[k] = s.done
	}
	observers := t.observers
	t.pending.Add(1)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(counter)
	}

	// The writes outlive the caller's request.
	bg := context.WithoutCancel(ctx)
	go t.write(bg, k, seq, prev, next, delta, after, s)
	return s
}

func (t *Tracker) userActivity(userID string, now time.Time) *activity {
	a := t.users[userID]
	if a == nil {
		a = &activity{}
		t.users[userID] = a
	}
	a.seen = now
	return a
}

func (t *Tracker) dishActivity(dishID int64, now time.Time) *activity {
	a := t.dishes[dishID]
	if a == nil {
		a = &activity{}
		t.dishes[dishID] = a
	}
	a.seen = now
	return a
}

// sweep drops users and dishes idle for longer than IdleTTL. A dropped user
// is loaded from the store again on their next tap. Callers hold t.mu.
func (t *Tracker) sweep(now time.Time) {
	ttl := t.opts.IdleTTL
	if ttl <= 0 || now.Sub(t.lastSweep) < ttl/2 {
		return
	}
	t.lastSweep = now
	cutoff := now.Add(-ttl)

	idle := make(map[string]bool)
	for id, a := range t.users {
		if a.pending == 0 && a.seen.Before(cutoff) {
			idle[id] = true
			delete(t.users, id)
		}
	}
	if len(idle) > 0 {
		for k := range t.states {
			if idle[k.userID] {
				delete(t.states, k)
			}
		}
		for k := range t.seqs {
			if idle[k.userID] {
				delete(t.seqs, k)
			}
		}
	}
	for id, a := range t.dishes {
		if a.pending == 0 && a.seen.Before(cutoff) {
			delete(t.dishes, id)
			delete(t.counters, id)
		}
	}
}

func (t *Tracker) setState(k voteKey, s models.VoteState) {
	if s == models.VoteNone {
		delete(t.states, k)
		return
	}
	t.states[k] = s
}

// write performs the remote side of one tap
func (t *Tracker) write(ctx context.Context, k voteKey, seq uint64, prev, next models.VoteState, delta Delta, after chan struct{}, s *Sync) {
	defer t.pending.Done()
	defer func() {
		t.mu.Lock()
		now := t.now()
		if a := t.users[k.userID]; a != nil {
			a.pending--
			a.seen = now
		}
		if a := t.dishes[k.dishID]; a != nil {
			a.pending--
			a.seen = now
		}
		if t.opts.Serialize && t.tails[k] == s.done {
			delete(t.tails, k)
		}
		t.mu.Unlock()
		close(s.done)
	}()

	if after != nil {
		<-after
	}

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		applied Delta
		ledger  bool
	)
	for _, part := range []struct {
		upvote bool
		d      int
	}{{true, delta.Upvote}, {false, delta.Downvote}} {
		part := part
		fn := remote.CounterRPC(part.upvote, part.d)
		if fn == "" {
			continue
		}
		g.Go(func() error {
			if err := t.store.Call(ctx, fn, remote.Record{"dish_id": k.dishID}); err != nil {
				t.log.Error("Counter update failed", "rpc", fn, "dish_id", k.dishID, "error", err)
				return err
			}
			mu.Lock()
			if part.upvote {
				applied.Upvote = part.d
			} else {
				applied.Downvote = part.d
			}
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		up, down := next.Flags()
		row := remote.UserVoteRecord(models.UserDishVote{DishID: k.dishID, UserID: k.userID, Upvoted: up, Downvoted: down})
		if err := t.store.Upsert(ctx, remote.RelDishRatings, row, []string{"dish_id", "user_id"}); err != nil {
			t.log.Error("Vote ledger upsert failed", "dish_id", k.dishID, "user_id", k.userID, "error", err)
			return err
		}
		mu.Lock()
		ledger = true
		mu.Unlock()
		return nil
	})

	err := g.Wait()
	if err == nil {
		return
	}
	s.err = err
	if t.opts.Policy == PolicyRollback {
		t.rollback(ctx, k, seq, prev, delta, applied, ledger)
	}
}

// rollback restores local state and undoes the remote writes that went
// through, unless a later tap has been made on the same key. Taps are told
// apart by sequence, not by the state they produced.
func (t *Tracker) rollback(ctx context.Context, k voteKey, seq uint64, prev models.VoteState, delta, applied Delta, ledger bool) {
	t.mu.Lock()
	if t.seqs[k] != seq {
		t.mu.Unlock()
		t.log.Warn("Vote rollback skipped, state changed since tap", "dish_id", k.dishID, "user_id", k.userID)
		return
	}
	t.setState(k, prev)
	counter := apply(t.counters[k.dishID], delta.Inverse())
	counter.DishID = k.dishID
	t.counters[k.dishID] = counter
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn(counter)
	}

	ctx = context.WithoutCancel(ctx)
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	undo := applied.Inverse()
	for _, part := range []struct {
		upvote bool
		d      int
	}{{true, undo.Upvote}, {false, undo.Downvote}} {
		if fn := remote.CounterRPC(part.upvote, part.d); fn != "" {
			if err := t.store.Call(ctx, fn, remote.Record{"dish_id": k.dishID}); err != nil {
				t.log.Error("Counter compensation failed", "rpc", fn, "dish_id", k.dishID, "error", err)
			}
		}
	}
	if ledger {
		up, down := prev.Flags()
		row := remote.UserVoteRecord(models.UserDishVote{DishID: k.dishID, UserID: k.userID, Upvoted: up, Downvoted: down})
		if err := t.store.Upsert(ctx, remote.RelDishRatings, row, []string{"dish_id", "user_id"}); err != nil {
			t.log.Error("Vote ledger compensation failed", "dish_id", k.dishID, "user_id", k.userID, "error", err)
		}
	}
	t.log.Info("Vote rolled back", "dish_id", k.dishID, "user_id", k.userID, "state", prev.String())
}

// LoadUserVotes fetches every ledger row for userID and replaces the user's
// local state with it. Dishes without a row are reset to none.
func (t *Tracker) LoadUserVotes(ctx context.Context, userID string) (map[int64]models.UserDishVote, error) {
	out := make(map[int64]models.UserDishVote)
	if userID == "" {
		return out, nil
	}

	rows, err := t.store.Select(ctx, remote.From(remote.RelDishRatings).Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		v := remote.UserVoteFromRecord(row)
		out[v.DishID] = v
	}

	t.mu.Lock()
	now := t.now()
	t.sweep(now)
	for k := range t.states {
		if k.userID == userID {
			delete(t.states, k)
		}
	}
	for id, v := range out {
		t.setState(voteKey{dishID: id, userID: userID}, v.State())
	}
	t.userActivity(userID, now).loaded = true
	t.mu.Unlock()

	return out, nil
}

// UserLoaded reports whether LoadUserVotes has run for userID. A loaded user
// counts as active.
func (t *Tracker) UserLoaded(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.users[userID]
	if a == nil || !a.loaded {
		return false
	}
	a.seen = t.now()
	return true
}

// LoadCounters fetches the menu rows of a hall and replaces the local
// counters with the stored values
func (t *Tracker) LoadCounters(ctx context.Context, hall string) ([]models.Dish, error) {
	rows, err := t.store.Select(ctx, remote.From(remote.RelMenus).Eq("dining_hall_name", hall))
	if err != nil {
		return nil, err
	}
	dishes := make([]models.Dish, 0, len(rows))
	for _, row := range rows {
		dishes = append(dishes, remote.DishFromRecord(row))
	}
	t.SetCounters(dishes)
	return dishes, nil
}

// SetCounters overwrites local counters from fetched dishes
func (t *Tracker) SetCounters(dishes []models.Dish) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.sweep(now)
	for _, d := range dishes {
		t.counters[d.ID] = d.Counter()
		t.dishActivity(d.ID, now)
	}
}

// State returns the local vote state for (dishID, userID)
func (t *Tracker) State(dishID int64, userID string) models.VoteState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[voteKey{dishID: dishID, userID: userID}]
}

// Counter returns the local counter for dishID and whether it is known. A
// known dish counts as active.
func (t *Tracker) Counter(dishID int64) (models.DishVoteCounter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[dishID]
	if ok {
		t.dishActivity(dishID, t.now())
	}
	return c, ok
}

// Drain waits for in-flight remote writes, or for ctx to end
func (t *Tracker) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
