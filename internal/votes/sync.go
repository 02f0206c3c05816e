package votes

import "github.com/penne-app/penne/internal/models"

// Sync is the handle for the remote side of one tap. State and Counter hold
// the optimistic values the tap produced.
type Sync struct {
	State   models.VoteState
	Counter models.DishVoteCounter
	Delta   Delta

	done    chan struct{}
	err     error
	skipped bool
}

func newSync(state models.VoteState, counter models.DishVoteCounter, delta Delta) *Sync {
	return &Sync{State: state, Counter: counter, Delta: delta, done: make(chan struct{})}
}

func skippedSync() *Sync {
	s := &Sync{done: make(chan struct{}), skipped: true}
	close(s.done)
	return s
}

// Wait blocks until the remote writes settle and returns the first failure
func (s *Sync) Wait() error {
	<-s.done
	return s.err
}

// Done is closed once the remote writes settle
func (s *Sync) Done() <-chan struct{} {
	return s.done
}

// Skipped reports whether the tap was ignored because no user was signed in
func (s *Sync) Skipped() bool {
	return s.skipped
}
