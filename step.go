package polish

import "iter"

// Stepper runs a computation one step at a time. Each step yields a
// descriptor of type S; once the computation is finished, its result of type
// R is available from Result.
//
// The computation runs on a parked coroutine until it finishes. A caller
// which abandons a Stepper before Step reports false must call Stop or Result
// to release it.
//
// A Stepper is not safe for concurrent use.
type Stepper[S, R any] struct {
	next func() (S, bool)
	stop func()
	res  R
	err  error
	done bool
}

// newStepper creates a stepper over run. run must stop and return ErrStopped
// when yield returns false.
func newStepper[S, R any](run func(yield func(S) bool) (R, error)) *Stepper[S, R] {
	s := new(Stepper[S, R])
	s.next, s.stop = iter.Pull(func(yield func(S) bool) {
		s.res, s.err = run(yield)
		s.done = true
	})
	return s
}

// Step advances the computation by one step. If the computation is finished,
// the result is the zero S and false.
func (s *Stepper[S, R]) Step() (S, bool) {
	return s.next()
}

// All returns an iterator over the remaining steps. Breaking out of a loop
// over the iterator leaves the stepper where it was, so a later Step or All
// resumes after the last step seen.
func (s *Stepper[S, R]) All() iter.Seq[S] {
	return func(yield func(S) bool) {
		for {
			st, ok := s.next()
			if !ok || !yield(st) {
				return
			}
		}
	}
}

// Result runs the computation to completion and returns its result.
// If the stepper was stopped before finishing, the error is ErrStopped.
func (s *Stepper[S, R]) Result() (R, error) {
	for {
		if _, ok := s.next(); !ok {
			break
		}
	}
	s.stop()
	if !s.done {
		var zero R
		return zero, ErrStopped
	}
	return s.res, s.err
}

// Stop ends the computation early. Further calls to Step report no steps, and
// Result returns ErrStopped unless the computation had already finished.
func (s *Stepper[S, R]) Stop() {
	s.stop()
}
