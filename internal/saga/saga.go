// Package saga applies local changes ahead of a remote confirmation and undoes
// them if the confirmation fails.
package saga

import "errors"

var ErrFinished = errors.New("saga: transaction already finished")

// Step is one reversible local change.
type Step struct {
	Name   string
	Apply  func() error
	Revert func()
}

// Tx is not safe for concurrent use; callers hold their own lock around it.
type Tx struct {
	applied  []Step
	finished bool
}

func Begin() *Tx {
	return &Tx{}
}

// Apply runs the step. If it fails, every step applied so far is reverted and
// the transaction is finished.
func (t *Tx) Apply(step Step) error {
	if t.finished {
		return ErrFinished
	}
	if step.Apply != nil {
		if err := step.Apply(); err != nil {
			t.Rollback()
			return err
		}
	}
	t.applied = append(t.applied, step)
	return nil
}

// Commit merges the confirmed state. A failing confirm rolls back.
func (t *Tx) Commit(confirm func() error) error {
	if t.finished {
		return ErrFinished
	}
	if confirm != nil {
		if err := confirm(); err != nil {
			t.Rollback()
			return err
		}
	}
	t.finished = true
	t.applied = nil
	return nil
}

// Rollback reverts applied steps in reverse order.
func (t *Tx) Rollback() {
	if t.finished {
		return
	}
	for i := len(t.applied) - 1; i >= 0; i-- {
		if t.applied[i].Revert != nil {
			t.applied[i].Revert()
		}
	}
	t.applied = nil
	t.finished = true
}

func (t *Tx) Finished() bool {
	return t.finished
}

// Applied lists step names in application order.
func (t *Tx) Applied() []string {
	out := make([]string, len(t.applied))
	for i, s := range t.applied {
		out[i] = s.Name
	}
	return out
}
