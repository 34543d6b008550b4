package tracker

import (
	"context"
	"fmt"
	"slices"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
)

func (c *Controller) defaultGroup(n int) model.Group {
	return model.NewGroup(c.newID(), fmt.Sprintf("Project %d", n), model.NewTimer(c.newID()))
}

func (c *Controller) AddGroup() (model.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return model.Group{}, err
	}
	g := c.defaultGroup(len(c.ws.Groups) + 1)
	c.ws.Groups = append(c.ws.Groups, g)
	c.saveWorkspaceLocked()
	return g.Clone(), nil
}

func (c *Controller) AddTimer(groupID string) (model.Timer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return model.Timer{}, err
	}
	gi, ok := c.ws.FindGroup(groupID)
	if !ok {
		return model.Timer{}, model.NewValidationError("group", "project group not found")
	}
	t := model.NewTimer(c.newID())
	c.ws.Groups[gi].Timers = append(c.ws.Groups[gi].Timers, t)
	c.saveWorkspaceLocked()
	return t, nil
}

// RemoveGroup stops the group's running timer before removing it. The last
// group cannot be removed.
func (c *Controller) RemoveGroup(ctx context.Context, groupID string) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	c.mu.Lock()
	gi, ok := c.ws.FindGroup(groupID)
	switch {
	case !ok:
		c.mu.Unlock()
		return model.NewValidationError("group", "project group not found")
	case len(c.ws.Groups) == 1:
		c.mu.Unlock()
		return model.NewValidationError("group", "at least one project must remain")
	}
	c.mu.Unlock()

	if s, running := c.register.Get(); running && s.GroupID == groupID {
		if err := c.stop(ctx, s, c.nowMillis()); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gi, ok = c.ws.FindGroup(groupID); ok {
		c.ws.Groups = slices.Delete(c.ws.Groups, gi, gi+1)
		c.saveWorkspaceLocked()
	}
	return nil
}

// RemoveTimer stops the timer first when it is running. A group keeps at least
// one timer.
func (c *Controller) RemoveTimer(ctx context.Context, groupID, timerID string) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	c.mu.Lock()
	if _, _, err := c.lookupLocked(groupID, timerID); err != nil {
		c.mu.Unlock()
		return err
	}
	gi, _ := c.ws.FindGroup(groupID)
	if len(c.ws.Groups[gi].Timers) == 1 {
		c.mu.Unlock()
		return model.NewValidationError("timer", "a project needs at least one timer")
	}
	c.mu.Unlock()

	if s, running := c.register.Get(); running && s.TimerID == timerID {
		if err := c.stop(ctx, s, c.nowMillis()); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	gi, ti, ok := c.ws.FindTimer(timerID)
	if !ok {
		return nil
	}
	c.ws.Groups[gi].Timers = slices.Delete(c.ws.Groups[gi].Timers, ti, ti+1)
	c.saveWorkspaceLocked()
	return nil
}

// SelectProject sets a group's project. Changing the project clears the task
// of every timer in the group, so it is refused once any of them has a
// backend record.
func (c *Controller) SelectProject(groupID, projectID, projectName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	gi, ok := c.ws.FindGroup(groupID)
	if !ok {
		return model.NewValidationError("group", "project group not found")
	}
	g := &c.ws.Groups[gi]
	if g.ProjectID == projectID {
		g.ProjectName = projectName
		c.saveWorkspaceLocked()
		return nil
	}
	for _, t := range g.Timers {
		if c.phaseLocked(t.ID) != PhaseIdle {
			return model.NewValidationError("project", "stop the timer before changing the project")
		}
		if !t.IsDraft() {
			return model.NewValidationError("project", "this project already has tracked time; add a new project instead")
		}
	}
	g.ProjectID = projectID
	g.ProjectName = projectName
	for ti := range g.Timers {
		g.Timers[ti].TaskID = ""
		g.Timers[ti].TaskName = ""
	}
	c.saveWorkspaceLocked()
	return nil
}

// SelectTask sets a draft timer's task.
func (c *Controller) SelectTask(groupID, timerID, taskID, taskName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	if _, _, err := c.lookupLocked(groupID, timerID); err != nil {
		return err
	}
	t := c.timerLocked(timerID)
	if t.TaskID == taskID {
		t.TaskName = taskName
		c.saveWorkspaceLocked()
		return nil
	}
	if c.phaseLocked(timerID) != PhaseIdle {
		return model.NewValidationError("task", "stop the timer before changing the task")
	}
	if !t.IsDraft() {
		return model.NewValidationError("task", "this timer already has tracked time; add a new timer instead")
	}
	t.TaskID = taskID
	t.TaskName = taskName
	c.saveWorkspaceLocked()
	return nil
}

// UpdateNotes changes a timer's notes and, for confirmed timers, the backend
// record's notes. A backend failure restores the previous notes.
func (c *Controller) UpdateNotes(ctx context.Context, groupID, timerID, notes string) error {
	if err := c.beginSync(); err != nil {
		return err
	}
	defer c.endSync()

	c.mu.Lock()
	if _, _, err := c.lookupLocked(groupID, timerID); err != nil {
		c.mu.Unlock()
		return err
	}
	t := c.timerLocked(timerID)
	previous := t.Notes
	t.Notes = notes
	backendID, confirmed := t.BackendID()
	c.mu.Unlock()

	if confirmed {
		if _, err := c.backend.UpdateTimer(ctx, backendID, backend.UpdateTimerRequest{Notes: &notes}); err != nil {
			c.mu.Lock()
			if t := c.timerLocked(timerID); t != nil {
				t.Notes = previous
			}
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveWorkspaceLocked()
	return nil
}

func (c *Controller) SetCompact(compact bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	c.ws.Compact = compact
	c.saveWorkspaceLocked()
	return nil
}

// ApplyCatalog refreshes project and task display names by id.
func (c *Controller) ApplyCatalog(projects, tasks map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	for gi := range c.ws.Groups {
		g := &c.ws.Groups[gi]
		if name, ok := projects[g.ProjectID]; ok && g.ProjectID != "" && name != g.ProjectName {
			g.ProjectName = name
			changed = true
		}
		for ti := range g.Timers {
			t := &g.Timers[ti]
			if name, ok := tasks[t.TaskID]; ok && t.TaskID != "" && name != t.TaskName {
				t.TaskName = name
				changed = true
			}
		}
	}
	if changed {
		c.saveWorkspaceLocked()
	}
}
