package tracker

type EventType string

const (
	EventStarted         EventType = "started"
	EventStopped         EventType = "stopped"
	EventRolledBack      EventType = "rolled_back"
	EventIntervalAdded   EventType = "interval_added"
	EventIntervalEdited  EventType = "interval_edited"
	EventIntervalRemoved EventType = "interval_removed"
)

type Event struct {
	Type       EventType
	TimerID    string
	IntervalID string
	At         int64
	Err        error
}

// Subscribe returns a channel of controller events. Slow subscribers miss
// events rather than block the controller.
func (c *Controller) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Controller) emit(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Debug("event dropped", "type", ev.Type, "timer", ev.TimerID)
		}
	}
}
