package notification

// Listener receives "bookings changed" signals for a furnace.
type Listener interface {
	BookingsChanged(furnaceID string)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(furnaceID string)

func (f ListenerFunc) BookingsChanged(furnaceID string) { f(furnaceID) }

// Fanout forwards every signal to each of its listeners in order.
type Fanout struct {
	listeners []Listener
}

// NewFanout drops nil listeners.
func NewFanout(listeners ...Listener) *Fanout {
	f := &Fanout{}
	for _, l := range listeners {
		if l != nil {
			f.listeners = append(f.listeners, l)
		}
	}
	return f
}

func (f *Fanout) BookingsChanged(furnaceID string) {
	for _, l := range f.listeners {
		l.BookingsChanged(furnaceID)
	}
}
