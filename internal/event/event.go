// Package event carries viewer commands from input handling to whoever
// owns the actors.
package event

// Event is the closed set of viewer commands.
type Event interface {
	isEvent()
}

// ToggleAnimation starts or stops the procedural animation.
type ToggleAnimation struct{}

func (ToggleAnimation) isEvent() {}

// ToggleReverse flips the swing direction.
type ToggleReverse struct{}

func (ToggleReverse) isEvent() {}

// ResetTime rewinds the animation clock to zero.
type ResetTime struct{}

func (ResetTime) isEvent() {}

// LoadModel replaces the current model with the file at Path.
type LoadModel struct {
	Path string
}

func (LoadModel) isEvent() {}

// Screenshot writes the next frame to Path.
type Screenshot struct {
	Path string
}

func (Screenshot) isEvent() {}

// Orbit turns the camera by the given angles in degrees.
type Orbit struct {
	Yaw, Pitch float64
}

func (Orbit) isEvent() {}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers each published event to every subscriber in the order they
// subscribed. It is meant for a single frame-loop goroutine and does no
// locking.
type Bus struct {
	subs   []subscription
	nextID int
}

// Subscribe registers fn and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every current subscriber with ev. Subscribers added or
// removed by a handler take effect from the next Publish.
func (b *Bus) Publish(ev Event) {
	for _, s := range b.subs {
		s.fn(ev)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int { return len(b.subs) }
