// Package channel wraps the transport's inbox: the reader and dial
// goroutines send into it and Poll drains it on the caller's goroutine.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// SendUntil blocks like Send but gives up once done is closed.
	// It reports whether the value was delivered.
	SendUntil(v T, done <-chan struct{}) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

type pipe[T any] struct {
	ch chan T
}

// New returns a channel holding up to size values. A size of zero makes
// every send wait for the receiver, which keeps the reader goroutine in
// lockstep with Poll.
func New[T any](size int) Channel[T] {
	if size < 0 {
		size = 0
	}
	return &pipe[T]{ch: make(chan T, size)}
}

func (p *pipe[T]) Send(v T) {
	p.ch <- v
}

func (p *pipe[T]) SendUntil(v T, done <-chan struct{}) bool {
	select {
	case p.ch <- v:
		return true
	case <-done:
		return false
	}
}

func (p *pipe[T]) Receive() <-chan T {
	return p.ch
}

func (p *pipe[T]) Len() int {
	return len(p.ch)
}

func (p *pipe[T]) Close() {
	close(p.ch)
}
