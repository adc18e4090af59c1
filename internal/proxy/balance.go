package proxy

import (
	"math/rand/v2"
	"sync/atomic"
)

// picker selects an upstream index for the next request.
type picker interface {
	pick() int
}

type roundRobinPicker struct {
	n     int
	state atomic.Uint64
}

func (p *roundRobinPicker) pick() int {
	return int((p.state.Add(1) - 1) % uint64(p.n))
}

type randomPicker struct {
	n int
}

func (p *randomPicker) pick() int {
	return rand.IntN(p.n)
}

func newPicker(selection string, n int) picker {
	if selection == "random" {
		return &randomPicker{n: n}
	}
	return &roundRobinPicker{n: n}
}
