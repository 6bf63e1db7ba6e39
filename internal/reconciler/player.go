package reconciler

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// SimulatedPlayer advances its position with a clock at a configurable rate. A rate other than 1
// makes it drift.
type SimulatedPlayer struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	rate      float64
	playing   bool
	anchorSec float64
	anchorMs  int64
}

func NewSimulatedPlayer(clock clockwork.Clock, rate float64) *SimulatedPlayer {
	return &SimulatedPlayer{
		clock:    clock,
		rate:     rate,
		anchorMs: clock.Now().UnixMilli(),
	}
}

func (p *SimulatedPlayer) position(nowMs int64) float64 {
	if !p.playing {
		return p.anchorSec
	}

	return p.anchorSec + float64(nowMs-p.anchorMs)/1000*p.rate
}

func (p *SimulatedPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position(p.clock.Now().UnixMilli())
}

func (p *SimulatedPlayer) Seek(positionSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.anchorSec = positionSec
	p.anchorMs = p.clock.Now().UnixMilli()
}

func (p *SimulatedPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return
	}
	p.anchorMs = p.clock.Now().UnixMilli()
	p.playing = true
}

func (p *SimulatedPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	nowMs := p.clock.Now().UnixMilli()
	p.anchorSec = p.position(nowMs)
	p.anchorMs = nowMs
	p.playing = false
}

func (p *SimulatedPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playing
}
