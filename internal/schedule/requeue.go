// ABOUTME: Shuffled requeue schedule
// ABOUTME: Each played track goes back into the latter part of the queue
package schedule

import (
	"context"
	"math/rand/v2"
)

// requeueSpread is how far from the end of the queue a played track may
// land, as a fraction of the queue length.
const requeueSpread = 0.6

// Requeue plays the front of a queue and moves it back to a random
// position near the end, so recent tracks do not repeat soon.
type Requeue struct {
	queue []Track
	rng   *rand.Rand
}

// NewRequeue builds a schedule over tracks. A nil rng uses a randomly
// seeded generator.
func NewRequeue(tracks []Track, rng *rand.Rand) *Requeue {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	queue := make([]Track, len(tracks))
	copy(queue, tracks)
	return &Requeue{queue: queue, rng: rng}
}

// Shuffle mixes the queue by requeueing a hundred times.
func (r *Requeue) Shuffle() {
	for i := 0; i < 100; i++ {
		r.shift()
	}
}

func (r *Requeue) shift() {
	if len(r.queue) < 2 {
		return
	}
	front := r.queue[0]
	rest := r.queue[1:]
	position := r.rng.Float64() * requeueSpread
	index := int(float64(len(rest)) * (1 - position))

	queue := make([]Track, 0, len(r.queue))
	queue = append(queue, rest[:index]...)
	queue = append(queue, front)
	queue = append(queue, rest[index:]...)
	r.queue = queue
}

// Next requeues the previous track and returns the new front.
func (r *Requeue) Next(ctx context.Context) (Track, error) {
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}
	if len(r.queue) == 0 {
		return Track{}, ErrEmpty
	}
	r.shift()
	return r.queue[0], nil
}

// Len returns the number of queued tracks.
func (r *Requeue) Len() int { return len(r.queue) }
