// Package proximity maps touch coordinates to keys.
//
// A touch rarely lands dead-center on the key the user meant. The Resolver
// picks a primary key (the key under the finger, or failing that the closest
// key within the layout's proximity radius) and collects the codes of every
// nearby key, ordered by distance, as alternates for the dictionary.
package proximity

import (
	"keyintent/internal/keyboard"
)

// MaxNearbyKeys bounds the alternates reported for one touch.
const MaxNearbyKeys = 12

// Layout is the read-only view of a keyboard the resolver needs.
type Layout interface {
	Keys() []keyboard.Key
	NearestKeys(x, y int) []int
}

// KeyHit is the result of resolving one point.
type KeyHit struct {
	// Primary is the index of the chosen key, or keyboard.NotAKey.
	Primary int

	// Nearby holds the codes of keys near the point, closest first. It
	// aliases the Scratch passed to ResolveInto and is valid until the next
	// call using that Scratch.
	Nearby []int

	// Distance is the squared distance from the point to the primary key's
	// center. Zero when there is no primary key.
	Distance int
}

// Scratch holds the working buffers of one resolution. A tracker owns one
// and reuses it for every sample.
type Scratch struct {
	distances [MaxNearbyKeys]int
	codes     [MaxNearbyKeys]int
}

func (s *Scratch) reset() {
	for i := range s.codes {
		s.codes[i] = keyboard.NotAKey
		s.distances[i] = maxInt
	}
}

// nearby returns the filled prefix of the code buffer.
func (s *Scratch) nearby() []int {
	n := 0
	for n < len(s.codes) && s.codes[n] != keyboard.NotAKey {
		n++
	}
	return s.codes[:n]
}

const maxInt = int(^uint(0) >> 1)

// Resolver resolves points against a layout. It is not safe for concurrent
// use; each input loop owns its own.
type Resolver struct {
	layout      Layout
	keys        []keyboard.Key
	thresholdSq int
	proximityOn bool
	scratch     Scratch
}

// NewResolver returns a resolver with proximity correction enabled and no
// layout.
func NewResolver() *Resolver {
	return &Resolver{proximityOn: true}
}

// SetLayout installs a layout and recomputes the proximity radius.
func (r *Resolver) SetLayout(l Layout) {
	r.layout = l
	r.keys = l.Keys()
	t := keyboard.ProximityThreshold(r.keys)
	r.thresholdSq = t * t
}

// Layout returns the installed layout, or nil.
func (r *Resolver) Layout() Layout { return r.layout }

// SetProximityCorrection toggles whether keys near, but not under, the point
// are considered.
func (r *Resolver) SetProximityCorrection(on bool) { r.proximityOn = on }

func (r *Resolver) ProximityCorrection() bool { return r.proximityOn }

// ThresholdSquared returns the squared proximity radius of the current layout.
func (r *Resolver) ThresholdSquared() int { return r.thresholdSq }

// KeyIndex returns the index of the key at the point without collecting
// alternates.
func (r *Resolver) KeyIndex(x, y int) int {
	return r.resolve(x, y, nil).Primary
}

// Resolve resolves the point using the resolver's own scratch buffers.
func (r *Resolver) Resolve(x, y int) KeyHit {
	return r.ResolveInto(x, y, &r.scratch)
}

// ResolveInto resolves the point using the caller's scratch buffers.
func (r *Resolver) ResolveInto(x, y int, s *Scratch) KeyHit {
	return r.resolve(x, y, s)
}

func (r *Resolver) resolve(x, y int, s *Scratch) KeyHit {
	if r.layout == nil {
		panic("proximity: resolve called before SetLayout")
	}
	if s != nil {
		s.reset()
	}

	primary := keyboard.NotAKey
	closest := keyboard.NotAKey
	closestDist := r.thresholdSq + 1

	for _, idx := range r.layout.NearestKeys(x, y) {
		if idx < 0 || idx >= len(r.keys) {
			continue
		}
		key := &r.keys[idx]
		inside := key.IsInside(x, y)
		if inside {
			primary = idx
		}

		dist := 0
		if r.proximityOn {
			dist = key.SquaredDistanceFrom(x, y)
		}
		if !((r.proximityOn && dist < r.thresholdSq) || inside) || key.Primary() <= keyboard.KeycodeSpace {
			continue
		}
		if dist < closestDist {
			closestDist = dist
			closest = idx
		}
		if s != nil {
			s.insert(dist, key.Codes)
		}
	}

	if primary == keyboard.NotAKey {
		primary = closest
	}
	hit := KeyHit{Primary: primary}
	if primary != keyboard.NotAKey {
		hit.Distance = r.keys[primary].SquaredDistanceFrom(x, y)
	}
	if s != nil {
		hit.Nearby = s.nearby()
	}
	return hit
}

// insert places codes at the first slot whose distance exceeds dist,
// shifting later entries right. Codes that do not fit are dropped.
func (s *Scratch) insert(dist int, codes []int) {
	for j := range s.distances {
		if s.distances[j] <= dist {
			continue
		}
		n := len(codes)
		if rest := len(s.distances) - j - n; rest > 0 {
			copy(s.distances[j+n:], s.distances[j:j+rest])
			copy(s.codes[j+n:], s.codes[j:j+rest])
		}
		end := min(j+n, len(s.codes))
		copy(s.codes[j:end], codes)
		for k := j; k < end; k++ {
			s.distances[k] = dist
		}
		return
	}
}
