package main

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// flight produces CanSat packets in the default field layout. Values are
// sent as scaled integers, e.g. altitude in decimetres.
type flight struct {
	team    int
	rng     *rand.Rand
	start   time.Time
	packets int
	alt     float64 // metres
	vel     float64 // m/s, positive up
	state   string
}

const (
	stateWait    = "LAUNCH_WAIT"
	stateAscent  = "ASCENT"
	stateDescent = "DESCENT"
	stateLanded  = "LANDED"

	apogee      = 700.0
	ascentRate  = 40.0
	descentRate = -12.0
)

func newFlight(team int, seed int64, start time.Time) *flight {
	return &flight{team: team, rng: rand.New(rand.NewSource(seed)), start: start, state: stateWait}
}

// advance moves the flight forward by dt and updates the phase.
func (f *flight) advance(dt time.Duration) {
	s := dt.Seconds()
	switch f.state {
	case stateWait:
		if f.packets >= 5 {
			f.state, f.vel = stateAscent, ascentRate
		}
	case stateAscent:
		f.alt += f.vel * s
		if f.alt >= apogee {
			f.alt, f.state, f.vel = apogee, stateDescent, descentRate
		}
	case stateDescent:
		f.alt += f.vel * s
		if f.alt <= 0 {
			f.alt, f.state, f.vel = 0, stateLanded, 0
		}
	}
}

// line renders the next packet at time now.
func (f *flight) line(now time.Time) string {
	f.packets++
	elapsed := now.Sub(f.start)
	pressure := 101325 * math.Pow(1-2.25577e-5*f.alt, 5.25588)
	jitter := func(scale float64) float64 { return (f.rng.Float64() - 0.5) * scale }

	fields := []string{
		fmt.Sprint(f.team),
		fmt.Sprint(elapsed.Milliseconds()),
		fmt.Sprint(f.packets),
		fmt.Sprint(int(math.Round(f.alt * 10))),
		fmt.Sprint(int(math.Round(pressure))),
		fmt.Sprint(int(math.Round((21.5 - f.alt*0.0065 + jitter(0.2)) * 10))),
		fmt.Sprint(int(math.Round((8.4 - elapsed.Hours()*0.5 + jitter(0.02)) * 100))),
		now.UTC().Format("150405"),
		fmt.Sprint(int(math.Round((34.72 + jitter(1e-4)) * 1e5))),
		fmt.Sprint(int(math.Round((-86.64 + jitter(1e-4)) * 1e5))),
		fmt.Sprint(int(math.Round((f.alt + jitter(3)) * 10))),
		fmt.Sprint(6 + f.rng.Intn(5)),
		fmt.Sprint(int(math.Round(jitter(10) * 10))),
		fmt.Sprint(int(math.Round(jitter(10) * 10))),
		fmt.Sprint(f.spin()),
		f.state,
		fmt.Sprint(int(math.Round(f.rng.Float64() * 3600))),
	}
	return strings.Join(fields, ",")
}

func (f *flight) spin() int {
	if f.state != stateDescent {
		return 0
	}
	return 1200 + f.rng.Intn(200)
}
