package sim

import "math/rand"

// BasicDemo is a scripted quarter-minute of playing that exercises every
// gesture type: chord grips with volume swells, the classic pedal A move,
// slides with pedal B, vibrato, knee levers, and an A+B pull-off run.
func BasicDemo() []Gesture {
	return []Gesture{
		Hold{MS: 200},

		// Bar at the 3rd fret, basic E-grip on strings 3-4-5.
		BarPlace{Fret: 3},
		PickStrings{Strings: []int{2, 3, 4}},
		VolumeSwell{From: 0, To: 0.9, MS: 400},
		Hold{MS: 500},

		// The classic country move: pedal A raises B to C#.
		PedalEngage{Index: 0, MS: 150},
		Hold{MS: 600},
		PedalRelease{Index: 0, MS: 200},
		Hold{MS: 300},

		// Wider grip for the B pedal, then slide up under it.
		PickStrings{Strings: []int{2, 3, 4, 5}},
		PedalEngage{Index: 1, MS: 150},
		Hold{MS: 400},
		BarSlide{To: 5, MS: 600},
		PedalRelease{Index: 1, MS: 200},
		Hold{MS: 400},

		BarVibrato{Width: 0.15, RateHz: 5.5, MS: 1200},

		// Swell down, move to the 8th fret with a lower grip.
		VolumeSwell{From: 0.9, To: 0.3, MS: 300},
		BarSlide{To: 8, MS: 800},
		PickStrings{Strings: []int{4, 5, 7}},
		VolumeSwell{From: 0.3, To: 0.9, MS: 300},
		Hold{MS: 500},

		// Knee levers: LKL raises the E strings to F, RKL raises F# to G.
		LeverEngage{Index: 0, MS: 200},
		Hold{MS: 600},
		LeverRelease{Index: 0, MS: 200},
		LeverEngage{Index: 3, MS: 200},
		Hold{MS: 500},
		LeverRelease{Index: 3, MS: 200},

		// Pedals A+B together on the melody strings.
		PickStrings{Strings: []int{3, 4, 5}},
		PedalEngage{Index: 0, MS: 100},
		PedalEngage{Index: 1, MS: 120},
		Hold{MS: 600},

		// Slide back down to 3 with both pedals, then let them up.
		BarSlide{To: 3, MS: 1000},
		PedalRelease{Index: 1, MS: 150},
		PedalRelease{Index: 0, MS: 180},

		BarVibrato{Width: 0.2, RateHz: 5, MS: 1500},
		VolumeSwell{From: 0.9, To: 0, MS: 800},

		MuteAll{},
		BarLift{},
		Hold{MS: 500},
	}
}

// commonGrips are string sets a player's picking hand actually falls into,
// indices 0-based from string 1.
var commonGrips = [][]int{
	{2, 3, 4},
	{2, 3, 4, 5},
	{3, 4, 5},
	{4, 5, 7},
	{0, 1, 2},
	{5, 7, 9},
}

// ImprovDemo generates an endless-feeling improvised passage: random grip
// changes, slides between nearby frets, pedal and lever moves, vibrato and
// swells, for roughly the requested number of phrases. Deterministic for a
// given seed.
func ImprovDemo(seed int64, phrases int) []Gesture {
	rng := rand.New(rand.NewSource(seed))
	fret := float32(3)

	gestures := []Gesture{
		Hold{MS: 200},
		BarPlace{Fret: fret},
		PickStrings{Strings: commonGrips[0]},
		VolumeSwell{From: 0, To: 0.85, MS: 400},
	}

	for i := 0; i < phrases; i++ {
		switch rng.Intn(6) {
		case 0:
			fret = float32(1 + rng.Intn(10))
			gestures = append(gestures, BarSlide{To: fret, MS: 300 + rng.Intn(700)})
		case 1:
			gestures = append(gestures,
				PickStrings{Strings: commonGrips[rng.Intn(len(commonGrips))]},
				Hold{MS: 200 + rng.Intn(500)})
		case 2:
			p := rng.Intn(3)
			gestures = append(gestures,
				PedalEngage{Index: p, MS: 100 + rng.Intn(150)},
				Hold{MS: 300 + rng.Intn(600)},
				PedalRelease{Index: p, MS: 120 + rng.Intn(180)})
		case 3:
			l := rng.Intn(5)
			gestures = append(gestures,
				LeverEngage{Index: l, MS: 150 + rng.Intn(150)},
				Hold{MS: 300 + rng.Intn(500)},
				LeverRelease{Index: l, MS: 150 + rng.Intn(150)})
		case 4:
			gestures = append(gestures, BarVibrato{
				Width:  0.1 + rng.Float32()*0.15,
				RateHz: 4.5 + rng.Float32()*2,
				MS:     600 + rng.Intn(900),
			})
		case 5:
			lo := 0.3 + rng.Float32()*0.3
			gestures = append(gestures,
				VolumeSwell{From: 0.85, To: lo, MS: 200 + rng.Intn(300)},
				VolumeSwell{From: lo, To: 0.85, MS: 200 + rng.Intn(300)})
		}
	}

	gestures = append(gestures,
		VolumeSwell{From: 0.85, To: 0, MS: 600},
		MuteAll{},
		BarLift{},
		Hold{MS: 300},
	)
	return gestures
}
