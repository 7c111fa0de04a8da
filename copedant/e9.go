package copedant

// BuddyEmmonsE9 returns the classic Buddy Emmons E9 copedant.
//
// Open tuning (string 1 = far from player, string 10 = near):
//
//	1:F#4  2:D#4  3:G#4  4:E4  5:B3  6:G#3  7:F#3  8:E3  9:D3  10:B2
//
// Buddy's setup lacks the modern "Nashville" 1st string raise on RKL.
// RKR is mechanically a two-stop lever (soft stop str2 -1, hard stop -2);
// full engagement is modeled as the hard stop, so half engagement lands on
// the soft stop.
func BuddyEmmonsE9() Copedant {
	return Copedant{
		Name: "Buddy Emmons E9",

		//                     str1  str2  str3  str4  str5  str6  str7  str8  str9 str10
		OpenStrings: [NumStrings]float64{66, 63, 68, 64, 59, 56, 54, 52, 50, 47},

		Pedals: []ChangeDef{
			{Name: "A", Changes: []Change{
				{String: 4, Semitones: 2}, // str5: B3 -> C#4
				{String: 9, Semitones: 2}, // str10: B2 -> C#3
			}},
			{Name: "B", Changes: []Change{
				{String: 2, Semitones: 1}, // str3: G#4 -> A4
				{String: 5, Semitones: 1}, // str6: G#3 -> A3
			}},
			{Name: "C", Changes: []Change{
				{String: 3, Semitones: 2}, // str4: E4 -> F#4
				{String: 4, Semitones: 2}, // str5: B3 -> C#4
			}},
		},

		Levers: []ChangeDef{
			{Name: "LKL", Changes: []Change{
				{String: 3, Semitones: 1}, // str4: E4 -> F4
				{String: 7, Semitones: 1}, // str8: E3 -> F3
			}},
			{Name: "LKR", Changes: []Change{
				{String: 3, Semitones: -1}, // str4: E4 -> Eb4
				{String: 4, Semitones: -1}, // str5: B3 -> Bb3
				{String: 7, Semitones: -1}, // str8: E3 -> Eb3
			}},
			{Name: "LKV", Changes: []Change{
				{String: 4, Semitones: -1}, // str5: B3 -> Bb3
				{String: 9, Semitones: -1}, // str10: B2 -> Bb2
			}},
			{Name: "RKL", Changes: []Change{
				{String: 1, Semitones: 1},  // str2: D#4 -> E4
				{String: 5, Semitones: -2}, // str6: G#3 -> F#3
			}},
			{Name: "RKR", Changes: []Change{
				{String: 1, Semitones: -2}, // str2: D#4 -> C#4 (hard stop)
				{String: 8, Semitones: -1}, // str9: D3 -> C#3
			}},
		},
	}
}

// E9StringNames labels the ten strings of the E9 tuning for display.
var E9StringNames = [NumStrings]string{
	"1:F#4", "2:D#4", "3:G#4", "4:E4", "5:B3", "6:G#3", "7:F#3", "8:E3", "9:D3", "10:B2",
}
