package presence

import "math/rand/v2"

// NewCallsign returns a random callsign of the form "AB-CDE".
func NewCallsign() string {
	b := make([]byte, 0, 6)
	for i := range 5 {
		if i == 2 {
			b = append(b, '-')
		}
		b = append(b, byte('A'+rand.IntN(26)))
	}
	return string(b)
}
