package busdata

import "fmt"

// Line is one branch of the network, described by its series impedance.
type Line struct {
	From int     `json:"From"`
	To   int     `json:"To"`
	R    float64 `json:"R"`
	X    float64 `json:"X"`
}

// AdmittanceFromLines builds the G and B matrix rows for an n-bus network
// from branch impedance data. Each branch contributes its series admittance
// to the diagonal of both terminal buses and its negation to the
// off-diagonal pair, so every row sums to zero.
func AdmittanceFromLines(n int, lines []Line) ([][]float64, [][]float64, error) {
	g := zeros(n)
	b := zeros(n)

	for _, l := range lines {
		if l.From < 0 || l.From >= n || l.To < 0 || l.To >= n {
			return nil, nil, &DataFormatError{
				Msg: fmt.Sprintf("line %d-%d references a bus outside 0..%d", l.From, l.To, n-1),
			}
		}
		if l.From == l.To {
			return nil, nil, &DataFormatError{
				Msg: fmt.Sprintf("line %d-%d connects a bus to itself", l.From, l.To),
			}
		}
		zSq := l.R*l.R + l.X*l.X
		if zSq == 0 {
			return nil, nil, &DataFormatError{
				Msg: fmt.Sprintf("line %d-%d has zero impedance", l.From, l.To),
			}
		}
		gij := l.R / zSq
		bij := -l.X / zSq

		g[l.From][l.From] += gij
		g[l.To][l.To] += gij
		g[l.From][l.To] -= gij
		g[l.To][l.From] -= gij

		b[l.From][l.From] += bij
		b[l.To][l.To] += bij
		b[l.From][l.To] -= bij
		b[l.To][l.From] -= bij
	}

	return g, b, nil
}

func zeros(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
