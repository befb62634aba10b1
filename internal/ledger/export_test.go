package ledger

// ForceDraws makes g draw the given numbers in order, cycling.
func ForceDraws(g *RandomNumbers, numbers ...int64) {
	g.draw = drawSequence(numbers...)
}
