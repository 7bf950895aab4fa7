package letters

// Rule recognises one letter. Either hand function may be nil when the letter
// has no rule for that hand.
type Rule struct {
	Letter string
	Left   func(Landmarks) bool
	Right  func(Landmarks) bool
}

// Match reports whether the hand forms the letter.
func (r Rule) Match(hand Hand, l Landmarks) bool {
	if !l.Valid() {
		return false
	}
	switch hand {
	case Left:
		return r.Left != nil && r.Left(l)
	case Right:
		return r.Right != nil && r.Right(l)
	}
	return false
}

// DefaultRules returns the built-in letters in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Letter: "A", Left: leftA, Right: rightA},
		{Letter: "B", Right: rightB},
		{Letter: "C", Left: leftC},
		{Letter: "D", Left: leftD, Right: shapeD},
		{Letter: "E", Left: leftE},
		{Letter: "F", Left: leftF, Right: shapeF},
	}
}

// Classifier maps a hand to a letter. The first matching rule wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier. With no rules it uses DefaultRules.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the recognised letter, or "" when nothing matches.
func (c *Classifier) Classify(hand Hand, l Landmarks) string {
	for _, r := range c.rules {
		if r.Match(hand, l) {
			return r.Letter
		}
	}
	return ""
}

// ClassifyAll returns the letter for the first detection that matches.
func (c *Classifier) ClassifyAll(dets []Detection) string {
	for _, d := range dets {
		if letter := c.Classify(d.Hand, d.Landmarks); letter != "" {
			return letter
		}
	}
	return ""
}

// Letters lists the letters the classifier can recognise.
func (c *Classifier) Letters() []string {
	out := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Letter)
	}
	return out
}
