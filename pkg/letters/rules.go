package letters

import "math"

// A: fist with the thumb resting alongside.

func leftA(l Landmarks) bool {
	folded := l[IndexTip].Y > l[IndexMCP].Y &&
		l[MiddleTip].Y > l[MiddleMCP].Y &&
		l[RingTip].Y > l[RingMCP].Y &&
		l[PinkyTip].Y > l[PinkyMCP].Y
	return folded && l[ThumbTip].X < l[ThumbMCP].X
}

func rightA(l Landmarks) bool {
	folded := l[IndexTip].Y > l[IndexPIP].Y &&
		l[MiddleTip].Y > l[MiddlePIP].Y &&
		l[RingTip].Y > l[RingPIP].Y &&
		l[PinkyTip].Y > l[PinkyPIP].Y
	return folded && l[ThumbTip].X > l[ThumbIP].X
}

// B: flat hand, fingers up, thumb folded across the palm.

const thumbAlignment = 0.1

func rightB(l Landmarks) bool {
	if palmNormalZ(l) <= 0 {
		return false
	}
	extended := l[IndexTip].Y < l[IndexMCP].Y &&
		l[MiddleTip].Y < l[MiddleMCP].Y &&
		l[RingTip].Y < l[RingMCP].Y &&
		l[PinkyTip].Y < l[PinkyMCP].Y
	if !extended {
		return false
	}

	thumb, index := l[ThumbTip], l[IndexMCP]
	toIndex := (thumb.X-index.X)*(thumb.X-index.X) + (thumb.Y-index.Y)*(thumb.Y-index.Y)
	base := l[ThumbMCP]
	toBase := (thumb.X-base.X)*(thumb.X-base.X) + (thumb.Y-base.Y)*(thumb.Y-base.Y)
	if toIndex >= toBase {
		return false
	}

	wx, ix := l[Wrist].X, index.X
	var between bool
	if wx < ix {
		between = wx < thumb.X && thumb.X < ix
	} else {
		between = ix < thumb.X && thumb.X < wx
	}
	return between && math.Abs(thumb.Y-index.Y) < thumbAlignment
}

// C: curved fingers and thumb forming an arc.

func leftC(l Landmarks) bool {
	return shapeC(l.Mirror())
}

func shapeC(l Landmarks) bool {
	if palmNormalZ(l) < 0 {
		return false
	}
	wrist := l[Wrist]
	fingers := [4][2]int{{IndexTip, IndexMCP}, {MiddleTip, MiddleMCP}, {RingTip, RingMCP}, {PinkyTip, PinkyMCP}}

	curved := 0
	for _, f := range fingers {
		tip, mcp := l[f[0]], l[f[1]]
		if dist(tip, wrist) > dist(mcp, wrist)*0.9 && tip.Z > mcp.Z-0.05 {
			curved++
		}
	}
	if curved < 3 {
		return false
	}

	pw := palmWidth(l)
	thumbExtended := dist(l[ThumbTip], l[ThumbMCP]) > dist(l[ThumbIP], l[ThumbMCP])
	toIndex := dist(l[ThumbTip], l[IndexTip])
	toPinky := dist(l[ThumbTip], l[PinkyTip])
	separated := 0.6*pw < toIndex && toIndex < 1.8*pw &&
		0.8*pw < toPinky && toPinky < 2.0*pw
	if !thumbExtended || !separated {
		return false
	}

	for i := 0; i < len(fingers)-1; i++ {
		a := dist(l[fingers[i][0]], wrist)
		b := dist(l[fingers[i+1][0]], wrist)
		if math.Abs(a-b) > 0.08 {
			return false
		}
	}
	for _, f := range fingers {
		tip, mcp := l[f[0]], l[f[1]]
		if dist(tip, mcp) >= dist(mcp, wrist)*1.2 {
			return false
		}
		if dist(tip, wrist) <= dist(mcp, wrist)*0.8 {
			return false
		}
	}
	return true
}

// D: index up, remaining fingers curled onto the thumb.

func leftD(l Landmarks) bool {
	return shapeD(l.Mirror())
}

func shapeD(l Landmarks) bool {
	pw := palmWidth(l)
	contact := max(pw*0.4, 0.03)

	indexUp := l[IndexTip].Y < l[IndexMCP].Y-0.03
	indexStraight := angle(l[IndexMCP], l[IndexPIP], l[IndexTip]) > 150 &&
		angle(l[IndexMCP], l[IndexDIP], l[IndexTip]) > 140
	if !indexUp || !indexStraight {
		return false
	}

	curled := 0
	for _, f := range [3][3]int{{MiddleMCP, MiddlePIP, MiddleTip}, {RingMCP, RingPIP, RingTip}, {PinkyMCP, PinkyPIP, PinkyTip}} {
		mcp, pip, tip := l[f[0]], l[f[1]], l[f[2]]
		if angle(mcp, pip, tip) < 120 || dist(tip, mcp) < dist(pip, mcp)*0.95 {
			curled++
		}
	}
	if curled < 2 {
		return false
	}

	thumb := l[ThumbTip]
	touches := dist(thumb, l[MiddleTip]) < contact ||
		dist(thumb, l[RingTip]) < contact ||
		dist(thumb, l[PinkyTip]) < contact
	clearOfIndex := dist(thumb, l[IndexTip]) > max(pw*0.25, 0.03)
	apart := dist(l[IndexTip], l[MiddleTip]) > max(pw*0.3, 0.05)
	return touches && clearOfIndex && apart
}

// E: fingertips curled down over the thumb.

func leftE(l Landmarks) bool {
	wrist := l[Wrist]
	pw := palmWidth(l)

	digits := [4][3]int{
		{IndexTip, IndexPIP, IndexMCP},
		{MiddleTip, MiddlePIP, MiddleMCP},
		{RingTip, RingPIP, RingMCP},
		{PinkyTip, PinkyPIP, PinkyMCP},
	}
	curled := 0
	var tips [4]Point
	var avgX, avgY, tipReach, mcpReach float64
	for i, d := range digits {
		tip, pip, mcp := l[d[0]], l[d[1]], l[d[2]]
		inward := dist(tip, wrist) < dist(pip, wrist)+pw*0.1
		short := dist(tip, mcp) < dist(mcp, wrist)*0.8
		down := tip.Y >= pip.Y-pw*0.1
		if inward && short && down {
			curled++
		}
		tips[i] = tip
		avgX += tip.X / 4
		avgY += tip.Y / 4
		tipReach += dist(tip, wrist) / 4
		mcpReach += dist(mcp, wrist) / 4
	}
	if curled < 3 {
		return false
	}

	thumb := l[ThumbTip]
	near := dist(thumb, Point{X: avgX, Y: avgY}) < pw*0.6
	visible := thumb.X < avgX
	tucked := dist(thumb, wrist) < dist(l[ThumbMCP], wrist)*1.3
	if !near || !visible || !tucked {
		return false
	}

	var spread float64
	for i := 0; i < len(tips); i++ {
		for j := i + 1; j < len(tips); j++ {
			spread = max(spread, dist(tips[i], tips[j]))
		}
	}
	return spread < pw*0.8 && tipReach < mcpReach+pw*0.2
}

// F: thumb and index tips touch, the other three fingers up and spread.

func leftF(l Landmarks) bool {
	return shapeF(l.Mirror())
}

func shapeF(l Landmarks) bool {
	wrist := l[Wrist]
	pw := palmWidth(l)
	palmLength := dist(wrist, l[MiddleMCP])

	touching := dist(l[ThumbTip], l[IndexTip]) < pw*0.25
	bent := dist(l[IndexTip], l[IndexMCP]) < palmLength*0.8*0.85
	thumbNatural := dist(l[ThumbTip], l[ThumbMCP]) > dist(l[ThumbIP], l[ThumbMCP])*0.9
	if !touching || !bent || !thumbNatural {
		return false
	}

	straight := 0
	for _, f := range [3][3]int{{MiddleTip, MiddlePIP, MiddleMCP}, {RingTip, RingPIP, RingMCP}, {PinkyTip, PinkyPIP, PinkyMCP}} {
		tip, pip, mcp := l[f[0]], l[f[1]], l[f[2]]
		up := tip.Y < mcp.Y-pw*0.2
		long := dist(tip, mcp) > palmLength*0.7
		open := dist(tip, pip) > dist(pip, mcp)*0.6
		if up && long && open {
			straight++
		}
	}
	if straight < 2 {
		return false
	}

	lo, hi := pw*0.15, pw*0.5
	mr := dist(l[MiddleTip], l[RingTip])
	rp := dist(l[RingTip], l[PinkyTip])
	if mr <= lo || mr >= hi || rp <= lo || rp >= hi {
		return false
	}

	separate := dist(l[IndexTip], l[MiddleTip]) > pw*0.3
	lowered := l[IndexTip].Y > l[MiddleTip].Y-pw*0.1
	return separate && lowered && palmNormalZ(l) > -0.3
}
