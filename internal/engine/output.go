package engine

import (
	"strconv"
	"strings"

	"github.com/keymagic/keymagic/internal/km2"
)

// render evaluates a rule's output against the captures of its pattern. It
// returns the output text and the switch states the rule activates.
//
// NULL and unknown virtual keys contribute nothing, so a rule whose output
// is only NULL deletes the matched text.
func render(rhs []km2.Element, caps []capture, vars [][]rune) (string, []int) {
	var sb strings.Builder
	var states []int

	for i := 0; i < len(rhs); i++ {
		e := rhs[i]
		switch e.Op {
		case km2.OpString:
			sb.WriteString(e.Text)

		case km2.OpVariable:
			content := vars[e.Value-1]
			if i+1 < len(rhs) && rhs[i+1].Op == km2.OpModifier {
				if c, ok := captureAt(caps, rhs[i+1].Value); ok {
					if idx, ok := c.position(); ok && idx < len(content) {
						sb.WriteRune(content[idx])
					}
					i++
					continue
				}
			}
			sb.WriteString(string(content))

		case km2.OpReference:
			if c, ok := captureAt(caps, e.Value); ok {
				sb.WriteString(c.text)
			}

		case km2.OpSwitch:
			states = append(states, int(e.Value))
		}
	}
	return sb.String(), states
}

func captureAt(caps []capture, n uint16) (capture, bool) {
	if n == 0 || int(n) > len(caps) {
		return capture{}, false
	}
	return caps[n-1], true
}

// position is the index a Variable[$n] output selects. AnyOf captures carry
// it directly; other captures are read as a decimal number.
func (c capture) position() (int, bool) {
	if c.index >= 0 {
		return c.index, true
	}
	n, err := strconv.Atoi(c.text)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
