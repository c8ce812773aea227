package session

import (
	"fmt"
	"slices"
	"strings"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/vk"
)

// CommitPolicy decides, after each processed key, whether the composing
// text should be handed to the application as final text. When it returns
// true the session reports the text in Result.CommitText and resets.
type CommitPolicy func(ev engine.KeyEvent, out engine.Output) bool

// DefaultCommitPolicy commits on Space, Return, Tab and Escape.
var DefaultCommitPolicy = CommitOnKeys(vk.Space, vk.Return, vk.Tab, vk.Escape)

// NeverCommit leaves committing entirely to the host.
func NeverCommit(engine.KeyEvent, engine.Output) bool { return false }

// CommitOnKeys builds a policy that commits when
//   - the engine did not consume the key and there is composing text,
//   - Space was pressed (if listed) and the text now ends with a space,
//   - any other listed key was pressed.
func CommitOnKeys(keys ...vk.Key) CommitPolicy {
	keys = slices.Clone(keys)
	return func(ev engine.KeyEvent, out engine.Output) bool {
		if !out.Consumed && out.Composition != "" {
			return true
		}
		if !slices.Contains(keys, ev.Key) {
			return false
		}
		if ev.Key == vk.Space {
			return strings.HasSuffix(out.Composition, " ")
		}
		return true
	}
}

var commitKeyNames = map[string]vk.Key{
	"space":  vk.Space,
	"return": vk.Return,
	"enter":  vk.Return,
	"tab":    vk.Tab,
	"escape": vk.Escape,
	"esc":    vk.Escape,
}

// PolicyFromNames builds a CommitOnKeys policy from key names as written in
// configuration files: space, return, tab and escape. No names means
// NeverCommit.
func PolicyFromNames(names []string) (CommitPolicy, error) {
	if len(names) == 0 {
		return NeverCommit, nil
	}
	keys := make([]vk.Key, 0, len(names))
	for _, n := range names {
		k, ok := commitKeyNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown commit key %q", n)
		}
		keys = append(keys, k)
	}
	return CommitOnKeys(keys...), nil
}

// DefaultCommitKeys are the names behind DefaultCommitPolicy.
func DefaultCommitKeys() []string {
	return []string{"space", "return", "tab", "escape"}
}
