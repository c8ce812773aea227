package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/vk"
)

var namedKeys = map[tea.KeyType]vk.Key{
	tea.KeyBackspace: vk.Back,
	tea.KeyEnter:     vk.Return,
	tea.KeyTab:       vk.Tab,
	tea.KeyEsc:       vk.Escape,
	tea.KeyDelete:    vk.Delete,
	tea.KeyPgUp:      vk.Prior,
	tea.KeyPgDown:    vk.Next,
	tea.KeyF1:        vk.F1,
	tea.KeyF2:        vk.F2,
	tea.KeyF3:        vk.F3,
	tea.KeyF4:        vk.F4,
	tea.KeyF5:        vk.F5,
	tea.KeyF6:        vk.F6,
	tea.KeyF7:        vk.F7,
	tea.KeyF8:        vk.F8,
	tea.KeyF9:        vk.F9,
	tea.KeyF10:       vk.F10,
	tea.KeyF11:       vk.F11,
	tea.KeyF12:       vk.F12,
}

// keyEvents translates a terminal key into engine events. Terminals report
// text rather than key positions, so typed characters are mapped back to a
// US keyboard. A paste yields one event per rune.
func keyEvents(msg tea.KeyMsg) []engine.KeyEvent {
	switch msg.Type {
	case tea.KeyRunes:
		evs := make([]engine.KeyEvent, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			ev := keyscript.Char(r)
			if msg.Alt {
				ev.Modifiers.Alt = true
				ev.Char = 0
			}
			evs = append(evs, ev)
		}
		return evs
	case tea.KeySpace:
		return []engine.KeyEvent{keyscript.Char(' ')}
	}

	if k, ok := namedKeys[msg.Type]; ok {
		return []engine.KeyEvent{{Key: k, Modifiers: engine.Modifiers{Alt: msg.Alt}}}
	}
	if msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ {
		return []engine.KeyEvent{{
			Key:       vk.KeyA + vk.Key(msg.Type-tea.KeyCtrlA),
			Modifiers: engine.Modifiers{Ctrl: true, Alt: msg.Alt},
		}}
	}
	return nil
}
