package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/multitimer/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.globalBindings() {
		plain = append(plain, fmt.Sprintf("- `%s` %s", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
	})
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: "j/k", Action: "move selection"},
		{Key: m.Keys.Toggle + "/space", Action: "start or stop the selected timer"},
		{Key: m.Keys.Stop, Action: "stop the running timer"},
		{Key: m.Keys.AddTimer, Action: "add a timer to the selected project"},
		{Key: m.Keys.AddGroup, Action: "add a project"},
		{Key: m.Keys.RemoveTimer, Action: "remove the selected timer"},
		{Key: m.Keys.RemoveGroup, Action: "remove the selected project"},
		{Key: m.Keys.Compact, Action: "toggle compact view"},
		{Key: m.Keys.History, Action: "show today's history of the selected timer"},
		{Key: m.Keys.Insights, Action: "show today's insights"},
		{Key: "esc", Action: "close the report pane"},
		{Key: "/", Action: "open command palette"},
		{Key: m.Keys.Help, Action: "toggle help"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, 4)
	for _, kb := range []KeyBinding{
		{Key: m.Keys.Toggle, Action: "toggle"},
		{Key: "/", Action: "command"},
		{Key: m.Keys.Help, Action: "help"},
		{Key: m.Keys.Quit, Action: "quit"},
	} {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
