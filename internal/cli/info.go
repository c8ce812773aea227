package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/hotkey"
	"github.com/keymagic/keymagic/internal/km2"
)

// KeyboardInfo describes one keyboard.
type KeyboardInfo struct {
	Path        string        `json:"path"`
	Version     string        `json:"version"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	FontFamily  string        `json:"font_family,omitempty"`
	Hotkey      string        `json:"hotkey,omitempty"`
	IconSize    int           `json:"icon_size,omitempty"`
	Options     OptionsInfo   `json:"options"`
	Strings     int           `json:"strings"`
	Rules       int           `json:"rules"`
	BaseKeys    []BaseKeyInfo `json:"base_keys,omitempty"`
}

// OptionsInfo mirrors km2.Options for output.
type OptionsInfo struct {
	TrackCaps              bool `json:"track_caps"`
	SmartBackspace         bool `json:"smart_backspace"`
	EatUnusedKeys          bool `json:"eat_unused_keys"`
	USLayoutBased          bool `json:"us_layout_based"`
	TreatCtrlAltAsRightAlt bool `json:"treat_ctrl_alt_as_right_alt"`
}

// BaseKeyInfo is one entry of the base key table.
type BaseKeyInfo struct {
	Keys   string `json:"keys"`
	Output string `json:"output"`
}

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
	BaseKeys bool
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info <keyboard>",
		Short: "Show keyboard metadata and options",
		Long: `Show the metadata, options and rule counts of a keyboard.

The keyboard is a .km2 file or a layout source (.kms, .yaml, .yml, .cue).
Bare names are looked up in the configured keyboards directory.

Examples:
  keymagic info myanmar3.km2
  keymagic info ./layouts/vietnamese.yaml --base-keys
  keymagic info myanmar3.km2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.BaseKeys, "base-keys", false, "list the base key table")

	return cmd
}

func runInfo(opts *InfoOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.Config().KeyboardPath(name)
	formatter.VerboseLog("Loading %s", path)

	kb, err := LoadKeyboard(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	info := describeKeyboard(kb.Path, kb.Layout, opts.BaseKeys)
	return formatter.Success(info)
}

func describeKeyboard(path string, l *km2.Layout, baseKeys bool) KeyboardInfo {
	md := l.Metadata()
	info := KeyboardInfo{
		Path:        path,
		Version:     l.Version.String(),
		Name:        md.Name,
		Description: md.Description,
		FontFamily:  md.FontFamily,
		Hotkey:      canonicalHotkey(md.Hotkey),
		IconSize:    len(md.Icon),
		Options:     OptionsInfo(l.Options),
		Strings:     len(l.Strings),
		Rules:       len(l.Rules),
	}
	if baseKeys {
		for _, bk := range l.BaseKeys() {
			names := make([]string, len(bk.Keys))
			for i, k := range bk.Keys {
				names[i] = k.String()
			}
			info.BaseKeys = append(info.BaseKeys, BaseKeyInfo{
				Keys:   strings.Join(names, "+"),
				Output: bk.Output,
			})
		}
	}
	return info
}

// canonicalHotkey normalizes the stored hotkey text. Text that does not
// parse is shown as stored.
func canonicalHotkey(text string) string {
	b, err := hotkey.Parse(text)
	if err != nil || b == nil {
		return text
	}
	return b.String()
}

// WriteText renders the info block.
func (i KeyboardInfo) WriteText(w io.Writer) {
	name := i.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  Path:        %s\n", i.Path)
	fmt.Fprintf(w, "  Version:     %s\n", i.Version)
	if i.Description != "" {
		fmt.Fprintf(w, "  Description: %s\n", i.Description)
	}
	if i.FontFamily != "" {
		fmt.Fprintf(w, "  Font:        %s\n", i.FontFamily)
	}
	if i.Hotkey != "" {
		fmt.Fprintf(w, "  Hotkey:      %s\n", i.Hotkey)
	}
	if i.IconSize > 0 {
		fmt.Fprintf(w, "  Icon:        %d bytes\n", i.IconSize)
	}
	fmt.Fprintf(w, "  Rules:       %d\n", i.Rules)
	fmt.Fprintf(w, "  Strings:     %d\n", i.Strings)
	fmt.Fprintf(w, "  Options:     %s\n", i.Options)

	if len(i.BaseKeys) > 0 {
		fmt.Fprintln(w, "\nBase keys:")
		for _, bk := range i.BaseKeys {
			fmt.Fprintf(w, "  %-24s %s\n", bk.Keys, bk.Output)
		}
	}
}

// String lists the options that are on.
func (o OptionsInfo) String() string {
	var on []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{o.TrackCaps, "track_caps"},
		{o.SmartBackspace, "smart_backspace"},
		{o.EatUnusedKeys, "eat_unused_keys"},
		{o.USLayoutBased, "us_layout_based"},
		{o.TreatCtrlAltAsRightAlt, "treat_ctrl_alt_as_right_alt"},
	} {
		if f.set {
			on = append(on, f.name)
		}
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ", ")
}
