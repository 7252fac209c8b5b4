package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vitro/internal/ui"
)

// helpFunc prints cobra's usage text, styled when the terminal takes color.
func helpFunc(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	if !ui.ShouldUseColor() {
		_ = cmd.Usage()
		return
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	_ = cmd.Usage()
	cmd.SetOut(out)
	fmt.Fprint(out, styleHelp(buf.String()))
}

// styleHelp colors section headers, command names and flag value types.
func styleHelp(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		switch {
		case l != "" && !strings.HasPrefix(l, " ") && strings.HasSuffix(strings.TrimSpace(l), ":"):
			lines[i] = ui.RenderAccent(strings.TrimSpace(l))
		case strings.HasPrefix(strings.TrimLeft(l, " "), "-"):
			lines[i] = styleFlagLine(l)
		case strings.HasPrefix(l, "  ") && !strings.HasPrefix(l, "   "):
			name, rest, ok := strings.Cut(l[2:], "  ")
			if ok && name != "" && !strings.Contains(name, " ") {
				lines[i] = "  " + ui.Render(ui.Green, name) + "  " + rest
			}
		}
	}
	return strings.Join(lines, "\n")
}

// styleFlagLine mutes the value type after a flag name, e.g. "--limit int".
func styleFlagLine(l string) string {
	fields := strings.Fields(l)
	for i, f := range fields {
		if !strings.HasPrefix(f, "--") || i+1 >= len(fields) {
			continue
		}
		switch typ := fields[i+1]; typ {
		case "string", "int", "duration", "stringArray":
			return strings.Replace(l, f+" "+typ, f+" "+ui.RenderMuted(typ), 1)
		}
		break
	}
	return l
}
