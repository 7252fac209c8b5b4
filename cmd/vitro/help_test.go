package main

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/vitro/internal/ui"
)

func TestStyleHelp(t *testing.T) {
	in := strings.Join([]string{
		"Usage:",
		"  vitro <command>",
		"",
		"Records:",
		"  records     List, search and mutate records",
		"",
		"Flags:",
		"      --limit int   maximum number of records",
		"  -v, --verbose     debug logging on stderr",
	}, "\n")

	got := styleHelp(in)
	for _, want := range []string{
		ui.RenderAccent("Records:"),
		ui.RenderAccent("Flags:"),
		"  " + ui.Render(ui.Green, "records") + "  ",
		"--limit " + ui.RenderMuted("int"),
		"  -v, --verbose     debug logging on stderr",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("styled help missing %q:\n%s", want, got)
		}
	}
}
