package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/config"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the engine build and where its binaries come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(a.stdout, a.info())
			return err
		},
	}
}

func (a *app) info() string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("scanx"))
	b.WriteString("\n\n")
	line("version", scanx.Version)
	line("commit", scanx.CppCommit)
	line("mode", string(a.cfg.Mode))
	if a.cfg.Mode == config.ModeProduction {
		line("cdn", a.cfg.CDNHost)
	}
	if a.cfg.CacheDir != "" {
		line("cache", a.cfg.CacheDir)
	}
	b.WriteString("\n")

	locate, err := config.DefaultOverrides(a.cfg).LocateFile()
	for _, name := range []string{"reader", "writer", "full"} {
		fac, _ := factory(name)
		v := fac.Variant()
		where := "supplied by the caller"
		if err == nil && locate != nil {
			where = locate(v.File, "")
		}
		line(name, where)
		if v.SHA256 != "" {
			line("", "sha256 "+v.SHA256)
		}
	}
	return b.String()
}
