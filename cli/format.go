package cli

import (
	"fmt"
	"strings"

	"modworks/process"
	"modworks/tabular"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

func addrString(addr process.ProcessMemoryAddress) string {
	if addr == 0 {
		return ""
	}
	return fmt.Sprintf("0x%x", uint64(addr))
}

func offsetsString(offsets []uint64) string {
	parts := make([]string, len(offsets))
	for i, off := range offsets {
		parts[i] = fmt.Sprintf("0x%x", off)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func failed(s string) string {
	if s == "-" {
		return s
	}
	return coloransi.Foreground(coloransi.Red, s)
}

func statusTable(color bool) *tabular.Table {
	lastErr := tabular.ColumnSpec{Header: "LAST ERROR"}
	if color {
		lastErr.FormatFunc = failed
	}

	return tabular.NewTable(
		tabular.ColumnSpec{Header: "CHEAT"},
		tabular.ColumnSpec{Header: "APPLIED"},
		tabular.ColumnSpec{Header: "FAILURES"},
		tabular.ColumnSpec{Header: "ADDRESS"},
		lastErr,
	)
}
