// Package hexdump renders process memory for inspection, marking the bytes a
// cheat writes and the words that point into mapped memory.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"modworks/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options defines options for customizing the hexdump output
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartOffset is the address of data[0]
	StartOffset uint64

	// Highlight marks [HighlightStart, HighlightStart+HighlightLen) as the cheat's bytes
	HighlightStart uint64
	HighlightLen   int

	// Color enables ANSI colors
	Color bool

	// MemoryMap, when set, annotates each line with the aligned words that are valid pointers
	MemoryMap []memory_map.MemoryMapItem
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}

	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := offset + options.BytesPerLine
		if end > len(data) {
			end = len(data)
		}
		formatLine(writer, data[offset:end], options.StartOffset+uint64(offset), options)
	}
}

func formatLine(writer io.Writer, data []byte, addr uint64, options Options) {
	fmt.Fprint(writer, paint(options, coloransi.Cyan, fmt.Sprintf("%016x", addr)), "  ")

	half := options.BytesPerLine / 2
	for i := 0; i < options.BytesPerLine; i++ {
		if i == half && half > 0 {
			fmt.Fprint(writer, " ")
		}
		if i >= len(data) {
			fmt.Fprint(writer, "   ")
			continue
		}
		fmt.Fprint(writer, byteHex(options, addr+uint64(i), data[i]), " ")
	}

	fmt.Fprint(writer, "|")
	for i, b := range data {
		c := "."
		if b >= 0x20 && b < 0x7f {
			c = string(rune(b))
		}
		if highlighted(options, addr+uint64(i)) {
			c = paint(options, coloransi.Yellow, c)
		}
		fmt.Fprint(writer, c)
	}
	fmt.Fprint(writer, "|")

	if ptrs := pointers(data, addr, options.MemoryMap); len(ptrs) > 0 {
		fmt.Fprint(writer, " ", paint(options, coloransi.Green, strings.Join(ptrs, " ")))
	}

	fmt.Fprintln(writer)
}

func byteHex(options Options, addr uint64, b byte) string {
	s := fmt.Sprintf("%02x", b)
	switch {
	case highlighted(options, addr):
		return paint(options, coloransi.Yellow, s)
	case b == 0:
		return paint(options, coloransi.BrightBlack, s)
	}
	return s
}

func highlighted(options Options, addr uint64) bool {
	return options.HighlightLen > 0 && addr >= options.HighlightStart && addr < options.HighlightStart+uint64(options.HighlightLen)
}

func paint(options Options, color coloransi.ColorCode, s string) string {
	if !options.Color {
		return s
	}
	return coloransi.Foreground(color, s)
}

// pointers returns the 8-byte aligned words of a line that land inside the memory map
func pointers(data []byte, addr uint64, mm []memory_map.MemoryMapItem) []string {
	if len(mm) == 0 {
		return nil
	}

	var result []string
	for i := 0; i+8 <= len(data); i++ {
		if (addr+uint64(i))%8 != 0 {
			continue
		}
		ptr := binary.LittleEndian.Uint64(data[i:])
		if ptr != 0 && memory_map.IsValidAddress2(ptr, mm) != nil {
			result = append(result, fmt.Sprintf("->0x%x", ptr))
		}
	}
	return result
}
