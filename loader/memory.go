package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/tomasim/emu"
)

// LoadMemory reads and parses a memory image file.
func LoadMemory(path string) (*emu.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory file: %w", err)
	}
	defer func() { _ = f.Close() }()

	mem, err := ParseMemory(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return mem, nil
}

// ParseMemory parses a memory image of "address, value" lines. The image
// holds as many words as the largest address plus one; addresses not listed
// are zero. Blank lines and '#' comments are skipped.
func ParseMemory(r io.Reader) (*emu.Memory, error) {
	values := make(map[int64]float64)
	var maxAddr int64 = -1

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		addrText, valueText, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"address, value\", got %q", lineNo, text)
		}

		addr, err := strconv.ParseInt(strings.TrimSpace(addrText), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address: %w", lineNo, err)
		}
		if addr < 0 {
			return nil, fmt.Errorf("line %d: negative address %d", lineNo, addr)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(valueText), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", lineNo, err)
		}

		values[addr] = value
		if addr > maxAddr {
			maxAddr = addr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memory image: %w", err)
	}

	mem := emu.NewMemory(int(maxAddr + 1))
	for addr, v := range values {
		if err := mem.Write(addr, v); err != nil {
			return nil, err
		}
	}
	return mem, nil
}
