package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PromptFloat asks for a number on out and reads the answer from in.
// Empty input returns def.
func PromptFloat(in io.Reader, out io.Writer, label string, def float64) (float64, error) {
	fmt.Fprintf(out, "%s [%g]: ", label, def)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("read %s: %w", label, err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", label, input)
	}
	return v, nil
}
