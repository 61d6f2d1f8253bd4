package main

import (
	"fmt"
	"strconv"
	"strings"
)

// multiValueFlags lists flags that take several space separated values on
// the command line (`--samples 0 16`, `--gpus 0 1 2`). A count of -1 takes
// every following numeric argument.
var multiValueFlags = map[string]int{
	"samples": 2,
	"frames":  2,
	"gpus":    -1,
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// joinMultiValueFlags rewrites `--name a b` into `--name=a,b` for the flags
// in counts so the result can be parsed by the flag package.
func joinMultiValueFlags(args []string, counts map[string]int) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name := strings.TrimLeft(arg, "-")
		want, ok := counts[name]
		if !ok || !strings.HasPrefix(arg, "-") || strings.Contains(arg, "=") {
			out = append(out, arg)
			continue
		}
		var values []string
		for i+1 < len(args) && isNumber(args[i+1]) && (want < 0 || len(values) < want) {
			values = append(values, args[i+1])
			i++
		}
		if len(values) == 0 {
			out = append(out, arg)
			continue
		}
		out = append(out, "--"+name+"="+strings.Join(values, ","))
	}
	return out
}

// intPair is an inclusive integer range flag given as `first last`.
type intPair struct {
	First, Last int
	set         bool
}

func (p *intPair) String() string {
	if p == nil || !p.set {
		return ""
	}
	return fmt.Sprintf("%d %d", p.First, p.Last)
}

func (p *intPair) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return fmt.Errorf("expected two values, got %q", s)
	}
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return err
	}
	last, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}
	p.First, p.Last, p.set = first, last, true
	return nil
}

// intList collects integers from repeated or comma separated flags.
type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", part, err)
		}
		*l = append(*l, v)
	}
	return nil
}
