// Package flagx lets several components parse their own command-line flags
// from the same os.Args without tripping over each other's flags.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Set names the flags one component owns. Value flags take an argument,
// either as "-name value" or "-name=value". Bool flags never consume the
// following argument. Names are given without dashes; "-name" and "--name"
// both match.
type Set struct {
	Values []string
	Bools  []string
}

// Filter returns the arguments of args that belong to s, in their original
// order. Parsing stops at a bare "--".
func (s Set) Filter(args []string) []string {
	kinds := make(map[string]bool, len(s.Values)+len(s.Bools))
	for _, n := range s.Values {
		kinds[n] = true
	}
	for _, n := range s.Bools {
		kinds[n] = false
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name, hasValue := flagName(arg)
		takesValue, ok := kinds[name]
		if !ok {
			continue
		}
		out = append(out, arg)
		if takesValue && !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// flagName strips the dashes and any "=value" from arg. Non-flag arguments
// yield an empty name.
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false
	}
	name := strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true
	}
	return name, false
}

// ConfigFile returns the JSON config path given via -c or -config in args,
// or "" when neither is present. The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(Set{Values: []string{"c", "config"}}.Filter(args))

	return path
}
