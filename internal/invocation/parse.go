// SPDX-License-Identifier: MPL-2.0

package invocation

import (
	"strings"
)

const targetFlag = "--target"

// CompileToken is the build tool's own spelling of SubcommandCompile.
const CompileToken = "rustc"

// subcommandAliases maps every recognised spelling to its Subcommand.
var subcommandAliases = map[string]Subcommand{
	"build":   SubcommandBuild,
	"b":       SubcommandBuild,
	"check":   SubcommandCheck,
	"c":       SubcommandCheck,
	"test":    SubcommandTest,
	"t":       SubcommandTest,
	"run":     SubcommandRun,
	"r":       SubcommandRun,
	"rustc":   SubcommandCompile,
	"compile": SubcommandCompile,
	"doc":     SubcommandDoc,
	"d":       SubcommandDoc,
}

// globalValueFlags are build-tool options that take a separate value and may
// precede the subcommand, so their value is not mistaken for it.
var globalValueFlags = map[string]bool{
	"--color":  true,
	"--config": true,
	"-C":       true,
	"-Z":       true,
}

// Options supplies the defaults Parse cannot learn from argv.
type Options struct {
	// Host is the host triple, used when no target is requested.
	Host string
	// DefaultTarget is the configured target used when argv names none.
	DefaultTarget string
}

// Parse turns argv (without the program name) into an Invocation. It only
// understands the subcommand, the target flag and a leading +channel; every
// other token is forwarded verbatim.
func Parse(argv []string, opts Options) (*Invocation, error) {
	inv := &Invocation{
		SubcommandIndex: -1,
		Args:            make([]string, 0, len(argv)),
	}

	rest := argv
	if len(rest) > 0 && strings.HasPrefix(rest[0], "+") {
		inv.Channel = strings.TrimPrefix(rest[0], "+")
		if inv.Channel == "" {
			return nil, &ConfigError{Arg: rest[0], Reason: "toolchain channel name is empty"}
		}
		rest = rest[1:]
	}

	var target string
	targetSeen := false
	passthrough := false

	for i := 0; i < len(rest); i++ {
		arg := rest[i]

		if passthrough {
			inv.Args = append(inv.Args, arg)
			continue
		}
		if arg == "--" {
			passthrough = true
			inv.Args = append(inv.Args, arg)
			continue
		}

		if value, ok, err := targetValue(rest, &i); ok || err != nil {
			if err != nil {
				return nil, err
			}
			if targetSeen {
				return nil, &ConfigError{Arg: targetFlag, Reason: "may only be given once"}
			}
			targetSeen = true
			target = value
			continue
		}

		if inv.SubcommandIndex < 0 && globalValueFlags[arg] && i+1 < len(rest) {
			inv.Args = append(inv.Args, arg, rest[i+1])
			i++
			continue
		}

		if inv.SubcommandIndex < 0 && !strings.HasPrefix(arg, "-") {
			inv.SubcommandIndex = len(inv.Args)
			inv.SubcommandToken = arg
			inv.Subcommand = subcommandAliases[arg]
		}
		inv.Args = append(inv.Args, arg)
	}

	if targetSeen {
		inv.Target = target
		inv.TargetExplicit = true
	}
	inv.ApplyDefaults(opts)

	return inv, nil
}

// ApplyDefaults fills in the target when argv named none: the configured
// default target, else the host. It lets argv be checked before the
// configuration that supplies opts is loaded.
func (inv *Invocation) ApplyDefaults(opts Options) {
	if inv.TargetExplicit {
		return
	}
	if opts.DefaultTarget != "" {
		inv.Target = opts.DefaultTarget
		inv.TargetExplicit = true
		return
	}
	inv.Target = opts.Host
}

// targetValue recognises "--target VALUE" and "--target=VALUE" at args[*i],
// advancing *i past a separate value.
func targetValue(args []string, i *int) (value string, ok bool, err error) {
	arg := args[*i]

	if v, found := strings.CutPrefix(arg, targetFlag+"="); found {
		if v == "" {
			return "", true, &ConfigError{Arg: targetFlag, Reason: "requires a target triple"}
		}
		return v, true, nil
	}

	if arg != targetFlag {
		return "", false, nil
	}

	if *i+1 >= len(args) {
		return "", true, &ConfigError{Arg: targetFlag, Reason: "requires a target triple"}
	}
	next := args[*i+1]
	if next == "" || strings.HasPrefix(next, "-") {
		return "", true, &ConfigError{Arg: targetFlag, Reason: "requires a target triple, got " + quoteOrEmpty(next)}
	}
	*i++
	return next, true, nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "an empty value"
	}
	return "\"" + s + "\""
}
