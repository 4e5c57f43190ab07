// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type (
	// MarkdownMsg is the guide text of an Issue.
	MarkdownMsg string

	// HttpLink is a reference rendered under "See also".
	HttpLink string

	// Issue is the long-form troubleshooting guide for one failure Kind.
	Issue struct {
		kind     Kind
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Kind returns the failure class the guide covers.
func (i *Issue) Kind() Kind {
	return i.kind
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guide as terminal markdown. An empty stylePath lets
// glamour pick a style from the environment.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configIssue = &Issue{
		kind: KindConfig,
		mdMsg: `
# Configuration error (exit 120)

The command line, ` + "`Cross.toml`" + `, the ` + "`[package.metadata.cross]`" + ` table of
` + "`Cargo.toml`" + ` or a ` + "`CROSS_*`" + ` variable could not be used.

## Things you can try
- Show the configuration crossrun ended up with:
~~~
$ crossrun self config
~~~
- Check that ` + "`--target`" + ` has a value and ` + "`+channel`" + ` names a toolchain.
- Check quoting in ` + "`CROSS_CONTAINER_OPTS`" + ` and the ` + "`env.passthrough`" + ` lists.
- Unknown keys are reported as warnings, rerun with ` + "`CROSS_DEBUG=1`" + ` to see them.`,
	}

	unsupportedTargetIssue = &Issue{
		kind: KindUnsupportedTarget,
		mdMsg: `
# Unsupported target (exit 121)

The requested triple has no entry in the target registry, so no image or
environment is known for it. Nothing was started.

## Things you can try
- List the supported triples:
~~~
$ crossrun self targets
~~~
- Check the spelling of the triple passed to ` + "`--target`" + `.
- Set ` + "`build.default-target`" + ` in ` + "`Cross.toml`" + ` to a supported triple.`,
		docLinks: []HttpLink{"https://doc.rust-lang.org/rustc/platform-support.html"},
	}

	emulationUnavailableIssue = &Issue{
		kind: KindEmulationUnavailable,
		mdMsg: `
# Emulation unavailable (exit 122)

` + "`test`" + ` and ` + "`run`" + ` execute target binaries. For this target that needs a
QEMU user-mode handler registered with binfmt_misc on the host, and none
was found.

## Things you can try
- Register the handlers (Docker):
~~~
$ docker run --privileged --rm tonistiigi/binfmt --install all
~~~
- Or install your distribution's ` + "`qemu-user-static`" + ` package.
- ` + "`build`" + ` and ` + "`check`" + ` do not need emulation.`,
		docLinks: []HttpLink{"https://docs.kernel.org/admin-guide/binfmt-misc.html"},
	}

	executionBackendIssue = &Issue{
		kind: KindExecutionBackend,
		mdMsg: `
# Execution backend failure (exit 123)

The container engine or the native toolchain could not be started, or the
engine failed before the build tool ran (for example, exit 125 from the
Docker CLI).

## Things you can try
- Check the engine is installed and its daemon is reachable:
~~~
$ docker version
$ podman info
~~~
- Force an engine with ` + "`CROSS_CONTAINER_ENGINE`" + ` (docker, podman, nerdctl, docker-api).
- Check flags added through ` + "`CROSS_CONTAINER_OPTS`" + `.
- For native builds, check that rustup and cargo are on PATH.`,
	}

	interruptedIssue = &Issue{
		kind: KindInterrupted,
		mdMsg: `
# Interrupted (exit 130)

The run received SIGINT or SIGTERM. The signal was forwarded to the build
and any container crossrun started was removed.`,
	}

	internalIssue = &Issue{
		kind: KindInternal,
		mdMsg: `
# Internal error (exit 124)

crossrun hit a condition it does not classify.

## Things you can try
- Rerun with ` + "`CROSS_DEBUG=1`" + ` for the full error chain and state transitions.
- Print what would run without running it:
~~~
$ crossrun self plan build --target <triple>
~~~`,
	}

	issues = map[Kind]*Issue{
		configIssue.Kind():               configIssue,
		unsupportedTargetIssue.Kind():    unsupportedTargetIssue,
		emulationUnavailableIssue.Kind(): emulationUnavailableIssue,
		executionBackendIssue.Kind():     executionBackendIssue,
		interruptedIssue.Kind():          interruptedIssue,
		internalIssue.Kind():             internalIssue,
	}
)

// Values returns every guide ordered by Kind.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.kind) - int(b.kind)
	})
}

// Get returns the guide for k, or nil.
func Get(k Kind) *Issue {
	return issues[k]
}

// ForExitCode returns the guide whose Kind maps to code, or nil when code is
// outside the reserved range.
func ForExitCode(code int) *Issue {
	for _, i := range Values() {
		if int(i.kind.ExitCode()) == code {
			return i
		}
	}
	return nil
}
