// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     Kind
		wantNil  bool
		contains string
	}{
		{KindConfig, false, "Configuration error"},
		{KindUnsupportedTarget, false, "crossrun self targets"},
		{KindEmulationUnavailable, false, "binfmt_misc"},
		{KindExecutionBackend, false, "CROSS_CONTAINER_ENGINE"},
		{KindInterrupted, false, "SIGINT"},
		{KindInternal, false, "CROSS_DEBUG"},
		{KindUnknown, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			got := Get(tt.kind)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Get(%v) should return nil", tt.kind)
				}
				return
			}
			if got == nil {
				t.Fatalf("Get(%v) returned nil", tt.kind)
			}
			if got.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", got.Kind(), tt.kind)
			}
			if !strings.Contains(string(got.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%v).MarkdownMsg() should contain %q", tt.kind, tt.contains)
			}
		})
	}
}

func TestValues_OrderedByKind(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != 6 {
		t.Fatalf("Values() returned %d guides", len(values))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Kind() >= values[i].Kind() {
			t.Errorf("Values() not ordered at %d: %v >= %v", i, values[i-1].Kind(), values[i].Kind())
		}
	}
}

func TestForExitCode(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		code := int(i.Kind().ExitCode())
		if got := ForExitCode(code); got != i {
			t.Errorf("ForExitCode(%d) = %v, want %v", code, got, i.Kind())
		}
	}
	for _, code := range []int{0, 1, 101, 125} {
		if got := ForExitCode(code); got != nil {
			t.Errorf("ForExitCode(%d) = %v, want nil", code, got.Kind())
		}
	}
}

func TestIssue_DocLinksClone(t *testing.T) {
	t.Parallel()

	i := Get(KindUnsupportedTarget)
	links := i.DocLinks()
	if len(links) == 0 {
		t.Fatal("expected doc links")
	}
	original := links[0]
	links[0] = "modified"
	if i.DocLinks()[0] != original {
		t.Error("DocLinks() should return a clone")
	}
}

// Not parallel: swaps the package-level renderer.
func TestIssue_Render(t *testing.T) {
	originalRender := render
	t.Cleanup(func() { render = originalRender })

	var gotStyle string
	render = func(in string, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	rendered, err := Get(KindEmulationUnavailable).Render("")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if gotStyle != "auto" {
		t.Errorf("style = %q, want auto", gotStyle)
	}
	if !strings.Contains(rendered, "## See also") || !strings.Contains(rendered, "binfmt-misc.html") {
		t.Errorf("Render() output missing links:\n%s", rendered)
	}

	rendered, err = Get(KindInterrupted).Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if gotStyle != "notty" || strings.Contains(rendered, "See also") {
		t.Errorf("Render(notty) style=%q output=\n%s", gotStyle, rendered)
	}
}
