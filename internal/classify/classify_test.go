package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		goos string
		file string
		want Tag
	}{
		{"linux", "libsim.so", DynamicLibrary},
		{"linux", "lib/libsim.so.1.1.3", DynamicLibrary},
		{"linux", "libsim.so.backup", GenericResource},
		{"linux", "libsim.a", StaticLibrary},
		{"linux", "sim.debug", DebugSymbol},
		{"linux", "sim.dll", GenericResource},
		{"darwin", "libsim.dylib", DynamicLibrary},
		{"darwin", "libsim.a", StaticLibrary},
		{"darwin", "LIBSIM.DYLIB", DynamicLibrary},
		{"windows", `bin\sim.dll`, DynamicLibrary},
		{"windows", "sim.lib", StaticLibrary},
		{"windows", "libsim.dll.a", ImportLibrary},
		{"windows", "sim.pdb", DebugSymbol},
		{"windows", "libsim.a", StaticLibrary},
		{"windows", "LIBSIM.DLL.A", ImportLibrary},
		{"plan9", "libsim.dll.a", ImportLibrary},
		{"plan9", "libsim.a", StaticLibrary},
		{"plan9", "libsim.dylib", DynamicLibrary},
		{"linux", "texture.png", GenericResource},
		{"linux", ".so", GenericResource},
		{"linux", "", GenericResource},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.file, func(t *testing.T) {
			c := For(tt.goos)
			got := c.Classify(tt.file)
			if got != Set(tt.want) {
				t.Errorf("Classify(%q) = %v, want %v", tt.file, got, tt.want)
			}
			if again := c.Classify(tt.file); again != got {
				t.Errorf("Classify(%q) is not deterministic: %v then %v", tt.file, got, again)
			}
			if len(got.Tags()) != 1 {
				t.Errorf("Classify(%q) = %v, want exactly one tag", tt.file, got)
			}
		})
	}
}

func TestClassify_AmbiguousFailsClosed(t *testing.T) {
	c := New("custom", map[Tag][]string{
		StaticLibrary: {".lib"},
		ImportLibrary: {".lib", ".imp.lib"},
	})
	if got := c.Classify("sim.lib"); got != Set(GenericResource) {
		t.Errorf("ambiguous suffix: got %v, want generic-resource", got)
	}
	// the longer suffix is not ambiguous
	if got := c.Classify("sim.imp.lib"); got != Set(ImportLibrary) {
		t.Errorf("got %v, want import-library", got)
	}
}

func TestPatterns(t *testing.T) {
	got := For("linux").Patterns(DynamicLibrary)
	want := []string{"**/*.so", "**/*.so.*"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Patterns mismatch (-want +got):\n%s", diff)
	}
	if got := For("darwin").Patterns(DebugSymbol); got != nil {
		t.Errorf("darwin debug patterns = %v, want none", got)
	}
}

func TestBuckets(t *testing.T) {
	if diff := cmp.Diff([]Bucket{BinDir, LibDir}, For("linux").Buckets(DynamicLibrary)); diff != "" {
		t.Errorf("linux dynamic (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Bucket{BinDir, LibDir}, For("darwin").Buckets(DynamicLibrary)); diff != "" {
		t.Errorf("darwin dynamic (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Bucket{BinDir}, For("windows").Buckets(DynamicLibrary)); diff != "" {
		t.Errorf("windows dynamic (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Bucket{LibDir}, For("windows").Buckets(ImportLibrary)); diff != "" {
		t.Errorf("windows import (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Bucket{LibDir}, For("windows").Buckets(StaticLibrary)); diff != "" {
		t.Errorf("windows static (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Bucket{ResDir}, For("darwin").Buckets(GenericResource)); diff != "" {
		t.Errorf("generic (-want +got):\n%s", diff)
	}
}

func TestSet(t *testing.T) {
	s := Set(StaticLibrary) | Set(DebugSymbol)
	if got := s.String(); got != "static-library|debug-symbol" {
		t.Errorf("String() = %q", got)
	}
	if !s.IsLibrary() || Set(DebugSymbol).IsLibrary() {
		t.Error("IsLibrary mismatch")
	}
}
