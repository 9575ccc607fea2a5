// Package shadertest validates WGSL sources in tests without a GPU.
package shadertest

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// RequireCompiles compiles src to SPIR-V with naga and fails t if it does not compile.
// Features naga has not implemented yet skip the test instead of failing it.
//
// Parameters:
//   - t: the running test
//   - src: the WGSL source
func RequireCompiles(t testing.TB, src string) {
	t.Helper()
	if src == "" {
		t.Fatal("WGSL source is empty")
	}

	spirv, err := naga.Compile(src)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "runtime-sized arrays not yet implemented"):
			t.Skip("naga does not yet support runtime-sized arrays")
		case strings.Contains(msg, "not yet implemented"), strings.Contains(msg, "not supported"):
			t.Skipf("naga feature not yet implemented: %v", err)
		case strings.Contains(msg, "lowering error"), strings.Contains(msg, "atomic"):
			t.Skipf("naga lowering limitation: %v", err)
		}
		t.Fatalf("WGSL failed to compile: %v", err)
	}

	if len(spirv) < 4 {
		t.Fatalf("SPIR-V too short: %d bytes", len(spirv))
	}
	magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
	if magic != spirvMagic {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x%08X", magic, spirvMagic)
	}
	t.Logf("compiled to %d bytes of SPIR-V", len(spirv))
}
