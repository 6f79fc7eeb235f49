package analyzer

import (
	"errors"
	"testing"

	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
	"github.com/glint-lang/glintc/internal/frontend"
)

func parseSrc(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := frontend.Parse("test.js", src)
	if err != nil {
		t.Fatalf("parse(%q): %v", src, err)
	}
	return prog
}

func TestResolvesSimpleLocal(t *testing.T) {
	prog := parseSrc(t, "let x = 1; x + 1;")
	res, err := Analyze(prog, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Refs) == 0 {
		t.Fatal("expected at least one resolved reference")
	}
}

func TestUndeclaredReferenceIsError(t *testing.T) {
	prog := parseSrc(t, "x + 1;")
	_, err := Analyze(prog, DefaultOptions())
	if err == nil {
		t.Fatal("expected an unresolved reference error")
	}
	var refErr *diagnostics.UnresolvedReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestClosureCaptureAllowedByDefault(t *testing.T) {
	prog := parseSrc(t, `
		function outer() {
			let count = 0;
			function inner() { count = count + 1; return count; }
			return inner;
		}
	`)
	res, err := Analyze(prog, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	foundCrossing := false
	for _, r := range res.Refs {
		if r.CrossesScope {
			foundCrossing = true
		}
	}
	if !foundCrossing {
		t.Fatal("expected at least one capturing reference")
	}
}

func TestClosureCaptureRejectedWhenDisabled(t *testing.T) {
	prog := parseSrc(t, `
		function outer() {
			let count = 0;
			function inner() { count = count + 1; return count; }
			return inner;
		}
	`)
	_, err := Analyze(prog, Options{EnableClosures: false})
	if err == nil {
		t.Fatal("expected an UnsupportedError")
	}
	var unsupported *diagnostics.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestRedeclarationInSameScopeIsError(t *testing.T) {
	prog := parseSrc(t, "let x = 1; let x = 2;")
	_, err := Analyze(prog, DefaultOptions())
	if err == nil {
		t.Fatal("expected a redeclaration error")
	}
	var redecl *diagnostics.RedeclarationError
	if !errors.As(err, &redecl) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestRedeclarationOfVarWithLetIsError(t *testing.T) {
	prog := parseSrc(t, "var x = 1; let x = 2;")
	_, err := Analyze(prog, DefaultOptions())
	if err == nil {
		t.Fatal("expected a redeclaration error")
	}
	var redecl *diagnostics.RedeclarationError
	if !errors.As(err, &redecl) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestRedeclarationOfLetWithVarIsError(t *testing.T) {
	prog := parseSrc(t, "let x = 1; var x = 2;")
	_, err := Analyze(prog, DefaultOptions())
	if err == nil {
		t.Fatal("expected a redeclaration error")
	}
	var redecl *diagnostics.RedeclarationError
	if !errors.As(err, &redecl) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestRedeclarationOfVarWithVarIsAllowed(t *testing.T) {
	prog := parseSrc(t, "var x = 1; var x = 2; x + 1;")
	if _, err := Analyze(prog, DefaultOptions()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}

func TestEvalCallIsMarked(t *testing.T) {
	prog := parseSrc(t, "eval(1);")
	res, err := Analyze(prog, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.EvalCalls) != 1 {
		t.Fatalf("expected exactly one marked eval call, got %d", len(res.EvalCalls))
	}
}
