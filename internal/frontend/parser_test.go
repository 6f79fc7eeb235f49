package frontend

import (
	"testing"

	"github.com/glint-lang/glintc/internal/ast"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse("test.js", src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseVariableDeclaration(t *testing.T) {
	prog := parseOK(t, "let x = 1 + 2;")
	if len(prog.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Body))
	}
	decl, ok := prog.Body[0].(*ast.VariableDeclaration)
	if !ok {
		t.Fatalf("got %T", prog.Body[0])
	}
	if decl.Kind != "let" || len(decl.Declarations) != 1 {
		t.Fatalf("got %+v", decl)
	}
	bin, ok := decl.Declarations[0].Init.(*ast.BinaryExpression)
	if !ok || bin.Operator != "+" {
		t.Fatalf("got %+v", decl.Declarations[0].Init)
	}
}

func TestParseFunctionDeclarationAndCall(t *testing.T) {
	prog := parseOK(t, "function add(a, b) { return a + b; } add(1, 2);")
	if len(prog.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Body))
	}
	fn, ok := prog.Body[0].(*ast.FunctionDeclaration)
	if !ok || fn.ID.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("got %+v", prog.Body[0])
	}
	exprStmt, ok := prog.Body[1].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("got %T", prog.Body[1])
	}
	call, ok := exprStmt.Expression.(*ast.CallExpression)
	if !ok || len(call.Arguments) != 2 {
		t.Fatalf("got %+v", exprStmt.Expression)
	}
}

func TestParseOperatorPrecedence(t *testing.T) {
	prog := parseOK(t, "1 + 2 * 3;")
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	bin := stmt.Expression.(*ast.BinaryExpression)
	if bin.Operator != "+" {
		t.Fatalf("expected top-level +, got %s", bin.Operator)
	}
	rhs, ok := bin.Right.(*ast.BinaryExpression)
	if !ok || rhs.Operator != "*" {
		t.Fatalf("expected nested *, got %+v", bin.Right)
	}
}

func TestParseTernaryIsRightAssociative(t *testing.T) {
	prog := parseOK(t, "a ? b : c ? d : e;")
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	cond, ok := stmt.Expression.(*ast.ConditionalExpression)
	if !ok {
		t.Fatalf("got %T", stmt.Expression)
	}
	if _, ok := cond.Alternate.(*ast.ConditionalExpression); !ok {
		t.Fatalf("expected nested conditional in alternate, got %+v", cond.Alternate)
	}
}

func TestParseNewExpressionWithIdentifierCallee(t *testing.T) {
	prog := parseOK(t, "new Array(3);")
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	n, ok := stmt.Expression.(*ast.NewExpression)
	if !ok {
		t.Fatalf("got %T", stmt.Expression)
	}
	id, ok := n.Callee.(*ast.Identifier)
	if !ok || id.Name != "Array" {
		t.Fatalf("got %+v", n.Callee)
	}
}

func TestParseMemberChainAndComputedAccess(t *testing.T) {
	prog := parseOK(t, "a.b[c].d;")
	stmt := prog.Body[0].(*ast.ExpressionStatement)
	outer, ok := stmt.Expression.(*ast.MemberExpression)
	if !ok || outer.Computed {
		t.Fatalf("got %+v", stmt.Expression)
	}
	mid, ok := outer.Object.(*ast.MemberExpression)
	if !ok || !mid.Computed {
		t.Fatalf("got %+v", outer.Object)
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := parseOK(t, "try { a(); } catch (e) { b(); } finally { c(); }")
	stmt, ok := prog.Body[0].(*ast.TryStatement)
	if !ok {
		t.Fatalf("got %T", prog.Body[0])
	}
	if stmt.Handler == nil || stmt.Handler.Param.Name != "e" {
		t.Fatalf("got handler %+v", stmt.Handler)
	}
	if stmt.Finalizer == nil {
		t.Fatal("expected finalizer")
	}
}

func TestParseForLoop(t *testing.T) {
	prog := parseOK(t, "for (let i = 0; i < 10; i = i + 1) { sum = sum + i; }")
	stmt, ok := prog.Body[0].(*ast.ForStatement)
	if !ok {
		t.Fatalf("got %T", prog.Body[0])
	}
	if _, ok := stmt.Init.(*ast.VariableDeclaration); !ok {
		t.Fatalf("got init %+v", stmt.Init)
	}
	if stmt.Test == nil || stmt.Update == nil {
		t.Fatal("expected test and update")
	}
}

func TestParseFunctionExpressionAssignment(t *testing.T) {
	prog := parseOK(t, "let f = function(x) { return x; };")
	decl := prog.Body[0].(*ast.VariableDeclaration)
	fn, ok := decl.Declarations[0].Init.(*ast.FunctionExpression)
	if !ok || len(fn.Params) != 1 {
		t.Fatalf("got %+v", decl.Declarations[0].Init)
	}
}

func TestParseUnexpectedTokenReportsParseError(t *testing.T) {
	_, err := Parse("test.js", "let x = ;")
	if err == nil {
		t.Fatal("expected an error")
	}
}
