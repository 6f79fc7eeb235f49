package codegen

import (
	"sort"

	"github.com/glint-lang/glintc/internal/analyzer"
	"github.com/glint-lang/glintc/internal/ast"
)

// freeVariables returns the sorted, deduplicated unique names referenced
// anywhere within params/body (including inside nested function literals)
// that are not declared anywhere within that same subtree — the standard
// free-variable set a closure must receive cell pointers for at
// construction time. Names propagate upward through intermediate
// functions automatically: a doubly-nested function's free variable that
// isn't declared by the immediate enclosing function is still "free" for
// that enclosing function too, since nothing in its own subtree declares it.
func freeVariables(params []*ast.Identifier, body *ast.BlockStatement, res *analyzer.Result) []string {
	declared := make(map[string]bool)
	referenced := make(map[string]bool)

	for _, p := range params {
		if b, ok := res.Declarations[p]; ok {
			declared[b.UniqueName()] = true
		}
	}
	walkIdentifiers(body, res, declared, referenced)

	free := make(map[string]bool)
	for name := range referenced {
		if !declared[name] {
			free[name] = true
		}
	}
	out := make([]string, 0, len(free))
	for name := range free {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func walkIdentifiers(n ast.Node, res *analyzer.Result, declared, referenced map[string]bool) {
	switch n := n.(type) {
	case nil:
		return
	case *ast.BlockStatement:
		for _, s := range n.Body {
			walkIdentifiers(s, res, declared, referenced)
		}
	case *ast.VariableDeclaration:
		for _, d := range n.Declarations {
			markDecl(d.ID, res, declared)
			walkIdentifiers(d.Init, res, declared, referenced)
		}
	case *ast.FunctionDeclaration:
		markDecl(n.ID, res, declared)
		for _, p := range n.Params {
			markDecl(p, res, declared)
		}
		walkIdentifiers(n.Body, res, declared, referenced)
	case *ast.FunctionExpression:
		if n.ID != nil {
			markDecl(n.ID, res, declared)
		}
		for _, p := range n.Params {
			markDecl(p, res, declared)
		}
		walkIdentifiers(n.Body, res, declared, referenced)
	case *ast.ExpressionStatement:
		walkIdentifiers(n.Expression, res, declared, referenced)
	case *ast.IfStatement:
		walkIdentifiers(n.Test, res, declared, referenced)
		walkIdentifiers(n.Consequent, res, declared, referenced)
		walkIdentifiers(n.Alternate, res, declared, referenced)
	case *ast.WhileStatement:
		walkIdentifiers(n.Test, res, declared, referenced)
		walkIdentifiers(n.Body, res, declared, referenced)
	case *ast.ForStatement:
		if decl, ok := n.Init.(*ast.VariableDeclaration); ok {
			walkIdentifiers(decl, res, declared, referenced)
		} else if expr, ok := n.Init.(ast.Expression); ok {
			walkIdentifiers(expr, res, declared, referenced)
		}
		walkIdentifiers(n.Test, res, declared, referenced)
		walkIdentifiers(n.Update, res, declared, referenced)
		walkIdentifiers(n.Body, res, declared, referenced)
	case *ast.ReturnStatement:
		walkIdentifiers(n.Argument, res, declared, referenced)
	case *ast.ThrowStatement:
		walkIdentifiers(n.Argument, res, declared, referenced)
	case *ast.TryStatement:
		walkIdentifiers(n.Block, res, declared, referenced)
		if n.Handler != nil {
			if n.Handler.Param != nil {
				markDecl(n.Handler.Param, res, declared)
			}
			walkIdentifiers(n.Handler.Body, res, declared, referenced)
		}
		if n.Finalizer != nil {
			walkIdentifiers(n.Finalizer, res, declared, referenced)
		}
	case *ast.Identifier:
		if r, ok := res.Refs[n]; ok && !r.Builtin {
			referenced[r.UniqueName] = true
		}
	case *ast.BinaryExpression:
		walkIdentifiers(n.Left, res, declared, referenced)
		walkIdentifiers(n.Right, res, declared, referenced)
	case *ast.LogicalExpression:
		walkIdentifiers(n.Left, res, declared, referenced)
		walkIdentifiers(n.Right, res, declared, referenced)
	case *ast.UnaryExpression:
		walkIdentifiers(n.Argument, res, declared, referenced)
	case *ast.UpdateExpression:
		walkIdentifiers(n.Argument, res, declared, referenced)
	case *ast.AssignmentExpression:
		walkIdentifiers(n.Left, res, declared, referenced)
		walkIdentifiers(n.Right, res, declared, referenced)
	case *ast.ConditionalExpression:
		walkIdentifiers(n.Test, res, declared, referenced)
		walkIdentifiers(n.Consequent, res, declared, referenced)
		walkIdentifiers(n.Alternate, res, declared, referenced)
	case *ast.CallExpression:
		walkIdentifiers(n.Callee, res, declared, referenced)
		for _, a := range n.Arguments {
			walkIdentifiers(a, res, declared, referenced)
		}
	case *ast.NewExpression:
		walkIdentifiers(n.Callee, res, declared, referenced)
		for _, a := range n.Arguments {
			walkIdentifiers(a, res, declared, referenced)
		}
	case *ast.MemberExpression:
		walkIdentifiers(n.Object, res, declared, referenced)
		if n.Computed {
			walkIdentifiers(n.Property, res, declared, referenced)
		}
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			walkIdentifiers(e, res, declared, referenced)
		}
	default:
		// literals, Break/Continue/Empty statements: nothing to walk.
	}
}

func markDecl(id *ast.Identifier, res *analyzer.Result, declared map[string]bool) {
	if id == nil {
		return
	}
	if b, ok := res.Declarations[id]; ok {
		declared[b.UniqueName()] = true
	}
}
