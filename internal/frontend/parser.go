package frontend

import (
	"strconv"

	"github.com/glint-lang/glintc/internal/ast"
	"github.com/glint-lang/glintc/internal/diagnostics"
)

// Parser is the frontend.Parser this package implements: Parse consumes
// source text and file name, and produces an internal/ast.Program or the
// first ParseError encountered. Parsing stops at the first error rather
// than attempting recovery, matching spec.md §7's abort-immediately
// policy.
type Parser struct {
	file string
	lex  *lexer
	curr Token
	err  error
}

// New creates a parser for src, attributing diagnostics to file.
func New(file, src string) *Parser {
	p := &Parser{file: file, lex: newLexer(src)}
	p.curr = p.lex.next()
	return p
}

// Parse runs New(file, src).ParseProgram in one call, the shape
// pkg/compiler.Compile drives.
func Parse(file, src string) (*ast.Program, error) {
	return New(file, src).ParseProgram()
}

func (p *Parser) pos() ast.Position {
	return ast.Position{File: p.file, Line: p.curr.Pos.Line, Column: p.curr.Pos.Col}
}

func (p *Parser) fail(pos ast.Position, format string, args ...any) {
	if p.err == nil {
		p.err = diagnostics.NewParseError(diagnostics.Position{File: pos.File, Line: pos.Line, Column: pos.Column}, format, args...)
	}
}

func (p *Parser) next() Token {
	tok := p.curr
	p.curr = p.lex.next()
	return tok
}

func (p *Parser) at(k TokenKind) bool { return p.curr.Kind == k }

func (p *Parser) expect(k TokenKind) Token {
	if p.curr.Kind != k {
		p.fail(p.pos(), "expected %s, found %s", k, p.curr.Kind)
		return p.curr
	}
	return p.next()
}

// skipSemi consumes an optional trailing ';' — this frontend does not
// implement automatic semicolon insertion beyond simply treating the
// terminator as optional, a documented simplification of the real
// ECMAScript grammar.
func (p *Parser) skipSemi() {
	if p.at(TokenSemicolon) {
		p.next()
	}
}

func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	prog.Position = ast.Position{File: p.file, Line: 1, Column: 1}
	for !p.at(TokenEOF) && p.err == nil {
		prog.Body = append(prog.Body, p.parseStatement())
	}
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

func (p *Parser) parseStatement() ast.Statement {
	pos := p.pos()
	switch p.curr.Kind {
	case TokenVar, TokenLet, TokenConst:
		s := p.parseVariableDeclaration()
		p.skipSemi()
		return s
	case TokenFunction:
		return p.parseFunctionDeclaration()
	case TokenLBrace:
		return p.parseBlock()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenReturn:
		p.next()
		var arg ast.Expression
		if !p.at(TokenSemicolon) && !p.at(TokenRBrace) && !p.at(TokenEOF) {
			arg = p.parseExpression()
		}
		p.skipSemi()
		return &ast.ReturnStatement{Base: baseAt(pos), Argument: arg}
	case TokenBreak:
		p.next()
		p.skipSemi()
		return &ast.BreakStatement{Base: baseAt(pos)}
	case TokenContinue:
		p.next()
		p.skipSemi()
		return &ast.ContinueStatement{Base: baseAt(pos)}
	case TokenThrow:
		p.next()
		arg := p.parseExpression()
		p.skipSemi()
		return &ast.ThrowStatement{Base: baseAt(pos), Argument: arg}
	case TokenTry:
		return p.parseTry()
	case TokenSemicolon:
		p.next()
		return &ast.EmptyStatement{Base: baseAt(pos)}
	default:
		expr := p.parseExpression()
		p.skipSemi()
		return &ast.ExpressionStatement{Base: baseAt(pos), Expression: expr}
	}
}

func baseAt(pos ast.Position) ast.Base { return ast.NewBase(pos) }

func (p *Parser) parseVariableDeclaration() *ast.VariableDeclaration {
	pos := p.pos()
	kind := p.curr.Text
	p.next()
	decl := &ast.VariableDeclaration{Base: baseAt(pos), Kind: kind}
	for {
		idPos := p.pos()
		name := p.expect(TokenIdent)
		id := &ast.Identifier{Base: baseAt(idPos), Name: name.Text}
		var init ast.Expression
		if p.at(TokenEq) {
			p.next()
			init = p.parseAssignment()
		}
		decl.Declarations = append(decl.Declarations, &ast.VariableDeclarator{Base: baseAt(idPos), ID: id, Init: init})
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	return decl
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	pos := p.pos()
	p.next() // 'function'
	idPos := p.pos()
	name := p.expect(TokenIdent)
	params := p.parseParams()
	body := p.parseBlock()
	return &ast.FunctionDeclaration{
		Base:   baseAt(pos),
		ID:     &ast.Identifier{Base: baseAt(idPos), Name: name.Text},
		Params: params,
		Body:   body,
	}
}

func (p *Parser) parseParams() []*ast.Identifier {
	p.expect(TokenLParen)
	var params []*ast.Identifier
	for !p.at(TokenRParen) && !p.at(TokenEOF) {
		pos := p.pos()
		name := p.expect(TokenIdent)
		params = append(params, &ast.Identifier{Base: baseAt(pos), Name: name.Text})
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	p.expect(TokenRParen)
	return params
}

func (p *Parser) parseBlock() *ast.BlockStatement {
	pos := p.pos()
	p.expect(TokenLBrace)
	block := &ast.BlockStatement{Base: baseAt(pos)}
	for !p.at(TokenRBrace) && !p.at(TokenEOF) && p.err == nil {
		block.Body = append(block.Body, p.parseStatement())
	}
	p.expect(TokenRBrace)
	return block
}

func (p *Parser) parseIf() ast.Statement {
	pos := p.pos()
	p.next()
	p.expect(TokenLParen)
	test := p.parseExpression()
	p.expect(TokenRParen)
	cons := p.parseStatement()
	var alt ast.Statement
	if p.at(TokenElse) {
		p.next()
		alt = p.parseStatement()
	}
	return &ast.IfStatement{Base: baseAt(pos), Test: test, Consequent: cons, Alternate: alt}
}

func (p *Parser) parseWhile() ast.Statement {
	pos := p.pos()
	p.next()
	p.expect(TokenLParen)
	test := p.parseExpression()
	p.expect(TokenRParen)
	body := p.parseStatement()
	return &ast.WhileStatement{Base: baseAt(pos), Test: test, Body: body}
}

func (p *Parser) parseFor() ast.Statement {
	pos := p.pos()
	p.next()
	p.expect(TokenLParen)

	var init ast.Node
	if !p.at(TokenSemicolon) {
		if p.at(TokenVar) || p.at(TokenLet) || p.at(TokenConst) {
			init = p.parseVariableDeclaration()
		} else {
			init = p.parseExpression()
		}
	}
	p.expect(TokenSemicolon)

	var test ast.Expression
	if !p.at(TokenSemicolon) {
		test = p.parseExpression()
	}
	p.expect(TokenSemicolon)

	var update ast.Expression
	if !p.at(TokenRParen) {
		update = p.parseExpression()
	}
	p.expect(TokenRParen)

	body := p.parseStatement()
	return &ast.ForStatement{Base: baseAt(pos), Init: init, Test: test, Update: update, Body: body}
}

func (p *Parser) parseTry() ast.Statement {
	pos := p.pos()
	p.next()
	block := p.parseBlock()
	var handler *ast.CatchClause
	var finalizer *ast.BlockStatement
	if p.at(TokenCatch) {
		catchPos := p.pos()
		p.next()
		var param *ast.Identifier
		if p.at(TokenLParen) {
			p.next()
			idPos := p.pos()
			name := p.expect(TokenIdent)
			param = &ast.Identifier{Base: baseAt(idPos), Name: name.Text}
			p.expect(TokenRParen)
		}
		body := p.parseBlock()
		handler = &ast.CatchClause{Base: baseAt(catchPos), Param: param, Body: body}
	}
	if p.at(TokenFinally) {
		p.next()
		finalizer = p.parseBlock()
	}
	return &ast.TryStatement{Base: baseAt(pos), Block: block, Handler: handler, Finalizer: finalizer}
}

// ---- Expressions ----
//
// Precedence climbs, lowest first: sequence (,), assignment, conditional
// (?:), logical-or (||), logical-and (&&), equality (== === != !==),
// relational (< <= > >=), additive (+ -), multiplicative (* / %), unary,
// postfix, primary. Assignment and the ternary are right-associative and
// handled explicitly outside the binary-precedence table, matching the
// shape of the teacher's own single parseExpr(precedence) entry point,
// split here into named levels for readability against a fixed, small
// operator grammar rather than a generic table the AST has no need for.

func (p *Parser) parseExpression() ast.Expression {
	expr := p.parseAssignment()
	if p.at(TokenComma) {
		seq := &ast.SequenceExpression{Base: baseAt(expr.Pos()), Expressions: []ast.Expression{expr}}
		for p.at(TokenComma) {
			p.next()
			seq.Expressions = append(seq.Expressions, p.parseAssignment())
		}
		return seq
	}
	return expr
}

var assignOps = map[TokenKind]string{
	TokenEq:      "=",
	TokenPlusEq:  "+=",
	TokenMinusEq: "-=",
	TokenStarEq:  "*=",
	TokenSlashEq: "/=",
}

func (p *Parser) parseAssignment() ast.Expression {
	left := p.parseConditional()
	if op, ok := assignOps[p.curr.Kind]; ok {
		p.next()
		right := p.parseAssignment()
		return &ast.AssignmentExpression{Base: baseAt(left.Pos()), Operator: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseConditional() ast.Expression {
	test := p.parseLogicalOr()
	if p.at(TokenQuestion) {
		p.next()
		cons := p.parseAssignment()
		p.expect(TokenColon)
		alt := p.parseAssignment()
		return &ast.ConditionalExpression{Base: baseAt(test.Pos()), Test: test, Consequent: cons, Alternate: alt}
	}
	return test
}

func (p *Parser) parseLogicalOr() ast.Expression {
	left := p.parseLogicalAnd()
	for p.at(TokenPipePipe) {
		p.next()
		right := p.parseLogicalAnd()
		left = &ast.LogicalExpression{Base: baseAt(left.Pos()), Operator: "||", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expression {
	left := p.parseEquality()
	for p.at(TokenAmpAmp) {
		p.next()
		right := p.parseEquality()
		left = &ast.LogicalExpression{Base: baseAt(left.Pos()), Operator: "&&", Left: left, Right: right}
	}
	return left
}

var equalityOps = map[TokenKind]string{
	TokenEqEq: "==", TokenEqEqEq: "===", TokenNotEq: "!=", TokenNotEqEq: "!==",
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseRelational()
	for {
		op, ok := equalityOps[p.curr.Kind]
		if !ok {
			return left
		}
		p.next()
		right := p.parseRelational()
		left = &ast.BinaryExpression{Base: baseAt(left.Pos()), Operator: op, Left: left, Right: right}
	}
}

var relationalOps = map[TokenKind]string{
	TokenLT: "<", TokenLTE: "<=", TokenGT: ">", TokenGTE: ">=",
}

func (p *Parser) parseRelational() ast.Expression {
	left := p.parseAdditive()
	for {
		op, ok := relationalOps[p.curr.Kind]
		if !ok {
			return left
		}
		p.next()
		right := p.parseAdditive()
		left = &ast.BinaryExpression{Base: baseAt(left.Pos()), Operator: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.at(TokenPlus) || p.at(TokenMinus) {
		op := p.curr.Text
		p.next()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpression{Base: baseAt(left.Pos()), Operator: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.at(TokenStar) || p.at(TokenSlash) || p.at(TokenPercent) {
		op := p.curr.Text
		p.next()
		right := p.parseUnary()
		left = &ast.BinaryExpression{Base: baseAt(left.Pos()), Operator: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	pos := p.pos()
	switch p.curr.Kind {
	case TokenPlus, TokenMinus, TokenBang, TokenTypeof, TokenVoid:
		op := p.curr.Text
		p.next()
		arg := p.parseUnary()
		return &ast.UnaryExpression{Base: baseAt(pos), Operator: op, Argument: arg}
	case TokenPlusPlus, TokenMinusMinus:
		op := p.curr.Text
		p.next()
		arg := p.parseUnary()
		return &ast.UpdateExpression{Base: baseAt(pos), Operator: op, Prefix: true, Argument: arg}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parseCallOrMember()
	if p.at(TokenPlusPlus) || p.at(TokenMinusMinus) {
		op := p.curr.Text
		p.next()
		return &ast.UpdateExpression{Base: baseAt(expr.Pos()), Operator: op, Prefix: false, Argument: expr}
	}
	return expr
}

func (p *Parser) parseCallOrMember() ast.Expression {
	expr := p.parseNewOrPrimary()
	for {
		switch p.curr.Kind {
		case TokenDot:
			p.next()
			propPos := p.pos()
			name := p.expect(TokenIdent)
			prop := &ast.Identifier{Base: baseAt(propPos), Name: name.Text}
			expr = &ast.MemberExpression{Base: baseAt(expr.Pos()), Object: expr, Property: prop, Computed: false}
		case TokenLBracket:
			p.next()
			idx := p.parseExpression()
			p.expect(TokenRBracket)
			expr = &ast.MemberExpression{Base: baseAt(expr.Pos()), Object: expr, Property: idx, Computed: true}
		case TokenLParen:
			args := p.parseArgs()
			expr = &ast.CallExpression{Base: baseAt(expr.Pos()), Callee: expr, Arguments: args}
		default:
			return expr
		}
	}
}

// parseNewOrPrimary handles `new Callee(args)` at the same binding
// strength as a call/member chain, then lets the caller's loop continue
// the chain (e.g. `new Foo().bar()`).
func (p *Parser) parseNewOrPrimary() ast.Expression {
	if p.at(TokenNew) {
		pos := p.pos()
		p.next()
		callee := p.parseNewCallee()
		var args []ast.Expression
		if p.at(TokenLParen) {
			args = p.parseArgs()
		}
		return &ast.NewExpression{Base: baseAt(pos), Callee: callee, Arguments: args}
	}
	return p.parsePrimary()
}

// parseNewCallee parses the callee of `new X.Y(...)`, stopping before a
// call so `new` binds tighter than the following argument list.
func (p *Parser) parseNewCallee() ast.Expression {
	expr := p.parsePrimary()
	for p.at(TokenDot) {
		p.next()
		propPos := p.pos()
		name := p.expect(TokenIdent)
		prop := &ast.Identifier{Base: baseAt(propPos), Name: name.Text}
		expr = &ast.MemberExpression{Base: baseAt(expr.Pos()), Object: expr, Property: prop, Computed: false}
	}
	return expr
}

func (p *Parser) parseArgs() []ast.Expression {
	p.expect(TokenLParen)
	var args []ast.Expression
	for !p.at(TokenRParen) && !p.at(TokenEOF) {
		args = append(args, p.parseAssignment())
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	p.expect(TokenRParen)
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	pos := p.pos()
	switch p.curr.Kind {
	case TokenIdent:
		tok := p.next()
		return &ast.Identifier{Base: baseAt(pos), Name: tok.Text}
	case TokenNumber:
		tok := p.next()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.fail(pos, "invalid number literal %q", tok.Text)
		}
		return &ast.NumberLiteral{Base: baseAt(pos), Value: v}
	case TokenString:
		tok := p.next()
		return &ast.StringLiteral{Base: baseAt(pos), Value: tok.Text}
	case TokenTrue:
		p.next()
		return &ast.BooleanLiteral{Base: baseAt(pos), Value: true}
	case TokenFalse:
		p.next()
		return &ast.BooleanLiteral{Base: baseAt(pos), Value: false}
	case TokenNull:
		p.next()
		return &ast.NullLiteral{Base: baseAt(pos)}
	case TokenUndefined:
		p.next()
		return &ast.UndefinedLiteral{Base: baseAt(pos)}
	case TokenFunction:
		return p.parseFunctionExpression()
	case TokenLParen:
		p.next()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr
	default:
		p.fail(pos, "expected expression, found %s", p.curr.Kind)
		p.next()
		return &ast.UndefinedLiteral{Base: baseAt(pos)}
	}
}

func (p *Parser) parseFunctionExpression() ast.Expression {
	pos := p.pos()
	p.next() // 'function'
	var id *ast.Identifier
	if p.at(TokenIdent) {
		idPos := p.pos()
		name := p.next()
		id = &ast.Identifier{Base: baseAt(idPos), Name: name.Text}
	}
	params := p.parseParams()
	body := p.parseBlock()
	return &ast.FunctionExpression{Base: baseAt(pos), ID: id, Params: params, Body: body}
}
