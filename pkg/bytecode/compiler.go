package bytecode

import (
	"strconv"
	"strings"

	"github.com/groove-lang/groove/compiler"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass Pratt compiler from tokens to bytecode
// ---------------------------------------------------------------------------

// Compilation limits. Exceeding any of these is a compile error.
const (
	maxLocals        = 16 // per function, slot 0 reserved for the callee
	maxUpvalues      = 16 // per function
	maxParams        = 32 // per function
	maxFunctionDepth = 32 // nesting of open function compilations
	maxScopeDepth    = 127
	maxArguments     = 255
)

// Precedence levels from lowest to highest. Assignment is right
// associative; every other level climbs left to right.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecAdd                   // + -
	PrecMult                  // * / %
	PrecUnary                 // ! -
	PrecCall                  // ()
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool) error

// parseRule binds a token type to its prefix handler, infix handler and
// infix precedence.
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var parseRules map[compiler.TokenType]parseRule

// The table references handlers that recurse through parsePrecedence,
// so it is built in init to break the initialization cycle.
func init() {
	parseRules = map[compiler.TokenType]parseRule{
		compiler.TokenLeftParen:        {(*Compiler).grouping, (*Compiler).call, PrecCall},
		compiler.TokenMinus:            {(*Compiler).unary, (*Compiler).binary, PrecAdd},
		compiler.TokenPlus:             {nil, (*Compiler).binary, PrecAdd},
		compiler.TokenStar:             {nil, (*Compiler).binary, PrecMult},
		compiler.TokenSlash:            {nil, (*Compiler).binary, PrecMult},
		compiler.TokenPercent:          {nil, (*Compiler).binary, PrecMult},
		compiler.TokenNot:              {(*Compiler).unary, nil, PrecNone},
		compiler.TokenNotEqual:         {nil, (*Compiler).binary, PrecEquality},
		compiler.TokenIsEqual:          {nil, (*Compiler).binary, PrecEquality},
		compiler.TokenLessThan:         {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenLessThanEqual:    {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenGreaterThan:      {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenGreaterThanEqual: {nil, (*Compiler).binary, PrecComparison},
		compiler.TokenNumber:           {(*Compiler).number, nil, PrecNone},
		compiler.TokenString:           {(*Compiler).stringLiteral, nil, PrecNone},
		compiler.TokenIdentifier:       {(*Compiler).variable, nil, PrecNone},
		compiler.TokenTrue:             {(*Compiler).literal, nil, PrecNone},
		compiler.TokenFalse:            {(*Compiler).literal, nil, PrecNone},
		compiler.TokenAnd:              {nil, (*Compiler).and, PrecAnd},
		compiler.TokenOr:               {nil, (*Compiler).or, PrecOr},
	}
}

func getRule(tokType compiler.TokenType) parseRule {
	return parseRules[tokType]
}

// local is one slot in a function's local variable table. depth is -1
// between declaration and initialization.
type local struct {
	name        string
	depth       int
	initialized bool
}

// upvalueRef describes one captured variable: a slot in the enclosing
// function (isLocal) or an index into the enclosing function's upvalues.
type upvalueRef struct {
	index   uint8
	isLocal bool
}

// functionInfo is the per-function compilation context. One is open for
// every function on the compilation stack, the bottom entry being the
// implicit top-level script.
type functionInfo struct {
	function   *Function
	kind       FunctionKind
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

func newFunctionInfo(kind FunctionKind, name string) *functionInfo {
	info := &functionInfo{
		function: NewFunction(name),
		kind:     kind,
		locals:   make([]local, 0, maxLocals),
	}
	// Slot 0 is claimed for the VM's internal use: it holds the callee.
	info.locals = append(info.locals, local{depth: 0, initialized: true})
	return info
}

// addLocal declares a new local in the current scope. The local starts
// uninitialized (depth -1) until its initializer has been compiled.
func (fi *functionInfo) addLocal(tok compiler.Token) error {
	if len(fi.locals) >= maxLocals {
		return compileErrorf(tok.Line, tok.Lexeme, "too many local variables in function")
	}
	for i := len(fi.locals) - 1; i > 0; i-- {
		l := fi.locals[i]
		if l.depth != -1 && l.depth < fi.scopeDepth {
			break
		}
		if l.name == tok.Lexeme {
			return compileErrorf(tok.Line, tok.Lexeme, "already a variable with this name in this scope")
		}
	}
	fi.locals = append(fi.locals, local{name: tok.Lexeme, depth: -1})
	return nil
}

// markInitialized completes the most recent declaration. A no-op at
// global scope, where there is no local to complete.
func (fi *functionInfo) markInitialized() {
	if fi.scopeDepth == 0 {
		return
	}
	l := &fi.locals[len(fi.locals)-1]
	l.depth = fi.scopeDepth
	l.initialized = true
}

// resolveLocal scans the locals in reverse for name. Reading a local
// inside its own initializer is an error.
func (fi *functionInfo) resolveLocal(tok compiler.Token) (uint8, bool, error) {
	for i := len(fi.locals) - 1; i > 0; i-- {
		if fi.locals[i].name == tok.Lexeme {
			if !fi.locals[i].initialized {
				return 0, false, compileErrorf(tok.Line, tok.Lexeme,
					"can't read local variable in its own initializer")
			}
			return uint8(i), true, nil
		}
	}
	return 0, false, nil
}

// addUpvalue records a captured variable, reusing an existing entry for
// the same (index, isLocal) pair.
func (fi *functionInfo) addUpvalue(tok compiler.Token, index uint8, isLocal bool) (uint8, error) {
	for i, uv := range fi.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return uint8(i), nil
		}
	}
	if len(fi.upvalues) >= maxUpvalues {
		return 0, compileErrorf(tok.Line, tok.Lexeme, "too many closure variables in function")
	}
	fi.upvalues = append(fi.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fi.function.UpvalueCount++
	return uint8(len(fi.upvalues) - 1), nil
}

// Compiler walks the token stream left to right, emitting bytecode
// directly. It owns the source buffer for the lifetime of the tokens.
type Compiler struct {
	source string
	tokens []compiler.Token
	pos    int
	prev   compiler.Token
	stack  []*functionInfo
}

// Compile tokenizes and compiles source into an executable top-level
// closure wrapping the script function.
func Compile(source string) (*Closure, error) {
	tokens, err := compiler.Tokenize(source)
	if err != nil {
		return nil, err
	}

	c := &Compiler{
		source: source,
		tokens: tokens,
		stack:  []*functionInfo{newFunctionInfo(KindScript, "")},
	}
	for !c.match(compiler.TokenEOF) {
		if err := c.declaration(); err != nil {
			return nil, err
		}
	}
	c.emitReturn()
	return NewClosure(c.current().function), nil
}

// current returns the innermost open function compilation.
func (c *Compiler) current() *functionInfo {
	return c.stack[len(c.stack)-1]
}

func (c *Compiler) chunk() *Chunk {
	return c.current().function.Chunk
}

// Token plumbing

func (c *Compiler) curr() compiler.Token {
	if c.pos < len(c.tokens) {
		return c.tokens[c.pos]
	}
	return c.tokens[len(c.tokens)-1] // the EOF token
}

func (c *Compiler) advance() {
	c.prev = c.curr()
	if c.pos < len(c.tokens) {
		c.pos++
	}
}

func (c *Compiler) check(tokType compiler.TokenType) bool {
	return c.curr().Type == tokType
}

func (c *Compiler) match(types ...compiler.TokenType) bool {
	for _, tt := range types {
		if c.check(tt) {
			c.advance()
			return true
		}
	}
	return false
}

func (c *Compiler) consume(tokType compiler.TokenType, errMsg string) error {
	if c.check(tokType) {
		c.advance()
		return nil
	}
	tok := c.curr()
	return compileErrorf(tok.Line, tok.Lexeme, "%s", errMsg)
}

// Emission helpers

func (c *Compiler) emitOp(op Opcode) {
	c.chunk().Emit(op, c.prev.Line)
}

func (c *Compiler) emitOps(first, second Opcode) {
	c.emitOp(first)
	c.emitOp(second)
}

func (c *Compiler) emitWithOperand(op Opcode, operand uint8) {
	c.chunk().EmitWithOperand(op, c.prev.Line, operand)
}

func (c *Compiler) emitByte(b byte) {
	c.chunk().Append(b, c.prev.Line)
}

// makeConstant interns a value in the current chunk's constant pool.
func (c *Compiler) makeConstant(value Value) (uint8, error) {
	idx, err := c.chunk().AddConstant(value)
	if err != nil {
		return 0, c.attachToken(err)
	}
	return idx, nil
}

func (c *Compiler) emitConstant(value Value) error {
	idx, err := c.makeConstant(value)
	if err != nil {
		return err
	}
	c.emitWithOperand(OpConstant, idx)
	return nil
}

func (c *Compiler) identifierConstant(name string) (uint8, error) {
	return c.makeConstant(StrValue(name))
}

func (c *Compiler) emitJump(op Opcode) int {
	return c.chunk().EmitJump(op, c.prev.Line)
}

func (c *Compiler) patchJump(offset int) error {
	return c.attachToken(c.chunk().PatchJump(offset))
}

func (c *Compiler) emitLoop(loopStart int) error {
	return c.attachToken(c.chunk().EmitLoop(loopStart, c.prev.Line))
}

// emitReturn closes a function body: the implicit return value is the
// zero value.
func (c *Compiler) emitReturn() {
	c.emitOps(OpEmpty, OpReturn)
}

// attachToken fills in token position on chunk-level compile errors.
func (c *Compiler) attachToken(err error) error {
	if cerr, ok := err.(*CompileError); ok && cerr.Line == 0 {
		cerr.Line = c.prev.Line
		cerr.Lexeme = c.prev.Lexeme
	}
	return err
}

// Scope handling

func (c *Compiler) beginScope() error {
	fi := c.current()
	if fi.scopeDepth >= maxScopeDepth {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "can't exceed block depth of %d", maxScopeDepth)
	}
	fi.scopeDepth++
	return nil
}

// endScope closes the current scope, emitting one Pop per local that
// goes out of scope and trimming the locals table.
func (c *Compiler) endScope() {
	fi := c.current()
	fi.scopeDepth--
	for len(fi.locals) > 1 && fi.locals[len(fi.locals)-1].depth > fi.scopeDepth {
		c.emitOp(OpPop)
		fi.locals = fi.locals[:len(fi.locals)-1]
	}
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

func (c *Compiler) declaration() error {
	if c.match(compiler.TokenFun) {
		return c.functionDeclaration()
	}
	if c.match(compiler.TokenStr, compiler.TokenInt, compiler.TokenBool, compiler.TokenChar) {
		return c.varDeclaration()
	}
	return c.statement()
}

func (c *Compiler) statement() error {
	switch {
	case c.match(compiler.TokenPrint):
		return c.printStatement()
	case c.match(compiler.TokenFor):
		return c.forStatement()
	case c.match(compiler.TokenIf):
		return c.ifStatement()
	case c.match(compiler.TokenReturn):
		return c.returnStatement()
	case c.match(compiler.TokenWhile):
		return c.whileStatement()
	case c.match(compiler.TokenLeftBrace):
		if err := c.beginScope(); err != nil {
			return err
		}
		if err := c.block(); err != nil {
			return err
		}
		c.endScope()
		return nil
	default:
		return c.expressionStatement()
	}
}

func (c *Compiler) block() error {
	for !c.check(compiler.TokenRightBrace) && !c.check(compiler.TokenEOF) {
		if err := c.declaration(); err != nil {
			return err
		}
	}
	return c.consume(compiler.TokenRightBrace, "expected '}' after block")
}

// varDeclaration compiles `<type> name [= expr];`. With no initializer
// the variable takes the type's zero value.
func (c *Compiler) varDeclaration() error {
	varType := c.prev.Type
	index, err := c.parseVariable("expected variable name")
	if err != nil {
		return err
	}
	if c.match(compiler.TokenAssign) {
		if err := c.expression(); err != nil {
			return err
		}
	} else {
		if err := c.emitConstant(zeroValue(varType)); err != nil {
			return err
		}
	}
	if err := c.consume(compiler.TokenSemicolon, "expected ';' after variable declaration"); err != nil {
		return err
	}
	c.defineVariable(index)
	return nil
}

// zeroValue returns the default for a declared type: "" for str, 0 for
// int, false for bool, '\0' for char.
func zeroValue(varType compiler.TokenType) Value {
	switch varType {
	case compiler.TokenStr:
		return StrValue("")
	case compiler.TokenBool:
		return BoolValue(false)
	case compiler.TokenChar:
		return CharValue(0)
	}
	return IntValue(0)
}

// parseVariable consumes an identifier and declares it. At global scope
// the name is interned as a constant and its index returned; locals
// return 0 and live in the current frame instead.
func (c *Compiler) parseVariable(errMsg string) (uint8, error) {
	if err := c.consume(compiler.TokenIdentifier, errMsg); err != nil {
		return 0, err
	}
	if err := c.declareVariable(); err != nil {
		return 0, err
	}
	if c.current().scopeDepth > 0 {
		return 0, nil
	}
	return c.identifierConstant(c.prev.Lexeme)
}

func (c *Compiler) declareVariable() error {
	if c.current().scopeDepth == 0 {
		return nil
	}
	return c.current().addLocal(c.prev)
}

func (c *Compiler) defineVariable(global uint8) {
	if c.current().scopeDepth > 0 {
		c.current().markInitialized()
		return
	}
	c.emitWithOperand(OpDefineGlobal, global)
}

// functionDeclaration compiles `fun name(params) { body }`. The name is
// marked initialized before the body compiles so the function may call
// itself.
func (c *Compiler) functionDeclaration() error {
	global, err := c.parseVariable("expected function name")
	if err != nil {
		return err
	}
	name := c.prev.Lexeme
	c.current().markInitialized()
	if err := c.functionBody(name); err != nil {
		return err
	}
	c.defineVariable(global)
	return nil
}

// functionBody compiles the parameter list and body of a function on a
// fresh compilation context, then emits the Closure instruction with one
// (isLocal, index) operand pair per captured upvalue.
func (c *Compiler) functionBody(name string) error {
	if len(c.stack) >= maxFunctionDepth {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "functions nested too deeply")
	}
	info := newFunctionInfo(KindFunction, name)
	c.stack = append(c.stack, info)
	if err := c.beginScope(); err != nil {
		return err
	}

	if err := c.consume(compiler.TokenLeftParen, "expected '(' after function name"); err != nil {
		return err
	}
	if !c.check(compiler.TokenRightParen) {
		for {
			if info.function.ParamCount >= maxParams {
				return compileErrorf(c.curr().Line, c.curr().Lexeme,
					"can't have more than %d parameters", maxParams)
			}
			info.function.ParamCount++
			// The type keyword is required but only drives defaulting;
			// parameters are not type checked at runtime.
			if !c.match(compiler.TokenStr, compiler.TokenInt, compiler.TokenBool, compiler.TokenChar) {
				return compileErrorf(c.curr().Line, c.curr().Lexeme, "expected parameter type")
			}
			index, err := c.parseVariable("expected parameter name")
			if err != nil {
				return err
			}
			c.defineVariable(index)
			if !c.match(compiler.TokenComma) {
				break
			}
		}
	}
	if err := c.consume(compiler.TokenRightParen, "expected ')' after parameters"); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenLeftBrace, "expected '{' before function body"); err != nil {
		return err
	}
	if err := c.block(); err != nil {
		return err
	}
	c.emitReturn()

	c.stack = c.stack[:len(c.stack)-1]

	// The enclosing chunk holds a closure constant wrapping the finished
	// prototype; the VM resolves upvalue cells when it executes OpClosure.
	fn := info.function
	idx, err := c.makeConstant(ClosureValue(&Closure{Fn: fn}))
	if err != nil {
		return err
	}
	c.emitWithOperand(OpClosure, idx)
	for _, uv := range info.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
	return nil
}

func (c *Compiler) expressionStatement() error {
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenSemicolon, "expected ';' after expression"); err != nil {
		return err
	}
	c.emitOp(OpPop)
	return nil
}

func (c *Compiler) printStatement() error {
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenSemicolon, "expected ';' after value"); err != nil {
		return err
	}
	c.emitOp(OpPrint)
	return nil
}

func (c *Compiler) returnStatement() error {
	if c.current().kind == KindScript {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "top level code may not return")
	}
	if c.match(compiler.TokenSemicolon) {
		c.emitOp(OpEmpty)
	} else {
		if err := c.expression(); err != nil {
			return err
		}
		if err := c.consume(compiler.TokenSemicolon, "expected ';' after return value"); err != nil {
			return err
		}
	}
	c.emitOp(OpReturn)
	return nil
}

// ifStatement emits: cond, JumpIfFalse L1, Pop, then, Jump L2, L1:, Pop,
// [else], L2:. JumpIfFalse leaves the condition on the stack, so each
// arm pops it.
func (c *Compiler) ifStatement() error {
	if err := c.consume(compiler.TokenLeftParen, "expected '(' after 'if'"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenRightParen, "expected ')' after condition"); err != nil {
		return err
	}

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	if err := c.statement(); err != nil {
		return err
	}
	elseJump := c.emitJump(OpJump)
	if err := c.patchJump(thenJump); err != nil {
		return err
	}
	c.emitOp(OpPop)
	if c.match(compiler.TokenElse) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	return c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() error {
	loopStart := c.chunk().Len()
	if err := c.consume(compiler.TokenLeftParen, "expected '(' after 'while'"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenRightParen, "expected ')' after condition"); err != nil {
		return err
	}

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	if err := c.statement(); err != nil {
		return err
	}
	if err := c.emitLoop(loopStart); err != nil {
		return err
	}
	if err := c.patchJump(exitJump); err != nil {
		return err
	}
	c.emitOp(OpPop)
	return nil
}

// forStatement compiles `for (init; cond; step) body`. The step clause
// compiles before the body but executes after it, so the emitted code
// jumps over the step on the way in and loops back through it.
func (c *Compiler) forStatement() error {
	// Variables declared in the initializer are scoped to the loop.
	if err := c.beginScope(); err != nil {
		return err
	}
	if err := c.consume(compiler.TokenLeftParen, "expected '(' after 'for'"); err != nil {
		return err
	}

	switch {
	case c.match(compiler.TokenSemicolon):
		// no initializer
	case c.match(compiler.TokenInt, compiler.TokenChar, compiler.TokenStr, compiler.TokenBool):
		if err := c.varDeclaration(); err != nil {
			return err
		}
	default:
		if err := c.expressionStatement(); err != nil {
			return err
		}
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.match(compiler.TokenSemicolon) {
		if err := c.expression(); err != nil {
			return err
		}
		if err := c.consume(compiler.TokenSemicolon, "expected second ';' in 'for'"); err != nil {
			return err
		}
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(compiler.TokenRightParen) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := c.chunk().Len()
		if err := c.expression(); err != nil {
			return err
		}
		c.emitOp(OpPop)
		if err := c.consume(compiler.TokenRightParen, "expected ')' after 'for' clauses"); err != nil {
			return err
		}
		if err := c.emitLoop(loopStart); err != nil {
			return err
		}
		loopStart = incrementStart
		if err := c.patchJump(bodyJump); err != nil {
			return err
		}
	}

	if err := c.statement(); err != nil {
		return err
	}
	if err := c.emitLoop(loopStart); err != nil {
		return err
	}
	if exitJump >= 0 {
		if err := c.patchJump(exitJump); err != nil {
			return err
		}
		c.emitOp(OpPop)
	}
	c.endScope()
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expression() error {
	return c.parsePrecedence(PrecAssignment)
}

// parsePrecedence is the Pratt driver: dispatch the prefix handler for
// the first token, then fold infix handlers while the next token binds
// at least as tightly as precedence.
func (c *Compiler) parsePrecedence(precedence Precedence) error {
	c.advance()
	rule := getRule(c.prev.Type)
	if rule.prefix == nil {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "expected an expression")
	}
	canAssign := precedence <= PrecAssignment
	if err := rule.prefix(c, canAssign); err != nil {
		return err
	}

	for precedence <= getRule(c.curr().Type).precedence {
		c.advance()
		if err := getRule(c.prev.Type).infix(c, canAssign); err != nil {
			return err
		}
	}

	if canAssign && c.match(compiler.TokenAssign) {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "invalid assignment target")
	}
	return nil
}

func (c *Compiler) grouping(bool) error {
	if err := c.expression(); err != nil {
		return err
	}
	return c.consume(compiler.TokenRightParen, "expected ')' after expression")
}

// number compiles an integer literal. A decimal point truncates: the
// language has no float type.
func (c *Compiler) number(bool) error {
	lexeme := c.prev.Lexeme
	if dot := strings.IndexByte(lexeme, '.'); dot >= 0 {
		lexeme = lexeme[:dot]
	}
	n, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return compileErrorf(c.prev.Line, c.prev.Lexeme, "invalid number literal")
	}
	return c.emitConstant(IntValue(n))
}

func (c *Compiler) stringLiteral(bool) error {
	return c.emitConstant(StrValue(c.prev.Lexeme))
}

func (c *Compiler) literal(bool) error {
	switch c.prev.Type {
	case compiler.TokenTrue:
		c.emitOp(OpTrue)
	case compiler.TokenFalse:
		c.emitOp(OpFalse)
	}
	return nil
}

func (c *Compiler) unary(bool) error {
	operator := c.prev.Type
	if err := c.parsePrecedence(PrecUnary); err != nil {
		return err
	}
	switch operator {
	case compiler.TokenNot:
		c.emitOp(OpNot)
	case compiler.TokenMinus:
		c.emitOp(OpNegate)
	}
	return nil
}

func (c *Compiler) binary(bool) error {
	operator := c.prev.Type
	rule := getRule(operator)
	if err := c.parsePrecedence(rule.precedence + 1); err != nil {
		return err
	}

	switch operator {
	case compiler.TokenLessThan:
		c.emitOp(OpLess)
	case compiler.TokenGreaterThan:
		c.emitOp(OpGreater)
	case compiler.TokenIsEqual:
		c.emitOp(OpIsEqual)
	case compiler.TokenNotEqual:
		c.emitOps(OpIsEqual, OpNot)
	case compiler.TokenLessThanEqual:
		c.emitOps(OpGreater, OpNot)
	case compiler.TokenGreaterThanEqual:
		c.emitOps(OpLess, OpNot)
	case compiler.TokenPlus:
		c.emitOp(OpAdd)
	case compiler.TokenMinus:
		c.emitOp(OpSubtract)
	case compiler.TokenStar:
		c.emitOp(OpMultiply)
	case compiler.TokenSlash:
		c.emitOp(OpDivide)
	case compiler.TokenPercent:
		c.emitOp(OpModulus)
	}
	return nil
}

func (c *Compiler) call(bool) error {
	argCount, err := c.argumentList()
	if err != nil {
		return err
	}
	c.emitWithOperand(OpCall, argCount)
	return nil
}

func (c *Compiler) argumentList() (uint8, error) {
	argCount := 0
	if !c.check(compiler.TokenRightParen) {
		for {
			if err := c.expression(); err != nil {
				return 0, err
			}
			if argCount >= maxArguments {
				return 0, compileErrorf(c.curr().Line, c.curr().Lexeme,
					"can't have more than %d arguments", maxArguments)
			}
			argCount++
			if !c.match(compiler.TokenComma) {
				break
			}
		}
	}
	if err := c.consume(compiler.TokenRightParen, "expected ')' after arguments"); err != nil {
		return 0, err
	}
	return uint8(argCount), nil
}

// and short-circuits: with the lhs on the stack, skip the rhs when it is
// falsy. The un-popped lhs becomes the expression result.
func (c *Compiler) and(bool) error {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	if err := c.parsePrecedence(PrecAnd); err != nil {
		return err
	}
	return c.patchJump(endJump)
}

// or short-circuits: a truthy lhs jumps over the rhs and remains the
// result.
func (c *Compiler) or(bool) error {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)
	if err := c.patchJump(elseJump); err != nil {
		return err
	}
	c.emitOp(OpPop)
	if err := c.parsePrecedence(PrecOr); err != nil {
		return err
	}
	return c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) error {
	return c.namedVariable(c.prev, canAssign)
}

// namedVariable resolves a name in order: current function's locals,
// then upvalues through the enclosing compilations, then a global by
// constant-pool name. With canAssign and a following '=', it emits a
// store instead of a load.
func (c *Compiler) namedVariable(tok compiler.Token, canAssign bool) error {
	var getOp, setOp Opcode
	var index uint8

	if slot, ok, err := c.current().resolveLocal(tok); err != nil {
		return err
	} else if ok {
		getOp, setOp, index = OpGetLocal, OpSetLocal, slot
	} else if upvalue, ok, err := c.resolveUpvalue(len(c.stack)-1, tok); err != nil {
		return err
	} else if ok {
		getOp, setOp, index = OpGetUpvalue, OpSetUpvalue, upvalue
	} else {
		nameIndex, err := c.identifierConstant(tok.Lexeme)
		if err != nil {
			return err
		}
		getOp, setOp, index = OpGetGlobal, OpSetGlobal, nameIndex
	}

	if canAssign && c.match(compiler.TokenAssign) {
		if err := c.expression(); err != nil {
			return err
		}
		c.emitWithOperand(setOp, index)
	} else {
		c.emitWithOperand(getOp, index)
	}
	return nil
}

// resolveUpvalue looks for tok as a local of an enclosing function. On a
// hit every intermediate function records an upvalue, each level
// returning the index the next inner level captures.
func (c *Compiler) resolveUpvalue(level int, tok compiler.Token) (uint8, bool, error) {
	if level == 0 {
		return 0, false, nil // the script has no enclosing function
	}
	enclosing := c.stack[level-1]

	if slot, ok, err := enclosing.resolveLocal(tok); err != nil {
		return 0, false, err
	} else if ok {
		idx, err := c.stack[level].addUpvalue(tok, slot, true)
		return idx, err == nil, err
	}

	if upvalue, ok, err := c.resolveUpvalue(level-1, tok); err != nil {
		return 0, false, err
	} else if ok {
		idx, err := c.stack[level].addUpvalue(tok, upvalue, false)
		return idx, err == nil, err
	}
	return 0, false, nil
}
