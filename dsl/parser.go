package dsl

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+|\.\d+)(?:pt|mm|cm|in|deg|%|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	tokenNames = func() map[lexer.TokenType]string {
		names := map[lexer.TokenType]string{}
		for name, tt := range dslLexer.Symbols() {
			names[tt] = name
		}
		return names
	}()
	tokNewline = dslLexer.Symbols()["Newline"]
	tokLBrace  = dslLexer.Symbols()["LBrace"]
	tokRBrace  = dslLexer.Symbols()["RBrace"]
	tokSymbol  = dslLexer.Symbols()["Symbol"]
	tokString  = dslLexer.Symbols()["String"]

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// Document is the root AST node for a quire document.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'doc' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Pages returns the page sections in document order.
func (d *Document) Pages() []*PageSection {
	if d == nil {
		return nil
	}
	var out []*PageSection
	for _, s := range d.Sections {
		if s.Page != nil {
			out = append(out, s.Page)
		}
	}
	return out
}

// Resources returns the statements of every resources section, in order.
func (d *Document) Resources() []*Statement {
	if d == nil {
		return nil
	}
	var out []*Statement
	for _, s := range d.Sections {
		if s.Resources != nil && s.Resources.Block != nil {
			out = append(out, s.Resources.Block.Statements...)
		}
	}
	return out
}

// Section represents a top-level section (meta/resources/page).
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Page      *PageSection      `parser:"| @@"`
}

// Kind names the populated alternative: meta, resources, page or unknown.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Page != nil:
		return "page"
	default:
		return "unknown"
	}
}

// MetaSection holds document metadata such as title and author.
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// ResourcesSection declares fonts, images, colors and styles.
type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// PageSection is a `page <size> [params] { ... }` block.
type PageSection struct {
	Spec  PageSpec `parser:"'page' @@"`
	Block *Block   `parser:"@@"`
}

// PageSpec is the page header: a paper size followed by loose parameters
// like landscape or margin values.
type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

// Block is the braced body of a section or command.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement is one entry of a block.
type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

// Assignment is a `key: value` property, as found in meta blocks and style bodies.
type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// Command describes a layout instruction such as flow, text, span or image.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// Texts returns the string literals directly inside the command's block.
func (c *Command) Texts() []string {
	if c == nil || c.Block == nil {
		return nil
	}
	var out []string
	for _, st := range c.Block.Statements {
		if st.Text != nil {
			out = append(out, string(st.Text.Value))
		}
	}
	return out
}

// TextLiteral is a bare string inside a text or span block.
type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value is the right-hand side of an assignment.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Array  *ArrayValue    `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue is a bracketed list; items are separated by commas, semicolons or newlines.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

// Expression keeps the tokens of a value that is neither a literal nor a list,
// such as a resource name or a binding path.
type Expression struct {
	Parts []*Lexeme
}

// Parse consumes tokens up to the end of the value. Separators nested in
// parentheses or brackets do not end it.
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var n nesting
	for tok := lex.Peek(); !tok.EOF() && !n.ends(tok); tok = lex.Peek() {
		lexeme, err := toLexeme(*lex.Next())
		if err != nil {
			return err
		}
		n.track(lexeme.Raw)
		e.Parts = append(e.Parts, &lexeme)
	}
	if len(e.Parts) == 0 {
		return participle.NextMatch
	}
	return nil
}

// nesting counts the open parentheses and brackets of an expression.
type nesting struct{ parens, brackets int }

func (n *nesting) track(raw string) {
	switch raw {
	case "(":
		n.parens++
	case ")":
		n.parens = max(n.parens-1, 0)
	case "[":
		n.brackets++
	case "]":
		n.brackets = max(n.brackets-1, 0)
	}
}

// ends reports whether tok terminates the value at the current depth. A
// closing bracket only ends it when it belongs to an enclosing list.
func (n nesting) ends(tok *lexer.Token) bool {
	top := n.parens == 0 && n.brackets == 0
	switch tok.Type {
	case tokNewline, tokLBrace, tokRBrace:
		return top
	case tokSymbol:
		switch tok.Value {
		case ";", ",":
			return top
		case "]":
			return n.brackets == 0
		}
	}
	return false
}

// Lexeme is one token of a command argument list or expression. String
// tokens carry their unquoted text in Value and the source form in Raw.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse takes the next token unless it ends the argument list: a newline, a
// brace or a semicolon.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if tok.EOF() || tok.Type == tokNewline || tok.Type == tokLBrace || tok.Type == tokRBrace ||
		(tok.Type == tokSymbol && tok.Value == ";") {
		return participle.NextMatch
	}
	lexeme, err := toLexeme(*lex.Next())
	if err != nil {
		return err
	}
	*l = lexeme
	return nil
}

// StringLiteral is a double-quoted string with Go escape rules.
type StringLiteral string

// Capture unquotes the captured token.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse reads a document from r. name appears in error positions.
func Parse(name string, r io.Reader) (*Document, error) {
	doc, err := documentParser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("dsl: %w", err)
	}
	return doc, nil
}

// ParseString parses a document held in memory.
func ParseString(input string) (*Document, error) {
	return Parse("", strings.NewReader(input))
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// toLexeme converts a raw token, unquoting string literals.
func toLexeme(tok lexer.Token) (Lexeme, error) {
	name, ok := tokenNames[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	lexeme := Lexeme{Type: name, Value: tok.Value, Raw: tok.Value, Pos: tok.Pos}
	if tok.Type == tokString {
		v, err := strconv.Unquote(tok.Value)
		if err != nil {
			return Lexeme{}, fmt.Errorf("%s: %w", tok.Pos, err)
		}
		lexeme.Value = v
	}
	return lexeme, nil
}
