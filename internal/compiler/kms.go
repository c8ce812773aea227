package compiler

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// KeyMagic scripts (.kms) are the classic text format for layouts:
//
//	/*
//	@NAME = "Myanmar Test"
//	@TRACK_CAPSLOCK = "FALSE"
//	*/
//	$cons = "ကခ" + U1002
//	include("common.kms")
//	$cons[*] + ('zg') => $cons[$1]
//	<VK_SHIFT & VK_KEY_A> => U1021
//
// A script parses into the same Source the CUE and YAML front ends produce,
// so the builder applies one set of checks to every format.

var reKMSOption = regexp.MustCompile(`@([A-Z_]+)\s*=\s*"([^"]*)"`)

type kmsKind int

const (
	kmsEOF kmsKind = iota
	kmsString
	kmsCodePoint
	kmsVariable
	kmsBackRef
	kmsIdent
	kmsPunct
)

type kmsToken struct {
	kind kmsKind
	text string // unescaped string, name without '$', or the symbol
	line int
}

func (t kmsToken) is(sym string) bool { return t.kind == kmsPunct && t.text == sym }

func (t kmsToken) String() string {
	switch t.kind {
	case kmsEOF:
		return "end of file"
	case kmsVariable, kmsBackRef:
		return "$" + t.text
	}
	return strconv.Quote(t.text)
}

type kmsOption struct {
	key, value string
	line       int
}

// kmsLexer splits a script into tokens. Options live in comments and are
// collected on the side.
type kmsLexer struct {
	src  string
	pos  int
	line int
	opts []kmsOption
}

func (lx *kmsLexer) next() (kmsToken, error) {
	for lx.pos < len(lx.src) {
		rest := lx.src[lx.pos:]
		switch {
		case rest[0] == '\n':
			lx.line++
			lx.pos++
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r':
			lx.pos++
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			}
			lx.comment(rest[2:end])
			lx.pos += end
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return kmsToken{}, fmt.Errorf("unterminated comment")
			}
			body := rest[2 : 2+end]
			lx.comment(body)
			lx.line += strings.Count(body, "\n")
			lx.pos += end + 4
		default:
			return lx.token()
		}
	}
	return kmsToken{kind: kmsEOF, line: lx.line}, nil
}

func (lx *kmsLexer) comment(body string) {
	for i, ln := range strings.Split(body, "\n") {
		for _, m := range reKMSOption.FindAllStringSubmatch(ln, -1) {
			lx.opts = append(lx.opts, kmsOption{key: m[1], value: m[2], line: lx.line + i})
		}
	}
}

func (lx *kmsLexer) token() (kmsToken, error) {
	rest := lx.src[lx.pos:]
	tok := kmsToken{line: lx.line}

	switch c := rest[0]; {
	case c == '"' || c == '\'':
		return lx.str(c)
	case c == '$':
		n := 1 + identLen(rest[1:])
		name := rest[1:n]
		switch {
		case name == "":
			return tok, fmt.Errorf("expected a name after '$'")
		case allDigits(name):
			tok.kind = kmsBackRef
		case name[0] >= '0' && name[0] <= '9':
			return tok, fmt.Errorf("invalid variable name $%s", name)
		default:
			tok.kind = kmsVariable
		}
		tok.text = name
		lx.pos += n
	case isIdentStart(c):
		n := identLen(rest)
		tok.kind, tok.text = kmsIdent, rest[:n]
		if reCodePoint.MatchString(tok.text) {
			tok.kind = kmsCodePoint
		}
		lx.pos += n
	case strings.HasPrefix(rest, "=>"):
		tok.kind, tok.text = kmsPunct, "=>"
		lx.pos += 2
	case strings.IndexByte(`+&\=()[]<>*^`, c) >= 0:
		tok.kind, tok.text = kmsPunct, string(c)
		lx.pos++
	default:
		r, _ := utf8.DecodeRuneInString(rest)
		return tok, fmt.Errorf("unexpected character %q", r)
	}
	return tok, nil
}

// str reads a quoted string. Recognised escapes are \n \r \t \\ \" \' \uXXXX
// and \xXX; any other backslash is kept as written.
func (lx *kmsLexer) str(quote byte) (kmsToken, error) {
	tok := kmsToken{kind: kmsString, line: lx.line}
	var sb strings.Builder
	for i := lx.pos + 1; i < len(lx.src); {
		c := lx.src[i]
		switch {
		case c == quote:
			lx.pos = i + 1
			tok.text = sb.String()
			return tok, nil
		case c == '\n':
			return tok, fmt.Errorf("unterminated string")
		case c == '\\' && i+1 < len(lx.src):
			n, err := unescape(&sb, lx.src[i+1:])
			if err != nil {
				return tok, err
			}
			i += 1 + n
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return tok, fmt.Errorf("unterminated string")
}

// unescape writes the escape at the start of rest and returns the bytes it
// consumed after the backslash.
func unescape(sb *strings.Builder, rest string) (int, error) {
	simple := map[byte]byte{'n': '\n', 'r': '\r', 't': '\t', '\\': '\\', '"': '"', '\'': '\''}
	if b, ok := simple[rest[0]]; ok {
		sb.WriteByte(b)
		return 1, nil
	}

	width := map[byte]int{'u': 4, 'x': 2}[rest[0]]
	if width > 0 && len(rest) > width {
		if n, err := strconv.ParseUint(rest[1:1+width], 16, 32); err == nil {
			r := rune(n)
			if !utf8.ValidRune(r) {
				return 0, fmt.Errorf(`\%s is not a Unicode scalar value`, rest[:1+width])
			}
			sb.WriteRune(r)
			return 1 + width, nil
		}
	}
	sb.WriteByte('\\')
	return 0, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identLen(s string) int {
	n := 0
	for n < len(s) && (isIdentStart(s[n]) || (s[n] >= '0' && s[n] <= '9')) {
		n++
	}
	return n
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// kmsStream walks the tokens of one file.
type kmsStream struct {
	file string
	toks []kmsToken
	pos  int
}

func (s *kmsStream) peek() kmsToken { return s.peekAt(0) }

func (s *kmsStream) peekAt(n int) kmsToken {
	if s.pos+n < len(s.toks) {
		return s.toks[s.pos+n]
	}
	return s.toks[len(s.toks)-1]
}

func (s *kmsStream) next() kmsToken {
	t := s.peek()
	if s.pos < len(s.toks)-1 {
		s.pos++
	}
	return t
}

func (s *kmsStream) accept(sym string) bool {
	if s.peek().is(sym) {
		s.next()
		return true
	}
	return false
}

func (s *kmsStream) expect(sym string) error {
	if t := s.next(); !t.is(sym) {
		return s.unexpected(t, strconv.Quote(sym))
	}
	return nil
}

// plus consumes a '+' and an optional line-continuation backslash after it.
func (s *kmsStream) plus() bool {
	if !s.accept("+") {
		return false
	}
	s.accept(`\`)
	return true
}

func (s *kmsStream) unexpected(t kmsToken, want string) error {
	return s.errorf(t.line, "syntax", "expected %s, got %s", want, t)
}

func (s *kmsStream) errorf(line int, field, format string, args ...any) error {
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...), File: s.file, Line: line}
}

// element reads one rule element and returns it in the source token form.
// Side checks are left to the builder. Empty strings yield "".
func (s *kmsStream) element() (string, error) {
	t := s.next()
	switch t.kind {
	case kmsString:
		if t.text == "" {
			return "", nil
		}
		return `\` + t.text, nil
	case kmsCodePoint:
		return t.text, nil
	case kmsBackRef:
		return "$" + t.text, nil
	case kmsVariable:
		if !s.accept("[") {
			return "$" + t.text, nil
		}
		var mod string
		switch m := s.next(); {
		case m.is("*"), m.is("^"):
			mod = m.text
		case m.kind == kmsBackRef:
			mod = "$" + m.text
		default:
			return "", s.unexpected(m, "*, ^ or a back reference")
		}
		if err := s.expect("]"); err != nil {
			return "", err
		}
		return fmt.Sprintf("$%s[%s]", t.text, mod), nil
	case kmsIdent:
		switch t.text {
		case "ANY":
			return "ANY", nil
		case "NULL", "null":
			return "NULL", nil
		}
	case kmsPunct:
		switch t.text {
		case "<":
			var keys []string
			for {
				k := s.next()
				if k.kind != kmsIdent {
					return "", s.unexpected(k, "a virtual key name")
				}
				keys = append(keys, k.text)
				if !s.accept("&") {
					break
				}
			}
			if err := s.expect(">"); err != nil {
				return "", err
			}
			return "<" + strings.Join(keys, " & ") + ">", nil
		case "(":
			st := s.next()
			if st.kind != kmsString || st.text == "" || strings.Contains(st.text, "'") {
				return "", s.unexpected(st, "a state name")
			}
			if err := s.expect(")"); err != nil {
				return "", err
			}
			return "('" + st.text + "')", nil
		}
	}
	return "", s.unexpected(t, "a rule element")
}

// kmsParser accumulates one Source across a script and its includes.
type kmsParser struct {
	src    *Source
	active map[string]bool // files on the include stack
}

// ParseKMSFile reads a KeyMagic script. include("file") statements resolve
// relative to the including file and are spliced in where they appear.
func ParseKMSFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKMS(data, path)
}

// ParseKMS parses a script held in memory. filename locates includes and the
// icon, and names the keyboard when the script has no @NAME.
func ParseKMS(data []byte, filename string) (*Source, error) {
	p := &kmsParser{src: &Source{}, active: make(map[string]bool)}
	if err := p.parse(data, filename, true); err != nil {
		return nil, err
	}
	if p.src.Name == "" {
		p.src.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return p.src, nil
}

func (p *kmsParser) parse(data []byte, filename string, top bool) error {
	key := absPath(filename)
	p.active[key] = true
	defer delete(p.active, key)

	text, err := decodeScript(data)
	if err != nil {
		return &CompileError{Field: "source", Message: err.Error(), File: filename}
	}

	lx := &kmsLexer{src: text, line: 1}
	s := &kmsStream{file: filename}
	for {
		t, err := lx.next()
		if err != nil {
			return s.errorf(lx.line, "syntax", "%s", err.Error())
		}
		s.toks = append(s.toks, t)
		if t.kind == kmsEOF {
			break
		}
	}

	// Options of included files are ignored.
	if top {
		if err := p.options(lx.opts, filename); err != nil {
			return err
		}
	}

	for s.peek().kind != kmsEOF {
		var err error
		switch t := s.peek(); {
		case t.kind == kmsIdent && t.text == "include":
			err = p.include(s)
		case t.kind == kmsVariable && s.peekAt(1).is("="):
			err = p.variable(s)
		default:
			err = p.rule(s)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *kmsParser) include(s *kmsStream) error {
	kw := s.next()
	if err := s.expect("("); err != nil {
		return err
	}
	path := s.next()
	if path.kind != kmsString || path.text == "" {
		return s.unexpected(path, "an include path")
	}
	if err := s.expect(")"); err != nil {
		return err
	}

	target := relativeTo(s.file, path.text)
	if p.active[absPath(target)] {
		return s.errorf(kw.line, "include", "circular include of %s", path.text)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return s.errorf(kw.line, "include", "%v", err)
	}
	return p.parse(data, target, false)
}

func (p *kmsParser) variable(s *kmsStream) error {
	name := s.next()
	s.next() // '='

	v := Var{Name: name.text, Line: name.line}
	for {
		switch t := s.next(); t.kind {
		case kmsString:
			if t.text != "" {
				v.Value = append(v.Value, `\`+t.text)
			}
		case kmsCodePoint:
			v.Value = append(v.Value, t.text)
		case kmsVariable:
			v.Value = append(v.Value, "$"+t.text)
		default:
			return s.unexpected(t, "a string, code point or variable")
		}
		if !s.plus() {
			break
		}
	}
	p.src.Vars = append(p.src.Vars, v)
	return nil
}

func (p *kmsParser) rule(s *kmsStream) error {
	r := RuleSource{Line: s.peek().line}

	for !s.peek().is("=>") {
		if s.peek().kind == kmsEOF {
			return s.unexpected(s.peek(), `"=>"`)
		}
		tok, err := s.element()
		if err != nil {
			return err
		}
		if tok != "" {
			r.LHS = append(r.LHS, tok)
		}
		s.plus()
	}
	s.next() // '=>'

	for {
		tok, err := s.element()
		if err != nil {
			return err
		}
		if tok != "" {
			r.RHS = append(r.RHS, tok)
		}
		if !s.plus() {
			break
		}
	}
	p.src.Rules = append(p.src.Rules, r)
	return nil
}

func (p *kmsParser) options(opts []kmsOption, filename string) error {
	flags := map[string]**bool{
		"TRACK_CAPSLOCK":         &p.src.Options.TrackCaps,
		"SMART_BACKSPACE":        &p.src.Options.SmartBackspace,
		"EAT_ALL_UNUSED_KEYS":    &p.src.Options.EatUnusedKeys,
		"US_LAYOUT_BASED":        &p.src.Options.USLayoutBased,
		"TREAT_CTRL_ALT_AS_RALT": &p.src.Options.TreatCtrlAltAsRightAlt,
	}

	for _, o := range opts {
		switch o.key {
		case "NAME":
			p.src.Name = o.value
		case "DESCRIPTION":
			p.src.Description = o.value
		case "FONTFAMILY":
			p.src.Font = o.value
		case "HOTKEY":
			p.src.Hotkey = o.value
		case "ICON":
			data, err := os.ReadFile(relativeTo(filename, o.value))
			if err != nil {
				return &CompileError{Field: "options.ICON", Message: err.Error(), File: filename, Line: o.line}
			}
			p.src.Icon = base64.StdEncoding.EncodeToString(data)
		default:
			if dst, ok := flags[o.key]; ok {
				b := strings.EqualFold(o.value, "TRUE")
				*dst = &b
			}
		}
	}
	return nil
}

// decodeScript strips a byte order mark and converts UTF-16 scripts that
// carry one. Invalid UTF-8 decodes to U+FFFD.
func decodeScript(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func relativeTo(file, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(file), path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
