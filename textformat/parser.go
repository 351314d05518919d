package textformat

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/johnsiilver/halfpike"

	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// textParser holds the state for parsing text into a message.
type textParser struct {
	root *message.Message
	opts unmarshalOptions
	err  error
}

func parse(text string, m *message.Message, opts unmarshalOptions) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	p := &textParser{root: m, opts: opts}
	err := halfpike.Parse(context.Background(), text, p)
	if p.err != nil {
		return p.err
	}
	if err != nil {
		return protoerr.Wrap(protoerr.KindStructural, err, "parsing text")
	}
	return nil
}

// Validate implements halfpike.Validator.
func (p *textParser) Validate() error {
	return p.err
}

// Start is the entry point for halfpike parsing.
func (p *textParser) Start(_ context.Context, hp *halfpike.Parser) halfpike.ParseFn {
	p.err = p.block(hp, p.root, 0)
	return nil
}

// block parses fields until the closing brace of a nested block, or the end
// of input at the top level. A nil m parses and discards the fields.
func (p *textParser) block(hp *halfpike.Parser, m *message.Message, depth int) error {
	for {
		p.skipComments(hp)

		line := hp.Next()
		if hp.EOF(line) {
			if depth > 0 {
				return syntaxErr(line, "unexpected end of input inside a message block")
			}
			return nil
		}

		words := lineWords(line)
		if words[0] == "}" {
			if depth == 0 {
				return syntaxErr(line, "unmatched '}'")
			}
			if len(words) > 1 {
				return syntaxErr(line, "unexpected %q after '}'", words[1])
			}
			return nil
		}

		if err := p.field(hp, m, line, words, depth); err != nil {
			return err
		}
	}
}

// skipComments skips empty lines and lines starting with # or //.
func (p *textParser) skipComments(hp *halfpike.Parser) {
	for {
		line := hp.Next()
		if hp.EOF(line) {
			hp.Backup()
			return
		}

		words := lineWords(line)
		if len(words) == 0 || strings.HasPrefix(words[0], "#") || strings.HasPrefix(words[0], "//") {
			continue
		}

		hp.Backup()
		return
	}
}

// field parses one "name: value" line or "name {" block.
func (p *textParser) field(hp *halfpike.Parser, m *message.Message, line halfpike.Line, words []string, depth int) error {
	name, value, err := splitField(line, words)
	if err != nil {
		return err
	}

	var fd *schema.FieldDescriptor
	if m != nil {
		fd = m.Descriptor().FieldByName(name)
		if fd == nil && !p.opts.ignoreUnknown {
			return syntaxErr(line, "message %s has no field %s", m.Descriptor().FullName(), name)
		}
	}

	if value[0] == "{" {
		if len(value) > 1 {
			return syntaxErr(line, "unexpected %q after '{'", value[1])
		}
		if fd == nil {
			return p.block(hp, nil, depth+1)
		}
		if fd.Type() != schema.TypeMessage {
			return atLine(protoerr.WithField(protoerr.Typef("%s field cannot hold a message block", fd.Type()), name), line)
		}
		if depth+1 >= message.DefaultMaxDepth {
			return syntaxErr(line, "exceeded maximum nesting depth %d", message.DefaultMaxDepth)
		}

		child, err := message.Empty(fd.Message())
		if err != nil {
			return err
		}
		if err := p.block(hp, child, depth+1); err != nil {
			return protoerr.WithField(err, name)
		}
		return atLine(assign(m, fd, child), line)
	}

	if fd == nil {
		return nil
	}
	if fd.Type() == schema.TypeMessage {
		return atLine(protoerr.WithField(protoerr.Typef("message field needs a '{' block"), name), line)
	}

	v, err := scalar(fd, value, rawValue(line))
	if err != nil {
		return atLine(protoerr.WithField(err, name), line)
	}
	return atLine(assign(m, fd, v), line)
}

// splitField separates the field name from its value words. The colon may be
// attached to the name or stand alone, and is optional before a block.
func splitField(line halfpike.Line, words []string) (string, []string, error) {
	first := words[0]
	var name string
	var value []string

	switch i := strings.IndexByte(first, ':'); {
	case i >= 0:
		name = first[:i]
		if tail := first[i+1:]; tail != "" {
			value = append([]string{tail}, words[1:]...)
		} else {
			value = words[1:]
		}
	case len(words) > 1 && words[1] == ":":
		name, value = first, words[2:]
	case len(words) > 1 && words[1] == "{":
		name, value = first, words[1:]
	case strings.HasSuffix(first, "{") && len(first) > 1:
		name, value = strings.TrimSuffix(first, "{"), append([]string{"{"}, words[1:]...)
	default:
		return "", nil, syntaxErr(line, "expected ':' after field name %q", first)
	}

	if name == "" {
		return "", nil, syntaxErr(line, "missing field name")
	}
	if len(value) == 0 {
		return "", nil, syntaxErr(line, "expected value after field %s", name)
	}
	return name, value, nil
}

func assign(m *message.Message, fd *schema.FieldDescriptor, v any) error {
	if fd.IsRepeated() {
		return m.Append(fd.Name(), v)
	}
	return m.Set(fd.Name(), v)
}

// scalar converts the value words of a line into a Go value for fd. raw is
// the line text after the colon, used for quoted strings that contain
// whitespace.
func scalar(fd *schema.FieldDescriptor, words []string, raw string) (any, error) {
	typ := fd.Type()
	if typ == schema.TypeString || typ == schema.TypeBytes {
		if !strings.HasPrefix(raw, `"`) {
			return nil, protoerr.Typef("%s field needs a quoted value, got %s", typ, words[0])
		}
		s, err := strconv.Unquote(raw)
		if err != nil {
			return nil, protoerr.Structuralf("invalid quoted string %s", raw)
		}
		if typ == schema.TypeBytes {
			return []byte(s), nil
		}
		return s, nil
	}

	if len(words) > 1 {
		return nil, protoerr.Structuralf("unexpected %q after value", words[1])
	}
	tok := words[0]

	switch {
	case typ == schema.TypeEnum:
		if isNumber(tok) {
			return parseInteger(tok)
		}
		return tok, nil
	case typ.IsInteger():
		return parseInteger(tok)
	case typ.IsFloat():
		return parseFloat(tok)
	case typ == schema.TypeBool:
		switch tok {
		case "true", "True", "t", "1":
			return true, nil
		case "false", "False", "f", "0":
			return false, nil
		}
		return nil, protoerr.Typef("invalid bool %q", tok)
	}
	return nil, protoerr.Typef("unsupported field type %s", typ)
}

func parseInteger(tok string) (any, error) {
	if n, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(tok, 0, 64); err == nil {
		return n, nil
	}
	if isNumber(tok) {
		return nil, protoerr.Argumentf("integer %s out of range", tok)
	}
	return nil, protoerr.Typef("invalid integer %q", tok)
}

func parseFloat(tok string) (any, error) {
	switch strings.ToLower(tok) {
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.TrimRight(tok, "fF"), 64)
	if err != nil {
		return nil, protoerr.Typef("invalid number %q", tok)
	}
	return f, nil
}

// isNumber checks if the string looks like a number.
func isNumber(s string) bool {
	if len(s) == 0 {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
		if len(s) == 1 {
			return false
		}
	}
	return s[start] >= '0' && s[start] <= '9'
}

// lineWords returns the non-blank items of a line.
func lineWords(line halfpike.Line) []string {
	words := make([]string, 0, len(line.Items))
	for _, item := range line.Items {
		if v := strings.TrimSpace(item.Val); v != "" {
			words = append(words, v)
		}
	}
	return words
}

// rawValue returns the text after the first colon of a line.
func rawValue(line halfpike.Line) string {
	i := strings.IndexByte(line.Raw, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line.Raw[i+1:])
}

func syntaxErr(line halfpike.Line, format string, args ...any) error {
	return atLine(protoerr.Structuralf(format, args...), line)
}

// atLine prefixes the detail of a protoerr.Error with the line number.
func atLine(err error, line halfpike.Line) error {
	pe, ok := err.(*protoerr.Error)
	if !ok {
		return err
	}
	out := *pe
	out.Detail = "line " + strconv.Itoa(line.LineNum) + ": " + pe.Detail
	return &out
}
