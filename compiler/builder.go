package compiler

import (
	"math"
	"strconv"
	"strings"

	"github.com/yoheimuta/go-protoparser/v4/parser"
	"go.uber.org/zap"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

// builder carries the state of one compilation.
type builder struct {
	c    *Compiler
	name string
	file *schema.File

	// parse tree nodes of every declared message, in declaration order
	pending []pendingMessage
}

type pendingMessage struct {
	node *parser.Message
	desc *schema.MessageDescriptor
}

func newBuilder(c *Compiler, name string) *builder {
	return &builder{c: c, name: name}
}

func (b *builder) build(proto *parser.Proto) (*schema.File, error) {
	pkg, err := b.scanHeader(proto)
	if err != nil {
		return nil, err
	}
	b.file = schema.NewFile(b.name, pkg)

	// Pass 1: declare every message and enum.
	for _, body := range proto.ProtoBody {
		switch v := body.(type) {
		case *parser.Message:
			md, err := b.file.NewMessage(v.MessageName)
			if err != nil {
				return nil, err
			}
			if err := b.declareMessage(v, md); err != nil {
				return nil, err
			}
		case *parser.Enum:
			ed, err := b.file.NewEnum(v.EnumName)
			if err != nil {
				return nil, err
			}
			if err := b.defineEnum(v, ed); err != nil {
				return nil, err
			}
		}
	}

	// Pass 2: define fields now that every local name is known.
	for _, p := range b.pending {
		if err := b.defineMessage(p.node, p.desc); err != nil {
			return nil, err
		}
	}

	if err := b.file.Link(b.c.reg); err != nil {
		return nil, err
	}
	if err := b.file.Seal(); err != nil {
		return nil, err
	}
	return b.file, nil
}

// scanHeader handles the top-level statements that are not type
// definitions and returns the package name.
func (b *builder) scanHeader(proto *parser.Proto) (string, error) {
	var pkg string
	seenPackage := false

	if proto.Syntax != nil {
		if v := strings.Trim(proto.Syntax.ProtobufVersion, `"'`); v != "proto2" {
			Logger().Warn("schema declares a syntax other than proto2; compiling with proto2 rules",
				zap.String("file", b.name), zap.String("syntax", v))
		}
	}

	for _, body := range proto.ProtoBody {
		switch v := body.(type) {
		case *parser.Package:
			if seenPackage {
				return "", protoerr.Structuralf("multiple package statements")
			}
			seenPackage = true
			pkg = v.Name
		case *parser.Import:
			if b.c.strictImports {
				return "", protoerr.Structuralf("import %s: imports are not supported", v.Location)
			}
			Logger().Info("ignoring import", zap.String("file", b.name), zap.String("import", v.Location))
		case *parser.Service:
			Logger().Info("ignoring service", zap.String("file", b.name), zap.String("service", v.ServiceName))
		case *parser.Extend:
			return "", protoerr.Structuralf("extend %s: extensions are not supported", v.MessageType)
		case *parser.Option:
			Logger().Debug("ignoring file option", zap.String("file", b.name), zap.String("option", v.OptionName))
		}
	}
	return pkg, nil
}

// declareMessage declares the types nested in node and queues node for the
// second pass.
func (b *builder) declareMessage(node *parser.Message, md *schema.MessageDescriptor) error {
	b.pending = append(b.pending, pendingMessage{node: node, desc: md})

	for _, body := range node.MessageBody {
		switch v := body.(type) {
		case *parser.Message:
			nested, err := md.NewMessage(v.MessageName)
			if err != nil {
				return err
			}
			if err := b.declareMessage(v, nested); err != nil {
				return err
			}
		case *parser.Enum:
			nested, err := md.NewEnum(v.EnumName)
			if err != nil {
				return err
			}
			if err := b.defineEnum(v, nested); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) defineEnum(node *parser.Enum, ed *schema.EnumDescriptor) error {
	// allow_alias has to be known before the aliased values are added.
	for _, body := range node.EnumBody {
		if opt, ok := body.(*parser.Option); ok && opt.OptionName == "allow_alias" {
			allow, err := parseBool(opt.Constant)
			if err != nil {
				return protoerr.Structuralf("enum %s: invalid allow_alias value %s", ed.FullName(), opt.Constant)
			}
			if err := ed.SetAllowAlias(allow); err != nil {
				return err
			}
		}
	}

	for _, body := range node.EnumBody {
		switch v := body.(type) {
		case *parser.EnumField:
			n, err := parseEnumNumber(v.Number)
			if err != nil {
				return protoerr.Structuralf("enum %s: value %s: %v", ed.FullName(), v.Ident, err)
			}
			if err := ed.AddValue(v.Ident, n); err != nil {
				return err
			}
		case *parser.Reserved:
			Logger().Debug("ignoring enum reserved statement", zap.String("enum", ed.FullName()))
		}
	}
	return nil
}

func (b *builder) defineMessage(node *parser.Message, md *schema.MessageDescriptor) error {
	// Reserved statements first so fields declared before them are checked.
	for _, body := range node.MessageBody {
		if v, ok := body.(*parser.Reserved); ok {
			if err := b.reserve(v, md); err != nil {
				return err
			}
		}
	}

	for _, body := range node.MessageBody {
		switch v := body.(type) {
		case *parser.Field:
			if err := b.defineField(v, md); err != nil {
				return protoerr.WithField(err, md.FullName())
			}
		case *parser.MapField:
			return protoerr.Structuralf("message %s: map field %s is not supported", md.FullName(), v.MapName)
		case *parser.Oneof:
			return protoerr.Structuralf("message %s: oneof %s is not supported", md.FullName(), v.OneofName)
		case *parser.GroupField:
			return protoerr.Structuralf("message %s: group %s is not supported", md.FullName(), v.GroupName)
		case *parser.Extensions:
			return protoerr.Structuralf("message %s: extension ranges are not supported", md.FullName())
		case *parser.Extend:
			return protoerr.Structuralf("message %s: extend %s is not supported", md.FullName(), v.MessageType)
		case *parser.Option:
			Logger().Debug("ignoring message option",
				zap.String("message", md.FullName()), zap.String("option", v.OptionName))
		}
	}
	return nil
}

func (b *builder) reserve(node *parser.Reserved, md *schema.MessageDescriptor) error {
	for _, r := range node.Ranges {
		start, err := parseFieldNumber(r.Begin)
		if err != nil {
			return protoerr.Structuralf("message %s: invalid reserved number %s", md.FullName(), r.Begin)
		}
		end := start
		switch {
		case r.End == "max":
			end = schema.FieldNumber(1<<29 - 1)
		case r.End != "":
			if end, err = parseFieldNumber(r.End); err != nil {
				return protoerr.Structuralf("message %s: invalid reserved number %s", md.FullName(), r.End)
			}
		}
		if err := md.Reserve(start, end); err != nil {
			return err
		}
	}
	for _, name := range node.FieldNames {
		if err := md.ReserveName(strings.Trim(name, `"'`)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) defineField(node *parser.Field, md *schema.MessageDescriptor) error {
	label := schema.LabelOptional
	switch {
	case node.IsRepeated:
		label = schema.LabelRepeated
	case node.IsRequired:
		label = schema.LabelRequired
	}

	number, err := parseFieldNumber(node.FieldNumber)
	if err != nil {
		return protoerr.Structuralf("field %s: invalid number %s", node.FieldName, node.FieldNumber)
	}

	var opts []schema.FieldOption
	typ, ok := schema.ParseScalarType(node.Type)
	if !ok {
		fullName, kind, err := b.resolveType(node.Type, md)
		if err != nil {
			return protoerr.WithField(err, node.FieldName)
		}
		typ = kind
		opts = append(opts, schema.WithTypeName(fullName))
	}

	for _, opt := range node.FieldOptions {
		switch opt.OptionName {
		case "default":
			opts = append(opts, schema.WithDefault(opt.Constant))
		case "packed":
			packed, err := parseBool(opt.Constant)
			if err != nil {
				return protoerr.Structuralf("field %s: invalid packed value %s", node.FieldName, opt.Constant)
			}
			if packed {
				opts = append(opts, schema.WithPacked())
			}
		default:
			Logger().Debug("ignoring field option",
				zap.String("field", md.FullName()+"."+node.FieldName), zap.String("option", opt.OptionName))
		}
	}

	_, err = md.DefineField(label, typ, node.FieldName, number, opts...)
	return err
}

// resolveType finds the message or enum a field type refers to, searching
// from the innermost scope outward. The whole scope walk runs against the
// file being compiled before the registry is consulted, so stale entries of
// an earlier compilation never shadow the file's own types.
func (b *builder) resolveType(typeName string, md *schema.MessageDescriptor) (string, schema.Type, error) {
	reg := b.c.reg
	inFile := func(name string) bool {
		return b.file.FindMessage(name) != nil || b.file.FindEnum(name) != nil
	}

	fullName, ok := registry.ResolveName(typeName, md.FullName(), inFile)
	if !ok {
		fullName, ok = registry.ResolveName(typeName, md.FullName(), reg.Has)
	}
	if !ok {
		return "", schema.TypeInvalid, protoerr.Structuralf("unknown type %s", typeName)
	}

	switch {
	case b.file.FindMessage(fullName) != nil:
		return fullName, schema.TypeMessage, nil
	case b.file.FindEnum(fullName) != nil:
		return fullName, schema.TypeEnum, nil
	case reg.FindMessage(fullName) != nil:
		return fullName, schema.TypeMessage, nil
	default:
		return fullName, schema.TypeEnum, nil
	}
}

func parseFieldNumber(s string) (schema.FieldNumber, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, strconv.ErrRange
	}
	return schema.FieldNumber(n), nil
}

func parseEnumNumber(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
