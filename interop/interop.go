package interop

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

var fieldTypes = map[schema.Type]descriptorpb.FieldDescriptorProto_Type{
	schema.TypeDouble:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	schema.TypeFloat:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	schema.TypeInt64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	schema.TypeUint64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	schema.TypeInt32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	schema.TypeFixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	schema.TypeFixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	schema.TypeBool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	schema.TypeString:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	schema.TypeBytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	schema.TypeUint32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	schema.TypeSfixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	schema.TypeSfixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	schema.TypeSint32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	schema.TypeSint64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	schema.TypeEnum:     descriptorpb.FieldDescriptorProto_TYPE_ENUM,
	schema.TypeMessage:  descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
}

var fieldLabels = map[schema.Label]descriptorpb.FieldDescriptorProto_Label{
	schema.LabelOptional: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL,
	schema.LabelRequired: descriptorpb.FieldDescriptorProto_LABEL_REQUIRED,
	schema.LabelRepeated: descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
}

// FileDescriptorProto renders a linked file as a proto2 file descriptor.
// Files defining the types its fields reference are listed as dependencies.
func FileDescriptorProto(file *schema.File) (*descriptorpb.FileDescriptorProto, error) {
	if file == nil {
		return nil, protoerr.Argumentf("nil file")
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:   proto.String(file.Name()),
		Syntax: proto.String("proto2"),
	}
	if file.Package() != "" {
		fdp.Package = proto.String(file.Package())
	}

	for _, md := range file.Messages() {
		dp, err := messageProto(md)
		if err != nil {
			return nil, err
		}
		fdp.MessageType = append(fdp.MessageType, dp)
	}
	for _, ed := range file.Enums() {
		fdp.EnumType = append(fdp.EnumType, enumProto(ed))
	}
	for _, dep := range dependencies(file) {
		fdp.Dependency = append(fdp.Dependency, dep.Name())
	}
	return fdp, nil
}

func messageProto(md *schema.MessageDescriptor) (*descriptorpb.DescriptorProto, error) {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(md.Name())}

	for _, fd := range md.Fields() {
		f, err := fieldProto(fd)
		if err != nil {
			return nil, protoerr.WithField(err, md.FullName())
		}
		dp.Field = append(dp.Field, f)
	}
	for _, nested := range md.Messages() {
		n, err := messageProto(nested)
		if err != nil {
			return nil, err
		}
		dp.NestedType = append(dp.NestedType, n)
	}
	for _, ed := range md.Enums() {
		dp.EnumType = append(dp.EnumType, enumProto(ed))
	}
	for _, r := range md.ReservedRanges() {
		// descriptor ranges are end exclusive
		dp.ReservedRange = append(dp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(int32(r.Start)),
			End:   proto.Int32(int32(r.End) + 1),
		})
	}
	dp.ReservedName = md.ReservedNames()
	return dp, nil
}

func fieldProto(fd *schema.FieldDescriptor) (*descriptorpb.FieldDescriptorProto, error) {
	typ, ok := fieldTypes[fd.Type()]
	if !ok {
		return nil, protoerr.Structuralf("field %s has unsupported type %s", fd.Name(), fd.Type())
	}

	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(fd.Name()),
		Number: proto.Int32(int32(fd.Number())),
		Label:  fieldLabels[fd.Label()].Enum(),
		Type:   typ.Enum(),
	}
	if fd.TypeName() != "" {
		f.TypeName = proto.String("." + fd.TypeName())
	}
	if fd.Packed() {
		f.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(true)}
	}
	if fd.HasDefault() {
		v, _ := fd.Default()
		lit, err := defaultLiteral(fd, v)
		if err != nil {
			return nil, protoerr.WithField(err, fd.Name())
		}
		f.DefaultValue = proto.String(lit)
	}
	return f, nil
}

func enumProto(ed *schema.EnumDescriptor) *descriptorpb.EnumDescriptorProto {
	ep := &descriptorpb.EnumDescriptorProto{Name: proto.String(ed.Name())}
	for _, v := range ed.Values() {
		ep.Value = append(ep.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(v.Number),
		})
	}
	if ed.AllowAlias() {
		ep.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	return ep
}

// defaultLiteral renders a resolved default the way descriptor protos store
// it: strings raw, bytes C-escaped, enums by value name.
func defaultLiteral(fd *schema.FieldDescriptor, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return escapeBytes(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float32:
		return formatFloat(float64(t), 32), nil
	case float64:
		return formatFloat(t, 64), nil
	case int32:
		if fd.Type() == schema.TypeEnum {
			ev, ok := fd.Enum().ValueByNumber(t)
			if !ok {
				return "", protoerr.Structuralf("default %d is not a value of enum %s", t, fd.TypeName())
			}
			return ev.Name, nil
		}
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	}
	return "", protoerr.Structuralf("unsupported default %T", v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// escapeBytes C-escapes b with three digit octal escapes for every byte
// outside printable ASCII.
func escapeBytes(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '\\' || c == '"' || c == '\'':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteByte('\\')
			sb.WriteByte('0' + c>>6)
			sb.WriteByte('0' + (c>>3)&7)
			sb.WriteByte('0' + c&7)
		}
	}
	return sb.String()
}

// dependencies returns the other files defining types referenced by file's
// fields, in first reference order.
func dependencies(file *schema.File) []*schema.File {
	var deps []*schema.File
	seen := map[*schema.File]bool{file: true}
	for _, md := range file.AllMessages() {
		for _, fd := range md.Fields() {
			var dep *schema.File
			switch {
			case fd.Message() != nil:
				dep = fd.Message().File()
			case fd.Enum() != nil:
				dep = fd.Enum().File()
			}
			if dep == nil || seen[dep] {
				continue
			}
			seen[dep] = true
			deps = append(deps, dep)
		}
	}
	return deps
}

// FileDescriptor builds a protoreflect.FileDescriptor for file. The files it
// depends on are converted and registered first in a private
// protoregistry.Files.
func FileDescriptor(file *schema.File) (protoreflect.FileDescriptor, error) {
	if file == nil {
		return nil, protoerr.Argumentf("nil file")
	}
	b := &builder{
		files: new(protoregistry.Files),
		done:  map[*schema.File]protoreflect.FileDescriptor{},
		names: map[string]*schema.File{},
	}
	return b.build(file, nil)
}

type builder struct {
	files *protoregistry.Files
	done  map[*schema.File]protoreflect.FileDescriptor
	names map[string]*schema.File
}

func (b *builder) build(file *schema.File, visiting []*schema.File) (protoreflect.FileDescriptor, error) {
	if fd, ok := b.done[file]; ok {
		return fd, nil
	}
	for _, v := range visiting {
		if v == file {
			return nil, protoerr.Structuralf("import cycle through file %s", file.Name())
		}
	}
	if other, ok := b.names[file.Name()]; ok && other != file {
		return nil, protoerr.Structuralf("two different files named %s are referenced", file.Name())
	}
	b.names[file.Name()] = file

	visiting = append(visiting, file)
	for _, dep := range dependencies(file) {
		if _, err := b.build(dep, visiting); err != nil {
			return nil, err
		}
	}

	fdp, err := FileDescriptorProto(file)
	if err != nil {
		return nil, err
	}
	fd, err := protodesc.NewFile(fdp, b.files)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindStructural, errors.Wrapf(err, "building descriptor for %s", file.Name()), "descriptor rejected")
	}
	if err := b.files.RegisterFile(fd); err != nil {
		return nil, protoerr.Wrap(protoerr.KindStructural, errors.Wrapf(err, "registering %s", file.Name()), "descriptor rejected")
	}
	b.done[file] = fd
	return fd, nil
}
