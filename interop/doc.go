/*
Package interop bridges compiled schemas to google.golang.org/protobuf.

FileDescriptorProto renders a schema.File as a proto2
descriptorpb.FileDescriptorProto, and FileDescriptor builds a
protoreflect.FileDescriptor from it, registering the files it depends on
first. The result can back dynamicpb messages, so bytes produced by this
module can be read and written by the reference implementation:

	fd, err := interop.FileDescriptor(file)
	if err != nil {
		return err
	}
	dyn := dynamicpb.NewMessage(fd.Messages().ByName("Person"))
	if err := proto.Unmarshal(data, dyn); err != nil {
		return err
	}
*/
package interop
