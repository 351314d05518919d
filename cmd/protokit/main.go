// Command protokit encodes, decodes and describes protobuf messages using
// .proto schemas loaded at run time.
//
// Usage:
//
//	protokit encode -schema f.proto -type pkg.Msg -in data.json [-out f.bin]
//	protokit decode -schema f.proto -type pkg.Msg -in f.bin [-format json|yaml|text]
//	protokit describe -schema f.proto
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/protokit"
	"github.com/anirudhraja/protokit/compiler"
	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
	"github.com/anirudhraja/protokit/textformat"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "protokit: %v\n", err)
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `protokit

Usage:
  protokit encode -schema f.proto -type pkg.Msg [-in data.json|data.yaml|data.txt] [-out f.bin]
  protokit decode -schema f.proto -type pkg.Msg [-in f.bin] [-format json|yaml|text]
  protokit describe -schema f.proto

Every command also takes -config protokit.toml, -log-level, -discard-unknown,
-allow-partial, -max-depth and -strict-imports. Flags override the config file.`)
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.Wrap(errUsage, "no command given")
	}
	switch args[0] {
	case "encode":
		return encodeCmd(args[1:], stdin, stdout)
	case "decode":
		return decodeCmd(args[1:], stdin, stdout)
	case "describe":
		return describeCmd(args[1:], stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		return errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
}

// setup parses the flags of a subcommand, builds the logger and loads the
// schema.
func setup(fs *flag.FlagSet, common *commonFlags, args []string) (config, *protokit.Protokit, *zap.Logger, error) {
	if err := fs.Parse(args); err != nil {
		return config{}, nil, nil, errors.Wrap(errUsage, err.Error())
	}
	if fs.NArg() > 0 {
		return config{}, nil, nil, errors.Wrapf(errUsage, "unexpected argument %q", fs.Arg(0))
	}
	cfg, err := common.resolve(fs)
	if err != nil {
		return config{}, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config{}, nil, nil, err
	}
	registry.SetLogger(logger)
	compiler.SetLogger(logger)

	var copts []compiler.Option
	if cfg.StrictImports {
		copts = append(copts, compiler.WithStrictImports())
	}
	pk := protokit.New(protokit.WithCompilerOptions(copts...))
	files, err := pk.LoadSchemaFile(cfg.Schema)
	if err != nil {
		return config{}, nil, nil, err
	}
	logger.Debug("schema loaded", zap.String("path", cfg.Schema), zap.Int("files", len(files)))
	return cfg, pk, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(errUsage, "invalid log level %q", level)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.DisableStacktrace = true
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func encodeCmd(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	common := addCommonFlags(fs)
	var typeName, in, out string
	fs.StringVar(&typeName, "type", "", "message type to encode")
	fs.StringVar(&in, "in", "-", "input file; the extension (.json, .yaml, .yml, .txt) picks the format, - reads stdin")
	fs.StringVar(&out, "out", "-", "output file, - writes stdout")

	cfg, pk, logger, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	md, err := lookupType(pk, typeName)
	if err != nil {
		return err
	}
	data, err := readInput(in, stdin)
	if err != nil {
		return err
	}
	format := cfg.Format
	if f, ok := formatFromName(in); ok && !flagSet(fs, "format") {
		format = f
	}

	m, err := parseInput(md, data, format)
	if err != nil {
		return errors.WithMessagef(err, "read %s input", format)
	}
	bin, err := message.MarshalOptions{AllowPartial: cfg.AllowPartial}.Marshal(m)
	if err != nil {
		return err
	}
	logger.Info("encoded", zap.String("type", md.FullName()), zap.Int("bytes", len(bin)))
	return writeOutput(out, stdout, bin)
}

func decodeCmd(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	common := addCommonFlags(fs)
	var typeName, in, out string
	fs.StringVar(&typeName, "type", "", "message type to decode")
	fs.StringVar(&in, "in", "-", "input file, - reads stdin")
	fs.StringVar(&out, "out", "-", "output file, - writes stdout")

	cfg, pk, logger, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	md, err := lookupType(pk, typeName)
	if err != nil {
		return err
	}
	data, err := readInput(in, stdin)
	if err != nil {
		return err
	}

	opts := message.UnmarshalOptions{
		DiscardUnknown: cfg.DiscardUnknown,
		MaxDepth:       cfg.MaxDepth,
		AllowPartial:   cfg.AllowPartial,
	}
	m, err := opts.Unmarshal(md, data)
	if err != nil {
		return err
	}
	if n := len(m.Unknown()); n > 0 {
		logger.Warn("message carries unknown fields", zap.String("type", md.FullName()), zap.Int("bytes", n))
	}

	rendered, err := render(m, cfg.Format)
	if err != nil {
		return err
	}
	logger.Info("decoded", zap.String("type", md.FullName()), zap.Int("bytes", len(data)))
	return writeOutput(out, stdout, rendered)
}

func describeCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	common := addCommonFlags(fs)

	_, pk, logger, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var b strings.Builder
	reg := pk.Registry()
	for _, name := range pk.ListMessages() {
		md, err := reg.Message(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "message %s\n", md.FullName())
		for _, fd := range md.FieldsByNumber() {
			fmt.Fprintf(&b, "  %-4d %s %s %s", fd.Number(), fd.Label(), typeLabel(fd), fd.Name())
			if fd.Packed() {
				b.WriteString(" [packed]")
			}
			if fd.HasDefault() {
				v, _ := fd.Default()
				fmt.Fprintf(&b, " [default = %v]", v)
			}
			b.WriteString("\n")
		}
	}
	for _, name := range pk.ListEnums() {
		ed, err := reg.Enum(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "enum %s\n", ed.FullName())
		for _, v := range ed.Values() {
			fmt.Fprintf(&b, "  %s = %d\n", v.Name, v.Number)
		}
	}
	_, err = io.WriteString(stdout, b.String())
	return err
}

func typeLabel(fd *schema.FieldDescriptor) string {
	if fd.TypeName() != "" {
		return fd.TypeName()
	}
	return fd.Type().String()
}

func lookupType(pk *protokit.Protokit, typeName string) (*schema.MessageDescriptor, error) {
	if typeName == "" {
		return nil, errors.Wrap(errUsage, "no message type given, use -type")
	}
	return pk.Registry().Message(typeName)
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// formatFromName picks the data format from a file extension.
func formatFromName(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return formatJSON, true
	case ".yaml", ".yml":
		return formatYAML, true
	case ".txt", ".textproto", ".txtpb":
		return formatText, true
	}
	return "", false
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(name)
	return data, errors.Wrap(err, "read input")
}

func writeOutput(name string, stdout io.Writer, data []byte) error {
	if name == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return errors.Wrap(os.WriteFile(name, data, 0o644), "write output")
}

// parseInput builds a message from JSON, YAML or text input. JSON and YAML
// carry bytes fields as base64 strings.
func parseInput(md *schema.MessageDescriptor, data []byte, format string) (*message.Message, error) {
	mapOpts := message.MapOptions{Base64Bytes: true}

	switch format {
	case formatJSON:
		var raw map[string]any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "decode json")
		}
		return mapOpts.FromMap(md, raw)
	case formatYAML:
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
		return mapOpts.FromMap(md, raw)
	case formatText:
		m, err := message.Empty(md)
		if err != nil {
			return nil, err
		}
		if err := textformat.Unmarshal(string(data), m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, errors.Wrapf(errUsage, "unknown format %q", format)
}

// render writes m in the output format.
func render(m *message.Message, format string) ([]byte, error) {
	switch format {
	case formatJSON:
		out, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encode json")
		}
		return append(out, '\n'), nil
	case formatYAML:
		out, err := yaml.Marshal(message.MapOptions{Base64Bytes: true}.ToMap(m))
		return out, errors.Wrap(err, "encode yaml")
	case formatText:
		s, err := textformat.Marshal(m)
		return []byte(s), err
	}
	return nil, errors.Wrapf(errUsage, "unknown format %q", format)
}
