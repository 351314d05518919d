package compiler

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	protoparser "github.com/yoheimuta/go-protoparser/v4"
	"go.uber.org/zap"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

// Compiler compiles schema sources into a registry.
type Compiler struct {
	reg *registry.Registry

	// permissive relaxes the parser's grammar checks.
	permissive bool
	// strictImports turns ignored import statements into errors.
	strictImports bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPermissive makes the parser accept some grammar that protoc rejects.
func WithPermissive() Option {
	return func(c *Compiler) {
		c.permissive = true
	}
}

// WithStrictImports rejects import statements instead of ignoring them.
func WithStrictImports() Option {
	return func(c *Compiler) {
		c.strictImports = true
	}
}

// New returns a compiler that installs into reg. A nil reg gets a fresh
// registry.
func New(reg *registry.Registry, opts ...Option) *Compiler {
	if reg == nil {
		reg = registry.New()
	}
	c := &Compiler{reg: reg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the compiler installs into.
func (c *Compiler) Registry() *registry.Registry { return c.reg }

// Compile compiles src, naming the compilation unit name.
func (c *Compiler) Compile(name, src string) (*schema.File, error) {
	return c.CompileReader(name, strings.NewReader(src))
}

// CompileReader compiles the schema read from r.
func (c *Compiler) CompileReader(name string, r io.Reader) (*schema.File, error) {
	var popts []protoparser.Option
	if c.permissive {
		popts = append(popts, protoparser.WithPermissive(true))
	}

	src, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if !hasSyntax(src) {
		// kept on the first line so parser positions still match the source
		src = append([]byte(defaultSyntax), src...)
	}

	proto, err := protoparser.Parse(bytes.NewReader(src), popts...)
	if err != nil {
		Logger().Debug("parse failed", zap.String("file", name), zap.Error(err))
		return nil, protoerr.Wrap(protoerr.KindStructural, errors.Wrapf(err, "parse %s", name), "syntax error")
	}

	b := newBuilder(c, name)
	file, err := b.build(proto)
	if err != nil {
		return nil, errors.WithMessagef(err, "compile %s", name)
	}

	if err := c.reg.Register(file); err != nil {
		return nil, errors.WithMessagef(err, "register %s", name)
	}

	Logger().Info("compiled schema",
		zap.String("file", name),
		zap.String("package", file.Package()),
		zap.Int("messages", len(file.AllMessages())),
		zap.Int("enums", len(file.AllEnums())),
	)
	return file, nil
}

// CompileFile reads and compiles a single .proto file.
func (c *Compiler) CompileFile(path string) (*schema.File, error) {
	if !strings.HasSuffix(path, ".proto") {
		return nil, protoerr.Argumentf("file %s is not a .proto file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return c.CompileReader(filepath.Base(path), bytes.NewReader(content))
}

// CompilePath compiles a single .proto file or, for a directory, every .proto
// file below it. Each file is compiled on its own; imports between them are
// not followed.
func (c *Compiler) CompilePath(protoPath string) ([]*schema.File, error) {
	info, err := os.Stat(protoPath)
	if err != nil {
		return nil, errors.Wrap(err, "path does not exist")
	}

	// If it's a single file, process it directly
	if !info.IsDir() {
		f, err := c.CompileFile(protoPath)
		if err != nil {
			return nil, err
		}
		return []*schema.File{f}, nil
	}

	var files []*schema.File
	err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-proto files
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}

		f, err := c.CompileFile(path)
		if err != nil {
			return errors.WithMessagef(err, "failed to load proto file %s", path)
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

const defaultSyntax = `syntax = "proto2"; `

// hasSyntax reports whether the first statement of src, after whitespace and
// comments, is a syntax declaration.
func hasSyntax(src []byte) bool {
	for {
		src = bytes.TrimLeft(src, " \t\r\n\f\v\ufeff")
		switch {
		case bytes.HasPrefix(src, []byte("//")):
			i := bytes.IndexByte(src, '\n')
			if i < 0 {
				return false
			}
			src = src[i+1:]
		case bytes.HasPrefix(src, []byte("/*")):
			i := bytes.Index(src[2:], []byte("*/"))
			if i < 0 {
				return false
			}
			src = src[i+4:]
		default:
			rest, ok := bytes.CutPrefix(src, []byte("syntax"))
			if !ok {
				return false
			}
			rest = bytes.TrimLeft(rest, " \t\r\n")
			return len(rest) > 0 && rest[0] == '='
		}
	}
}
