package clangast

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrUnsupportedCompression is returned for dump files whose extension
	// names a compression format that cannot be read.
	ErrUnsupportedCompression = errors.New("unsupported dump compression")

	// ErrNotTranslationUnit is returned when a dump's root is not a
	// TranslationUnitDecl.
	ErrNotTranslationUnit = errors.New("AST root is not a translation unit")

	// ErrLibclangUnavailable is returned by LibclangFrontend when the binary
	// was built without the libclang build tag.
	ErrLibclangUnavailable = errors.New("built without libclang support (rebuild with -tags libclang)")
)

// Frontend produces the AST of one translation unit.
type Frontend interface {
	Parse(ctx context.Context, sourcePath string) (*Node, error)
}

// Decode reads a JSON AST dump.
func Decode(r io.Reader) (*Node, error) {
	var root Node
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding AST dump: %w", err)
	}
	if root.Kind != KindTranslationUnit {
		return nil, fmt.Errorf("%w: got %q", ErrNotTranslationUnit, root.Kind)
	}
	return &root, nil
}

// LoadFile reads a JSON AST dump from disk.  Files ending in .zst, .gz or
// .lz4 are decompressed transparently.
func LoadFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, closeFn, err := decompressor(path, f)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	root, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

func decompressor(path string, r io.Reader) (io.Reader, func(), error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		return r, func() {}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case ".gz":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, func() { gr.Close() }, nil
	case ".lz4":
		return lz4.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, ext)
	}
}

// ClangFrontend runs the clang driver to dump the AST as JSON.
type ClangFrontend struct {
	// Command overrides the compiler; empty picks clang or clang++ from
	// the source extension.
	Command string
	// Args are passed before the dump flags, e.g. include paths.
	Args []string
	// ParseComments adds -fparse-all-comments.
	ParseComments bool
	// Dir is the working directory of the compiler process.
	Dir string
	// CacheDir, when set, stores zstd-compressed dumps and reuses them
	// while they are newer than the source file.
	CacheDir string
}

func (c *ClangFrontend) command(sourcePath string) []string {
	compiler := c.Command
	var cmd []string
	if strings.EqualFold(filepath.Ext(sourcePath), ".cpp") {
		if compiler == "" {
			compiler = "clang++"
		}
		cmd = append(cmd, compiler, "-std=c++17")
	} else {
		if compiler == "" {
			compiler = "clang"
		}
		cmd = append(cmd, compiler)
	}
	cmd = append(cmd, c.Args...)
	cmd = append(cmd, "-Xclang", "-ast-dump=json", "-c", sourcePath)
	if c.ParseComments {
		cmd = append(cmd, "-fparse-all-comments")
	}
	return cmd
}

// Parse dumps and decodes the AST of sourcePath.
func (c *ClangFrontend) Parse(ctx context.Context, sourcePath string) (*Node, error) {
	argv := c.command(sourcePath)

	cachePath := ""
	if c.CacheDir != "" {
		cachePath = filepath.Join(c.CacheDir, cacheKey(argv)+".json.zst")
		if fresh(cachePath, c.sourceFile(sourcePath)) {
			return LoadFile(cachePath)
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, strings.TrimSpace(stderr.String()))
	}

	if cachePath != "" {
		if err := writeCache(cachePath, out); err != nil {
			return nil, fmt.Errorf("writing AST cache: %w", err)
		}
	}

	return Decode(bytes.NewReader(out))
}

// sourceFile locates sourcePath the way the compiler process sees it.
func (c *ClangFrontend) sourceFile(sourcePath string) string {
	if filepath.IsAbs(sourcePath) {
		return sourcePath
	}
	return filepath.Join(c.Dir, sourcePath)
}

func cacheKey(argv []string) string {
	sum := sha256.Sum256([]byte(strings.Join(argv, "\x00")))
	return hex.EncodeToString(sum[:8])
}

func fresh(cachePath, sourcePath string) bool {
	ci, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	si, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	return ci.ModTime().After(si.ModTime())
}

func writeCache(path string, dump []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := zw.Write(dump); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
