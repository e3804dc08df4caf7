package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

const defaultCleanCacheSize = 512

// JavaFileAdapter encapsulates Java parsing so the mutant sources can reason
// about lines without knowing the grammar.
type JavaFileAdapter interface {
	// StripComments blanks every comment in src while keeping the line layout,
	// so line N of the result is line N of the input minus its comments.
	StripComments(ctx context.Context, src []byte) ([]byte, error)

	// PackageName returns the declared package of a compilation unit, or "" for
	// the default package.
	PackageName(ctx context.Context, src []byte) (string, error)
}

// LocalJavaFileAdapter is a tree-sitter backed JavaFileAdapter. Results of
// StripComments are cached by content hash because prompt rounds re-read the
// same files.
type LocalJavaFileAdapter struct {
	cache *lru.Cache[string, []byte]
}

// NewLocalJavaFileAdapter constructs a LocalJavaFileAdapter.
func NewLocalJavaFileAdapter() (*LocalJavaFileAdapter, error) {
	cache, err := lru.New[string, []byte](defaultCleanCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create clean source cache: %w", err)
	}

	return &LocalJavaFileAdapter{cache: cache}, nil
}

func (a *LocalJavaFileAdapter) parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse java source: %w", err)
	}

	return tree, nil
}

// StripComments implements JavaFileAdapter.
func (a *LocalJavaFileAdapter) StripComments(ctx context.Context, src []byte) ([]byte, error) {
	sum := sha256.Sum256(src)
	key := hex.EncodeToString(sum[:])

	if cleaned, ok := a.cache.Get(key); ok {
		return cleaned, nil
	}

	tree, err := a.parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	cleaned := make([]byte, len(src))
	copy(cleaned, src)

	blanked := blankComments(tree.RootNode(), cleaned, 0)
	slog.Debug("Stripped java comments", "comments", blanked, "bytes", len(src))

	a.cache.Add(key, cleaned)

	return cleaned, nil
}

// blankComments replaces comment bytes with spaces, leaving line breaks intact.
func blankComments(node *sitter.Node, buf []byte, depth int) int {
	if node == nil || depth > 2000 {
		return 0
	}

	switch node.Type() {
	case "line_comment", "block_comment", "comment":
		end := min(int(node.EndByte()), len(buf))
		for i := int(node.StartByte()); i < end; i++ {
			if buf[i] != '\n' && buf[i] != '\r' {
				buf[i] = ' '
			}
		}

		return 1
	}

	count := 0
	for i := 0; i < int(node.ChildCount()); i++ {
		count += blankComments(node.Child(i), buf, depth+1)
	}

	return count
}

// PackageName implements JavaFileAdapter.
func (a *LocalJavaFileAdapter) PackageName(ctx context.Context, src []byte) (string, error) {
	tree, err := a.parse(ctx, src)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_declaration" {
			continue
		}

		for j := 0; j < int(child.NamedChildCount()); j++ {
			name := child.NamedChild(j)
			if name.Type() == "scoped_identifier" || name.Type() == "identifier" {
				return strings.TrimSpace(name.Content(src)), nil
			}
		}
	}

	return "", nil
}
