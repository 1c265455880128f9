//go:build !libclang

package clangast

import (
	"context"
)

// LibclangFrontend is unavailable in this build.
type LibclangFrontend struct {
	Args []string
}

// LibclangAvailable reports whether this binary was built with libclang.
const LibclangAvailable = false

func (f *LibclangFrontend) Parse(context.Context, string) (*Node, error) {
	return nil, ErrLibclangUnavailable
}
