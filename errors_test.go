package dirpack

import (
	"errors"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dirpack/internal/platform"
)

func TestError_Format(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindWrite, Op: "write header", Path: "a.txt", Err: errors.New("archive/tar: write too long")}
	assert.Equal(t, `write header "a.txt": write failed: archive/tar: write too long`, err.Error())

	bare := &Error{Kind: KindTooDeep}
	assert.Equal(t, "directory tree too deep", bare.Error())
}

func TestError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	inner := &Error{Kind: KindUnsupportedKind, Op: "build", Path: "dir/link", Err: cause}
	outer := &Error{Kind: KindRecursive, Op: "walk", Path: "dir", Err: inner}

	require.ErrorIs(t, outer, ErrRecursive)
	require.ErrorIs(t, outer, ErrUnsupportedKind)
	require.ErrorIs(t, outer, cause)
	assert.NotErrorIs(t, outer, ErrWrite)

	var got *Error
	require.ErrorAs(t, outer, &got)
	assert.Equal(t, KindRecursive, got.Kind)
}

func TestPartialError(t *testing.T) {
	t.Parallel()

	a := &Error{Kind: KindUnsupportedKind, Path: "a"}
	b := &Error{Kind: KindPermissionDenied, Path: "b"}
	err := &PartialError{Failures: []error{a, b}}

	require.ErrorIs(t, err, ErrUnsupportedKind)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "2 entries skipped")

	one := &PartialError{Failures: []error{a}}
	assert.Contains(t, one.Error(), "1 entry skipped")
}

func TestFsError_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		notFound Kind
		fallback Kind
		want     error
	}{
		{"missing root", fs.ErrNotExist, KindPathNotFound, KindStat, ErrPathNotFound},
		{"missing child", fs.ErrNotExist, KindStat, KindStat, ErrStat},
		{"permission", fs.ErrPermission, KindStat, KindStat, ErrPermissionDenied},
		{"symlink", platform.ErrSymlink, KindRead, KindRead, ErrUnsupportedKind},
		{"stat io error", syscall.EIO, KindStat, KindStat, ErrStat},
		{"list io error", syscall.EIO, KindRead, KindRead, ErrRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := fsError("op", "p", &fs.PathError{Op: "op", Path: "p", Err: tt.err}, tt.notFound, tt.fallback)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseErrorPolicy(t *testing.T) {
	t.Parallel()

	for _, p := range []ErrorPolicy{PolicyAbort, PolicySkipUnsupported, PolicyContinue} {
		got, err := ParseErrorPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseErrorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySkipUnsupported, got)

	_, err = ParseErrorPolicy("ignore")
	require.Error(t, err)
}
