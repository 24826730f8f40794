package scm_test

import (
	"context"
	"testing"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/scm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{ location string }

func (f fakeSource) Checkout(ctx context.Context, revision, dest string) error { return nil }
func (f fakeSource) Sync(ctx context.Context, revision, dest string) error     { return nil }
func (f fakeSource) Head() string                                              { return "tip" }

func TestKnownKinds(t *testing.T) {
	assert.True(t, scm.Known(scm.KindNone))
	assert.True(t, scm.Known("git"))
	assert.False(t, scm.Known("svn"))
	assert.Contains(t, scm.Kinds(), "git")
}

func TestNew(t *testing.T) {
	src, err := scm.New(scm.KindNone, "config")
	require.NoError(t, err)
	assert.Equal(t, scm.None{Location: "config"}, src)
	assert.NoError(t, src.Checkout(context.Background(), "", "/unused"))
	assert.Empty(t, src.Head())

	src, err = scm.New("git", "https://example.com/repo.git")
	require.NoError(t, err)
	assert.Equal(t, "HEAD", src.Head())

	_, err = scm.New("cvs", "x")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestRegister(t *testing.T) {
	scm.Register("fake", func(location string) scm.SourceControl { return fakeSource{location} })
	assert.True(t, scm.Known("fake"))

	src, err := scm.New("fake", "somewhere")
	require.NoError(t, err)
	assert.Equal(t, "tip", src.Head())
}
