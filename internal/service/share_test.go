package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/repository/disk"
	"github.com/synxit/synxit-server/internal/testutil"
)

func newTestShare(t *testing.T) *Share {
	t.Helper()
	return NewShare(disk.NewShareRepository(t.TempDir()), testutil.MakeNoopLogger())
}

func TestShare_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestShare(t)

	share, err := svc.Create(ctx, testHandle(), true)
	require.NoError(t, err)
	assert.Len(t, share.ID, model.IDLength)
	assert.Len(t, share.Secret, model.IDLength)
	assert.True(t, share.Write)
	assert.Empty(t, share.Blobs)

	shares, err := svc.List(ctx, testHandle())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, share, shares[0])
}

func TestShare_AddBlob(t *testing.T) {
	ctx := context.Background()
	svc := newTestShare(t)

	share, err := svc.Create(ctx, testHandle(), false)
	require.NoError(t, err)

	blobID := model.NewID()
	require.NoError(t, svc.AddBlob(ctx, testHandle(), share.ID, blobID))

	// Adding again is a no-op, not a duplicate.
	require.NoError(t, svc.AddBlob(ctx, testHandle(), share.ID, blobID))

	got, err := svc.Get(ctx, testHandle(), share.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{blobID}, got.Blobs)
}

func TestShare_AddBlob_UnknownShare(t *testing.T) {
	svc := newTestShare(t)

	err := svc.AddBlob(context.Background(), testHandle(), model.NewID(), model.NewID())
	assert.ErrorIs(t, err, model.CodeShareNotFound)
}

func TestShare_RemoveBlobEverywhere(t *testing.T) {
	ctx := context.Background()
	svc := newTestShare(t)

	blobID := model.NewID()
	first, err := svc.Create(ctx, testHandle(), false)
	require.NoError(t, err)
	second, err := svc.Create(ctx, testHandle(), true)
	require.NoError(t, err)

	require.NoError(t, svc.AddBlob(ctx, testHandle(), first.ID, blobID))
	require.NoError(t, svc.AddBlob(ctx, testHandle(), second.ID, blobID))

	require.NoError(t, svc.RemoveBlobEverywhere(ctx, testHandle(), blobID))

	shares, err := svc.List(ctx, testHandle())
	require.NoError(t, err)
	for _, share := range shares {
		assert.NotContains(t, share.Blobs, blobID)
	}
}

func TestShare_Authorize(t *testing.T) {
	ctx := context.Background()
	svc := newTestShare(t)

	readOnly, err := svc.Create(ctx, testHandle(), false)
	require.NoError(t, err)
	blobID := model.NewID()
	require.NoError(t, svc.AddBlob(ctx, testHandle(), readOnly.ID, blobID))

	t.Run("read access", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, readOnly.Secret, blobID, false)
		assert.NoError(t, err)
	})

	t.Run("secret is case insensitive", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, strings.ToLower(readOnly.Secret), blobID, false)
		assert.NoError(t, err)
	})

	t.Run("unknown share", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), model.NewID(), readOnly.Secret, blobID, false)
		assert.ErrorIs(t, err, model.CodeShareNotFound)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, model.NewID(), blobID, false)
		assert.ErrorIs(t, err, model.CodeWrongSecret)
	})

	t.Run("malformed secret", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, "garbage", blobID, false)
		assert.ErrorIs(t, err, model.CodeWrongSecret)
	})

	t.Run("blob not listed", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, readOnly.Secret, model.NewID(), false)
		assert.ErrorIs(t, err, model.CodeBlobNotInShare)
	})

	t.Run("write denied on read-only share", func(t *testing.T) {
		_, err := svc.Authorize(ctx, testHandle(), readOnly.ID, readOnly.Secret, blobID, true)
		assert.ErrorIs(t, err, model.CodeNoWriteAccess)
	})

	t.Run("write granted on writable share", func(t *testing.T) {
		writable, err := svc.Create(ctx, testHandle(), true)
		require.NoError(t, err)
		require.NoError(t, svc.AddBlob(ctx, testHandle(), writable.ID, blobID))

		_, err = svc.Authorize(ctx, testHandle(), writable.ID, writable.Secret, blobID, true)
		assert.NoError(t, err)
	})
}
