package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synxit/synxit-server/internal/model"
	"github.com/synxit/synxit-server/internal/repository/disk"
	diskstorage "github.com/synxit/synxit-server/internal/storage/disk"
	"github.com/synxit/synxit-server/internal/testutil"
)

type blobFixture struct {
	blobs  *Blob
	shares *Share
	repo   model.AccountStore
	handle model.Handle
}

// newBlobFixture wires a blob service against on-disk storage with the
// given tier quota. Zero quota means unlimited.
func newBlobFixture(t *testing.T, quota int64) *blobFixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	repo := disk.NewAccountRepository(root)
	shareRepo := disk.NewShareRepository(root)
	backend := diskstorage.NewBackend(root)
	logger := testutil.MakeNoopLogger()

	tiers := func(id string) (model.Tier, bool) {
		if id != "default" {
			return model.Tier{}, false
		}
		return model.Tier{ID: "default", Name: "Default", Quota: quota}, true
	}

	shares := NewShare(shareRepo, logger)
	blobs := NewBlob(backend, repo, shares, tiers, logger)

	handle := testHandle()
	require.NoError(t, repo.Create(ctx, model.NewAccount(handle, "hash", "salt", "default")))

	return &blobFixture{blobs: blobs, shares: shares, repo: repo, handle: handle}
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func TestBlob_CreateRead(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	content := []byte("opaque encrypted bytes")
	id, hash, err := f.blobs.Create(ctx, f.handle, content)
	require.NoError(t, err)
	assert.Len(t, id, model.IDLength)
	assert.Equal(t, hashOf(content), hash)

	got, err := f.blobs.Read(ctx, f.handle, id)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlob_Read_NotFound(t *testing.T) {
	f := newBlobFixture(t, 0)

	_, err := f.blobs.Read(context.Background(), f.handle, model.NewID())
	assert.ErrorIs(t, err, model.CodeBlobNotFound)

	_, err = f.blobs.Read(context.Background(), f.handle, "not-an-id")
	assert.ErrorIs(t, err, model.CodeBlobNotFound)
}

func TestBlob_Create_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	// Establish current usage, then pin the quota one byte short of
	// the next write.
	used, err := f.blobs.Quota(ctx, f.handle)
	require.NoError(t, err)

	content := []byte("0123456789")
	tight := newBlobFixtureWithQuota(t, f, used.Used+int64(len(content))-1)

	_, _, err = tight.Create(ctx, f.handle, content)
	assert.ErrorIs(t, err, model.CodeQuotaExceeded)
}

// newBlobFixtureWithQuota rebinds the fixture's blob service to a new
// quota limit over the same storage.
func newBlobFixtureWithQuota(t *testing.T, f *blobFixture, quota int64) *Blob {
	t.Helper()
	tiers := func(id string) (model.Tier, bool) {
		return model.Tier{ID: id, Quota: quota}, true
	}
	return NewBlob(f.blobs.backend, f.repo, f.shares, tiers, testutil.MakeNoopLogger())
}

func TestBlob_Create_QuotaAccounting(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 1 << 20)

	before, err := f.blobs.Quota(ctx, f.handle)
	require.NoError(t, err)

	content := make([]byte, 100)
	_, _, err = f.blobs.Create(ctx, f.handle, content)
	require.NoError(t, err)

	after, err := f.blobs.Quota(ctx, f.handle)
	require.NoError(t, err)
	assert.Equal(t, before.Used+100, after.Used)
	assert.Equal(t, int64(1<<20), after.Total)
}

func TestBlob_Quota_UnknownTierIsUnlimited(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	require.NoError(t, f.repo.Mutate(ctx, f.handle, func(account *model.Account) error {
		account.Tier = "missing"
		return nil
	}))

	info, err := f.blobs.Quota(ctx, f.handle)
	require.NoError(t, err)
	assert.Zero(t, info.Total)

	_, _, err = f.blobs.Create(ctx, f.handle, make([]byte, 1<<16))
	assert.NoError(t, err)
}

func TestBlob_Update_HashCAS(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	v1 := []byte("version one")
	id, hash1, err := f.blobs.Create(ctx, f.handle, v1)
	require.NoError(t, err)

	v2 := []byte("version two")
	hash2, err := f.blobs.Update(ctx, f.handle, id, v2, hash1)
	require.NoError(t, err)
	assert.Equal(t, hashOf(v2), hash2)

	// The old hash is now stale: a second update with it must fail.
	_, err = f.blobs.Update(ctx, f.handle, id, []byte("version three"), hash1)
	assert.ErrorIs(t, err, model.CodeBlobHashNotMatch)

	got, err := f.blobs.Read(ctx, f.handle, id)
	require.NoError(t, err)
	assert.Equal(t, v2, got)
}

func TestBlob_Update_HashCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	v1 := []byte("version one")
	id, hash1, err := f.blobs.Create(ctx, f.handle, v1)
	require.NoError(t, err)

	_, err = f.blobs.Update(ctx, f.handle, id, []byte("v2"), strings.ToUpper(hash1))
	assert.NoError(t, err)
}

// slowReadBackend stretches the window between reading the current
// content and writing the replacement, so overlapping update cycles
// would interleave if they were not serialized.
type slowReadBackend struct {
	model.BlobBackend
	delay time.Duration
}

func (b *slowReadBackend) Get(ctx context.Context, owner model.Handle, id string) ([]byte, error) {
	content, err := b.BlobBackend.Get(ctx, owner, id)
	time.Sleep(b.delay)
	return content, err
}

func TestBlob_Update_ConcurrentSameHash(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	id, hash1, err := f.blobs.Create(ctx, f.handle, []byte("version one"))
	require.NoError(t, err)

	slow := NewBlob(
		&slowReadBackend{BlobBackend: f.blobs.backend, delay: 20 * time.Millisecond},
		f.repo, f.shares, f.blobs.tiers, testutil.MakeNoopLogger(),
	)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = slow.Update(ctx, f.handle, id, []byte{'w', byte('0' + i)}, hash1)
		}(i)
	}
	wg.Wait()

	// At most one writer may win with the same prior hash; the loser
	// must see the hash as stale.
	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, model.CodeBlobHashNotMatch)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestBlob_Update_NotFound(t *testing.T) {
	f := newBlobFixture(t, 0)

	_, err := f.blobs.Update(context.Background(), f.handle, model.NewID(), []byte("x"), "hash")
	assert.ErrorIs(t, err, model.CodeBlobNotFound)
}

func TestBlob_Update_StaleHashBeatsQuota(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	id, _, err := f.blobs.Create(ctx, f.handle, []byte("v1"))
	require.NoError(t, err)

	// Even with no quota headroom at all, a stale hash must be the
	// error reported.
	tight := newBlobFixtureWithQuota(t, f, 1)
	_, err = tight.Update(ctx, f.handle, id, make([]byte, 1<<16), "stale")
	assert.ErrorIs(t, err, model.CodeBlobHashNotMatch)
}

func TestBlob_Delete_CascadesToShares(t *testing.T) {
	ctx := context.Background()
	f := newBlobFixture(t, 0)

	id, _, err := f.blobs.Create(ctx, f.handle, []byte("shared data"))
	require.NoError(t, err)

	share, err := f.shares.Create(ctx, f.handle, false)
	require.NoError(t, err)
	require.NoError(t, f.shares.AddBlob(ctx, f.handle, share.ID, id))

	require.NoError(t, f.blobs.Delete(ctx, f.handle, id))

	_, err = f.blobs.Read(ctx, f.handle, id)
	assert.ErrorIs(t, err, model.CodeBlobNotFound)

	got, err := f.shares.Get(ctx, f.handle, share.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Blobs, id)

	_, err = f.shares.Authorize(ctx, f.handle, share.ID, share.Secret, id, false)
	assert.ErrorIs(t, err, model.CodeBlobNotInShare)
}

func TestBlob_Delete_NotFound(t *testing.T) {
	f := newBlobFixture(t, 0)

	err := f.blobs.Delete(context.Background(), f.handle, model.NewID())
	assert.ErrorIs(t, err, model.CodeBlobNotFound)
}
