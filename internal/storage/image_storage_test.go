package storage

import (
	"context"
	"crypto/sha256"
	"os"
	"testing"

	"github.com/annel0/voxmesh/internal/document"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) (*ImageStorage, string) {
	// Создаем временную директорию для тестов
	tempDir, err := os.MkdirTemp("", "image-storage-test")
	if err != nil {
		t.Fatalf("Не удалось создать временную директорию: %v", err)
	}

	storage, err := NewImageStorage(tempDir, nil)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}

	return storage, tempDir
}

func cleanupTestStorage(storage *ImageStorage, tempDir string) {
	if storage != nil {
		storage.Close()
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}

var (
	red  = voxel.RGBA(255, 0, 0, 255)
	blue = voxel.RGBA(0, 0, 255, 200)
)

func buildImage(t *testing.T, store *voxel.Store) *document.Image {
	t.Helper()
	img := document.NewImage(store, document.ImageConfig{})
	ground := img.Active()
	require.NoError(t, img.Rename(ground, "ground"))
	require.NoError(t, ground.Mesh().Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeSphere, Color: red},
		vec.NewBox(vec.Vec3{X: -20, Y: -20, Z: -5}, vec.Vec3{X: 20, Y: 20, Z: 5})))

	dup, err := img.DuplicateLayer(ground)
	require.NoError(t, err)
	require.NoError(t, img.SetVisible(dup, false))

	top := img.AddLayer("top")
	require.NoError(t, top.Mesh().Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: blue},
		vec.NewBox(vec.Vec3{X: 30, Y: 0, Z: 0}, vec.Vec3{X: 33, Y: 3, Z: 3})))
	require.NoError(t, img.SetActive(dup))
	img.Path = "scene.gox"
	img.ExportWidth = 640
	img.ExportHeight = 480
	return img
}

func TestSaveAndLoadImage(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)
	ctx := context.Background()

	store := voxel.NewStore(voxel.StoreConfig{})
	img := buildImage(t, store)
	defer img.Release()
	require.NoError(t, storage.SaveImage(ctx, img))

	manifest, err := storage.LoadManifest(ctx, img.ID())
	require.NoError(t, err)
	require.Len(t, manifest.Layers, 3)
	assert.Equal(t, 1, manifest.Active)
	assert.Equal(t, manifest.Layers[0].Blocks, manifest.Layers[1].Blocks, "копия слоя ссылается на те же блоки")

	other := voxel.NewStore(voxel.StoreConfig{})
	loaded, err := storage.LoadImage(ctx, img.ID(), other, document.ImageConfig{})
	require.NoError(t, err)
	defer loaded.Release()

	assert.Equal(t, img.ID(), loaded.ID())
	assert.Equal(t, "scene.gox", loaded.Path)
	assert.Equal(t, 640, loaded.ExportWidth)
	assert.Equal(t, 480, loaded.ExportHeight)
	require.Len(t, loaded.Layers(), 3)
	assert.Equal(t, "ground copy", loaded.Active().Name())
	assert.False(t, loaded.Active().Visible())

	for i, l := range img.Layers() {
		ll := loaded.Layers()[i]
		assert.Equal(t, l.Name(), ll.Name())
		assert.Equal(t, l.Mesh().BlockCount(), ll.Mesh().BlockCount())
		l.Mesh().Box(true).ForEach(func(p vec.Vec3) {
			if l.Mesh().Get(p) != ll.Mesh().Get(p) {
				t.Errorf("Воксель %v слоя %q не совпадает", p, l.Name())
			}
		})
	}

	// общие данные восстанавливаются как общие
	b0, ok := loaded.Layers()[0].Mesh().Block(vec.Vec3{})
	require.True(t, ok)
	b1, ok := loaded.Layers()[1].Mesh().Block(vec.Vec3{})
	require.True(t, ok)
	assert.Same(t, b0.Data(), b1.Data())
	assert.Equal(t, int32(2), b0.Data().Refs())
}

func TestLoadMissingImage(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)

	_, err := storage.LoadImage(context.Background(), uuid.New(), voxel.NewStore(voxel.StoreConfig{}), document.ImageConfig{})
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.ErrorIs(t, storage.DeleteImage(context.Background(), uuid.New()), ErrImageNotFound)
}

func TestListDeleteAndCollectGarbage(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)
	ctx := context.Background()

	store := voxel.NewStore(voxel.StoreConfig{})
	a := buildImage(t, store)
	defer a.Release()
	b := a.Copy()
	defer b.Release()
	require.NoError(t, b.Active().Mesh().Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: red},
		vec.NewBox(vec.Vec3{X: 100}, vec.Vec3{X: 101})))

	require.NoError(t, storage.SaveImage(ctx, a))
	require.NoError(t, storage.SaveImage(ctx, b))

	ids, err := storage.ListImages(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID(), b.ID()}, ids)

	removed, err := storage.CollectGarbage(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "все блоки используются")

	require.NoError(t, storage.DeleteImage(ctx, b.ID()))
	removed, err = storage.CollectGarbage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "удаляется только блок, принадлежавший удалённому документу")

	loaded, err := storage.LoadImage(ctx, a.ID(), voxel.NewStore(voxel.StoreConfig{}), document.ImageConfig{})
	require.NoError(t, err)
	loaded.Release()
}

func TestClosedStorage(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer os.RemoveAll(tempDir)
	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close())

	img := document.NewImage(voxel.NewStore(voxel.StoreConfig{}), document.ImageConfig{})
	defer img.Release()
	assert.ErrorIs(t, storage.SaveImage(context.Background(), img), ErrNotReady)
	_, err := storage.ListImages(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDataKeyDependsOnContent(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	a := store.NewBlockData()
	b := store.NewBlockData()
	a.Set(1, 1, 1, red)
	b.Set(1, 1, 1, red)
	assert.Equal(t, DataKey(a), DataKey(b))
	b.Set(2, 2, 2, blue)
	assert.NotEqual(t, DataKey(a), DataKey(b))
}

func singleBlockImage(t *testing.T, store *voxel.Store) *document.Image {
	t.Helper()
	img := document.NewImage(store, document.ImageConfig{})
	require.NoError(t, img.Active().Mesh().Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: red},
		vec.NewBox(vec.Vec3{}, vec.Vec3{X: 3, Y: 3, Z: 3})))
	return img
}

func TestHashCollisionGetsDistinctKey(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)
	ctx := context.Background()

	store := voxel.NewStore(voxel.StoreConfig{})
	img := singleBlockImage(t, store)
	defer img.Release()
	b, ok := img.Active().Mesh().Block(vec.Vec3{})
	require.True(t, ok)
	base := DataKey(b.Data())

	// под базовым ключом уже лежит другое содержимое
	foreign := make([]byte, voxel.BlockBytes)
	foreign[3] = 255
	digest := sha256.Sum256(foreign)
	value := storage.encoder.EncodeAll(foreign, append([]byte{}, digest[:]...))
	require.NoError(t, storage.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(base), value)
	}))

	require.NoError(t, storage.SaveImage(ctx, img))
	manifest, err := storage.LoadManifest(ctx, img.ID())
	require.NoError(t, err)
	require.Len(t, manifest.Layers[0].Blocks, 1)
	assert.Equal(t, base+"#1", manifest.Layers[0].Blocks[0].Data)

	loaded, err := storage.LoadImage(ctx, img.ID(), store, document.ImageConfig{})
	require.NoError(t, err)
	defer loaded.Release()
	assert.Equal(t, red, loaded.Active().Mesh().Get(vec.Vec3{X: 1, Y: 1, Z: 1}))
	assert.Equal(t, 64, loaded.Active().Mesh().VoxelCount())

	// повторное сохранение находит уже записанный ключ
	require.NoError(t, storage.SaveImage(ctx, img))
	manifest, err = storage.LoadManifest(ctx, img.ID())
	require.NoError(t, err)
	assert.Equal(t, base+"#1", manifest.Layers[0].Blocks[0].Data)
}

func TestDigestMismatchIsCorruption(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)
	ctx := context.Background()

	store := voxel.NewStore(voxel.StoreConfig{})
	img := singleBlockImage(t, store)
	defer img.Release()
	require.NoError(t, storage.SaveImage(ctx, img))

	manifest, err := storage.LoadManifest(ctx, img.ID())
	require.NoError(t, err)
	key := []byte(manifest.Layers[0].Blocks[0].Data)
	require.NoError(t, storage.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		val[0] ^= 0xff
		return txn.Set(key, val)
	}))

	_, err = storage.LoadImage(ctx, img.ID(), voxel.NewStore(voxel.StoreConfig{}), document.ImageConfig{})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestLoadImageRespectsBudget(t *testing.T) {
	storage, tempDir := setupTestStorage(t)
	defer cleanupTestStorage(storage, tempDir)
	ctx := context.Background()

	store := voxel.NewStore(voxel.StoreConfig{})
	img := buildImage(t, store)
	defer img.Release()
	require.NoError(t, storage.SaveImage(ctx, img))

	small := voxel.NewStore(voxel.StoreConfig{MaxBlockData: 1})
	_, err := storage.LoadImage(ctx, img.ID(), small, document.ImageConfig{})
	assert.ErrorIs(t, err, voxel.ErrResourceExhausted)
	assert.NotErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, int64(0), small.Stats().LiveData, "частично загруженные меши освобождены")
}
