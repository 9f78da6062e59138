package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/voxmesh/internal/document"
	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	manifestVersion = 1

	imagePrefix = "image:"
	dataPrefix  = "data:"

	// digestSize префикс значения блока: sha256 несжатых данных
	digestSize = sha256.Size
)

var (
	// ErrNotReady хранилище закрыто
	ErrNotReady = errors.New("storage: not ready")
	// ErrImageNotFound документ с таким идентификатором не сохранён
	ErrImageNotFound = errors.New("storage: image not found")
	// ErrCorrupted данные документа повреждены или ссылаются на отсутствующие блоки
	ErrCorrupted = errors.New("storage: corrupted image data")
)

// ImageManifest описание сохранённого документа. Содержимое блоков хранится
// отдельно под ключами data:<xxhash>[#n], одинаковые блоки записываются один раз.
// Значение блока: sha256 сырых данных, затем zstd(сырые данные). При совпадении
// xxhash у разного содержимого ключ получает суффикс #n.
type ImageManifest struct {
	Version      int             `json:"version"`
	ID           string          `json:"id"`
	Path         string          `json:"path,omitempty"`
	ExportWidth  int             `json:"export_width"`
	ExportHeight int             `json:"export_height"`
	Active       int             `json:"active"`
	Layers       []LayerManifest `json:"layers"`
}

// LayerManifest описание слоя
type LayerManifest struct {
	Name    string     `json:"name"`
	Visible bool       `json:"visible"`
	Blocks  []BlockRef `json:"blocks"`
}

// BlockRef позиция блока и ключ его содержимого
type BlockRef struct {
	Pos  vec.Vec3 `json:"pos"`
	Data string   `json:"data"`
}

// ImageStorage хранилище документов на BadgerDB
type ImageStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewImageStorage открывает хранилище в каталоге dataPath/images
func NewImageStorage(dataPath string, logger *logging.Logger) (*ImageStorage, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	dbPath := filepath.Join(dataPath, "images")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	logger.Info("Хранилище документов открыто: %s", dbPath)
	return &ImageStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
		logger:  logger,
		tracer:  otel.Tracer("voxmesh/storage"),
	}, nil
}

// Close закрывает хранилище
func (s *ImageStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// DataKey базовый ключ содержимого блока: xxhash сырых данных.
// Фактический ключ в манифесте может иметь суффикс #n (см. resolveKey).
func DataKey(d *voxel.BlockData) string {
	return dataKey(d.Bytes())
}

func dataKey(raw []byte) string {
	return dataPrefix + hashHex(xxhash.Sum64(raw))
}

// resolveKey подбирает ключ для содержимого с дайджестом digest: базовый ключ,
// если он свободен или уже хранит то же содержимое, иначе первый подходящий base#n.
// pending ключи, уже выбранные в текущей записи.
func resolveKey(txn *badger.Txn, base string, digest [digestSize]byte, pending map[string][digestSize]byte) (key string, exists bool, err error) {
	for n := 0; ; n++ {
		key = base
		if n > 0 {
			key = base + "#" + strconv.Itoa(n)
		}
		if d, ok := pending[key]; ok {
			if d == digest {
				return key, true, nil
			}
			continue
		}
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return key, false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("ошибка чтения блока %s: %w", key, err)
		}
		same := false
		err = item.Value(func(val []byte) error {
			same = len(val) >= digestSize && bytes.Equal(val[:digestSize], digest[:])
			return nil
		})
		if err != nil {
			return "", false, fmt.Errorf("ошибка чтения блока %s: %w", key, err)
		}
		if same {
			return key, true, nil
		}
	}
}

func hashHex(h uint64) string {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}

func imageKey(id uuid.UUID) []byte {
	return []byte(imagePrefix + id.String())
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SaveImage сохраняет слои документа поблочно. Блоки с общими данными
// (в том числе между слоями) сжимаются и записываются один раз.
func (s *ImageStorage) SaveImage(ctx context.Context, img *document.Image) (err error) {
	ctx, span := s.tracer.Start(ctx, "storage.SaveImage",
		trace.WithAttributes(attribute.String("image.id", img.ID().String())))
	defer func() { finishSpan(span, err) }()

	// выбор ключей с учётом уже записанных блоков требует эксклюзивного доступа
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.isReady {
		return ErrNotReady
	}

	manifest := ImageManifest{
		Version:      manifestVersion,
		ID:           img.ID().String(),
		Path:         img.Path,
		ExportWidth:  img.ExportWidth,
		ExportHeight: img.ExportHeight,
	}

	// ключи по идентификатору данных, чтобы не хешировать общие блоки повторно
	keys := make(map[uint64]string)
	digests := make(map[string][digestSize]byte)
	payloads := make(map[string][]byte)
	blocks := 0
	err = s.db.View(func(txn *badger.Txn) error {
		for i, l := range img.Layers() {
			if l == img.Active() {
				manifest.Active = i
			}
			lm := LayerManifest{Name: l.Name(), Visible: l.Visible(), Blocks: []BlockRef{}}
			for _, b := range l.Mesh().Blocks() {
				if err := ctx.Err(); err != nil {
					return err
				}
				key, ok := keys[b.Data().ID()]
				if !ok {
					raw := b.Data().Bytes()
					digest := sha256.Sum256(raw)
					var exists bool
					key, exists, err = resolveKey(txn, dataKey(raw), digest, digests)
					if err != nil {
						return err
					}
					keys[b.Data().ID()] = key
					if _, seen := digests[key]; !seen {
						digests[key] = digest
						if !exists {
							payloads[key] = s.encoder.EncodeAll(raw, append([]byte{}, digest[:]...))
						}
					}
				}
				lm.Blocks = append(lm.Blocks, BlockRef{Pos: b.Pos(), Data: key})
				blocks++
			}
			manifest.Layers = append(manifest.Layers, lm)
		}
		return nil
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("ошибка сериализации документа: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for key, payload := range payloads {
		if err := wb.Set([]byte(key), payload); err != nil {
			return fmt.Errorf("ошибка записи блока %s: %w", key, err)
		}
	}
	if err := wb.Set(imageKey(img.ID()), data); err != nil {
		return fmt.Errorf("ошибка записи документа: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	span.SetAttributes(attribute.Int("image.blocks", blocks), attribute.Int("image.unique_blocks", len(digests)))
	s.logger.Debug("Документ %s сохранён: слоёв=%d, блоков=%d, уникальных=%d, новых=%d",
		manifest.ID, len(manifest.Layers), blocks, len(digests), len(payloads))
	return nil
}

// LoadManifest читает описание документа
func (s *ImageStorage) LoadManifest(ctx context.Context, id uuid.UUID) (*ImageManifest, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}
	return s.loadManifest(id)
}

func (s *ImageStorage) loadManifest(id uuid.UUID) (*ImageManifest, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(imageKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var m ImageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrCorrupted, m.Version)
	}
	return &m, nil
}

// LoadImage восстанавливает документ в заданном Store. Блоки с одинаковым
// ключом содержимого получают общий BlockData, как и до сохранения.
func (s *ImageStorage) LoadImage(ctx context.Context, id uuid.UUID, store *voxel.Store, cfg document.ImageConfig) (img *document.Image, err error) {
	ctx, span := s.tracer.Start(ctx, "storage.LoadImage",
		trace.WithAttributes(attribute.String("image.id", id.String())))
	defer func() { finishSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}

	manifest, err := s.loadManifest(id)
	if err != nil {
		return nil, err
	}

	shared := make(map[string]*voxel.BlockData)
	var layers []document.LayerState
	release := func() {
		for _, ls := range layers {
			ls.Mesh.Release()
		}
	}

	err = s.db.View(func(txn *badger.Txn) error {
		for _, lm := range manifest.Layers {
			mesh := store.NewMesh()
			layers = append(layers, document.LayerState{Name: lm.Name, Visible: lm.Visible, Mesh: mesh})
			for _, ref := range lm.Blocks {
				if err := ctx.Err(); err != nil {
					return err
				}
				d, ok := shared[ref.Data]
				if !ok {
					d, err = s.readBlock(txn, store, ref.Data)
					if err != nil {
						return err
					}
					shared[ref.Data] = d
				}
				if err := mesh.AddBlock(d, ref.Pos); err != nil {
					if errors.Is(err, voxel.ErrResourceExhausted) {
						return fmt.Errorf("block %v: %w", ref.Pos, err)
					}
					return fmt.Errorf("%w: block %v: %v", ErrCorrupted, ref.Pos, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		release()
		return nil, err
	}

	img = document.RestoreImage(store, cfg, id, layers, manifest.Active)
	img.Path = manifest.Path
	img.ExportWidth = manifest.ExportWidth
	img.ExportHeight = manifest.ExportHeight

	span.SetAttributes(attribute.Int("image.unique_blocks", len(shared)))
	s.logger.Debug("Документ %s загружен: слоёв=%d, уникальных блоков=%d", manifest.ID, len(layers), len(shared))
	return img, nil
}

func (s *ImageStorage) readBlock(txn *badger.Txn, store *voxel.Store, key string) (*voxel.BlockData, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: missing %s", ErrCorrupted, key)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения блока %s: %w", key, err)
	}
	var (
		raw    []byte
		digest [digestSize]byte
	)
	err = item.Value(func(val []byte) error {
		if len(val) < digestSize {
			return errors.New("value too short")
		}
		copy(digest[:], val[:digestSize])
		var derr error
		raw, derr = s.decoder.DecodeAll(val[digestSize:], nil)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
	}
	if sha256.Sum256(raw) != digest {
		return nil, fmt.Errorf("%w: %s: digest mismatch", ErrCorrupted, key)
	}
	d, err := store.NewBlockDataFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
	}
	return d, nil
}

// ListImages идентификаторы сохранённых документов по возрастанию
func (s *ImageStorage) ListImages(ctx context.Context) ([]uuid.UUID, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}

	var ids []uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(imagePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			id, err := uuid.Parse(strings.TrimPrefix(key, imagePrefix))
			if err != nil {
				s.logger.Warn("Некорректный ключ документа '%s': %v", key, err)
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// DeleteImage удаляет описание документа. Содержимое блоков удаляется
// сборкой мусора.
func (s *ImageStorage) DeleteImage(ctx context.Context, id uuid.UUID) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(imageKey(id)); err != nil {
			return err
		}
		return txn.Delete(imageKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return err
}

// CollectGarbage удаляет содержимое блоков, на которое не ссылается
// ни один документ. Возвращает число удалённых записей.
func (s *ImageStorage) CollectGarbage(ctx context.Context) (removed int, err error) {
	ctx, span := s.tracer.Start(ctx, "storage.CollectGarbage")
	defer func() { finishSpan(span, err) }()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.isReady {
		return 0, ErrNotReady
	}

	live := make(map[string]bool)
	var orphans [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(imagePrefix)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m ImageManifest
				if err := json.Unmarshal(val, &m); err != nil {
					return fmt.Errorf("%w: %v", ErrCorrupted, err)
				}
				for _, l := range m.Layers {
					for _, b := range l.Blocks {
						live[b.Data] = true
					}
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		keyOpts := badger.DefaultIteratorOptions
		keyOpts.PrefetchValues = false
		keyOpts.Prefix = []byte(dataPrefix)
		kit := txn.NewIterator(keyOpts)
		defer kit.Close()
		for kit.Rewind(); kit.Valid(); kit.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if key := kit.Item().KeyCopy(nil); !live[string(key)] {
				orphans = append(orphans, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range orphans {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("ошибка удаления блока: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	span.SetAttributes(attribute.Int("storage.removed", len(orphans)))
	s.logger.Debug("Сборка мусора: удалено %d блоков", len(orphans))
	return len(orphans), nil
}
