package voxel

import (
	"fmt"
	"sync/atomic"

	"github.com/annel0/voxmesh/internal/logging"
)

// Observer получает уведомления о жизненном цикле BlockData.
// Реализация с метриками Prometheus находится в пакете metrics.
type Observer interface {
	BlockDataAllocated()
	BlockDataCloned()
	BlockDataFreed()
	MeshTableCopied(blocks int)
}

// StoreConfig параметры хранилища
type StoreConfig struct {
	// MaxBlockData ограничивает число живых BlockData (0: без ограничения)
	MaxBlockData int
	Observer     Observer
	Logger       *logging.Logger
}

// Stats снимок счётчиков хранилища
type Stats struct {
	LiveData    int64 // BlockData с ненулевым счётчиком ссылок
	Attachments int64 // сумма счётчиков ссылок всех BlockData
	Allocated   int64 // всего создано BlockData
	Cloned      int64 // из них копий при copy-on-write
	Freed       int64 // освобождено (счётчик дошёл до нуля)
	Tables      int64 // глубокие копии таблиц блоков меша
}

// Store контекст движка: выдаёт идентификаторы BlockData, ведёт учёт ссылок
// и бюджет памяти. Все меши одного документа разделяют один Store.
type Store struct {
	nextDataID  uint64
	live        int64
	attachments int64
	allocated   int64
	cloned      int64
	freed       int64
	tables      int64

	maxData  int64
	observer Observer
	logger   *logging.Logger
}

// NewStore создаёт новое хранилище
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		maxData:  int64(cfg.MaxBlockData),
		observer: cfg.Observer,
		logger:   logger,
	}
}

// Logger возвращает логгер хранилища
func (s *Store) Logger() *logging.Logger {
	return s.logger
}

// Stats возвращает текущие счётчики
func (s *Store) Stats() Stats {
	return Stats{
		LiveData:    atomic.LoadInt64(&s.live),
		Attachments: atomic.LoadInt64(&s.attachments),
		Allocated:   atomic.LoadInt64(&s.allocated),
		Cloned:      atomic.LoadInt64(&s.cloned),
		Freed:       atomic.LoadInt64(&s.freed),
		Tables:      atomic.LoadInt64(&s.tables),
	}
}

// NewBlockData создаёт пустой непривязанный BlockData.
// Пока счётчик ссылок равен нулю, данные можно заполнять через Set.
func (s *Store) NewBlockData() *BlockData {
	atomic.AddInt64(&s.allocated, 1)
	if s.observer != nil {
		s.observer.BlockDataAllocated()
	}
	return &BlockData{
		store: s,
		id:    s.nextID(),
	}
}

// NewBlockDataFromBytes создаёт BlockData из сырых RGBA байт (BlockBytes штук).
// Используется путём импорта и загрузки документа.
func (s *Store) NewBlockDataFromBytes(raw []byte) (*BlockData, error) {
	if len(raw) != BlockBytes {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidBlockData, len(raw), BlockBytes)
	}
	d := s.NewBlockData()
	for i := 0; i < BlockVolume; i++ {
		d.put(i, Voxel{R: raw[i*4], G: raw[i*4+1], B: raw[i*4+2], A: raw[i*4+3]})
	}
	return d, nil
}

// reserve проверяет, что бюджет выдержит ещё n живых BlockData
func (s *Store) reserve(n int) error {
	if s.maxData <= 0 || n <= 0 {
		return nil
	}
	live := atomic.LoadInt64(&s.live)
	if live+int64(n) > s.maxData {
		s.logger.Warn("бюджет BlockData исчерпан: живых=%d, нужно ещё=%d, лимит=%d", live, n, s.maxData)
		return fmt.Errorf("%w: live=%d need=%d limit=%d", ErrResourceExhausted, live, n, s.maxData)
	}
	return nil
}

// acquire добавляет ссылку на данные
func (s *Store) acquire(d *BlockData) {
	if atomic.AddInt32(&d.ref, 1) == 1 {
		atomic.AddInt64(&s.live, 1)
	}
	atomic.AddInt64(&s.attachments, 1)
}

// release снимает ссылку; при нуле данные считаются освобождёнными
func (s *Store) release(d *BlockData) {
	ref := atomic.AddInt32(&d.ref, -1)
	invariant(ref >= 0, "BlockData refcount underflow")
	atomic.AddInt64(&s.attachments, -1)
	if ref == 0 {
		atomic.AddInt64(&s.live, -1)
		atomic.AddInt64(&s.freed, 1)
		if s.observer != nil {
			s.observer.BlockDataFreed()
		}
	}
}

// clone создаёт приватную копию данных с новым идентификатором
func (s *Store) clone(d *BlockData) *BlockData {
	c := &BlockData{
		store:  s,
		id:     s.nextID(),
		filled: d.filled,
		voxels: d.voxels,
	}
	atomic.AddInt64(&s.allocated, 1)
	atomic.AddInt64(&s.cloned, 1)
	if s.observer != nil {
		s.observer.BlockDataAllocated()
		s.observer.BlockDataCloned()
	}
	return c
}

// nextID новый идентификатор данных; идентификаторы не переиспользуются
func (s *Store) nextID() uint64 {
	return atomic.AddUint64(&s.nextDataID, 1)
}

func (s *Store) tableCopied(blocks int) {
	atomic.AddInt64(&s.tables, 1)
	if s.observer != nil {
		s.observer.MeshTableCopied(blocks)
	}
}
