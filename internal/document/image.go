package document

import (
	"fmt"

	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/google/uuid"
)

// DefaultHistoryDepth глубина истории по умолчанию
const DefaultHistoryDepth = 64

// ImageConfig параметры документа
type ImageConfig struct {
	// HistoryDepth максимальное число снимков истории (не меньше 2)
	HistoryDepth int
	Logger       *logging.Logger
}

// Image документ: упорядоченные слои (снизу вверх), активный слой и история.
// Активный слой всегда входит в список слоёв.
type Image struct {
	id          uuid.UUID
	store       *voxel.Store
	layers      []*Layer
	active      *Layer
	nextLayerID int

	// Path путь файла документа
	Path string
	// ExportWidth и ExportHeight размер изображения при экспорте рендера
	ExportWidth  int
	ExportHeight int

	history *History
	logger  *logging.Logger
}

// NewImage создаёт документ с одним пустым слоем. История начинается
// со снимка этого исходного состояния.
func NewImage(store *voxel.Store, cfg ImageConfig) *Image {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	img := &Image{
		id:           uuid.New(),
		store:        store,
		nextLayerID:  1,
		ExportWidth:  1024,
		ExportHeight: 1024,
		logger:       logger,
	}
	img.AddLayer("")
	img.history = newHistory(cfg.HistoryDepth, logger)
	img.history.Push(img)
	logger.Debug("Создан документ %s", img.id)
	return img
}

// ID идентификатор документа
func (img *Image) ID() uuid.UUID {
	return img.id
}

// Store хранилище блоков документа
func (img *Image) Store() *voxel.Store {
	return img.store
}

// History история документа
func (img *Image) History() *History {
	return img.history
}

// Layers слои снизу вверх (копия списка)
func (img *Image) Layers() []*Layer {
	out := make([]*Layer, len(img.layers))
	copy(out, img.layers)
	return out
}

// Active активный слой
func (img *Image) Active() *Layer {
	return img.active
}

// LayerByID ищет слой по идентификатору
func (img *Image) LayerByID(id int) (*Layer, bool) {
	for _, l := range img.layers {
		if l.id == id {
			return l, true
		}
	}
	return nil, false
}

func (img *Image) indexOf(l *Layer) int {
	for i, x := range img.layers {
		if x == l {
			return i
		}
	}
	return -1
}

func (img *Image) mustIndex(l *Layer) (int, error) {
	i := img.indexOf(l)
	if i < 0 {
		return -1, ErrLayerNotFound
	}
	return i, nil
}

func (img *Image) newLayer(name string) *Layer {
	if name == "" {
		name = fmt.Sprintf("Layer %d", img.nextLayerID)
	}
	l := &Layer{id: img.nextLayerID, name: truncateName(name), visible: true, mesh: img.store.NewMesh()}
	img.nextLayerID++
	return l
}

// AddLayer добавляет пустой слой наверх и делает его активным.
// Пустое имя заменяется на "Layer N".
func (img *Image) AddLayer(name string) *Layer {
	l := img.newLayer(name)
	img.layers = append(img.layers, l)
	img.active = l
	img.logger.Debug("Добавлен слой %d %q", l.id, l.name)
	return l
}

// DeleteLayer удаляет слой. Если слоёв не осталось, добавляется новый пустой.
// Если удалён активный слой, активным становится слой под ним.
func (img *Image) DeleteLayer(l *Layer) error {
	i, err := img.mustIndex(l)
	if err != nil {
		return err
	}
	img.layers = append(img.layers[:i], img.layers[i+1:]...)
	l.mesh.Release()
	img.logger.Debug("Удалён слой %d %q", l.id, l.name)

	if len(img.layers) == 0 {
		img.AddLayer("")
		return nil
	}
	if img.active == l {
		img.active = img.layers[max(i-1, 0)]
	}
	return nil
}

// MoveLayer сдвигает слой на d позиций (положительное: вверх).
// Сдвиг за пределы списка ограничивается краем.
func (img *Image) MoveLayer(l *Layer, d int) error {
	i, err := img.mustIndex(l)
	if err != nil {
		return err
	}
	j := min(max(i+d, 0), len(img.layers)-1)
	if i == j {
		return nil
	}
	img.layers = append(img.layers[:i], img.layers[i+1:]...)
	img.layers = append(img.layers[:j], append([]*Layer{l}, img.layers[j:]...)...)
	return nil
}

// DuplicateLayer создаёт копию слоя над ним (меш разделяется до первой записи)
// и делает её активной
func (img *Image) DuplicateLayer(l *Layer) (*Layer, error) {
	i, err := img.mustIndex(l)
	if err != nil {
		return nil, err
	}
	dup := img.newLayer(l.name + " copy")
	dup.visible = l.visible
	dup.mesh.Set(l.mesh)
	img.layers = append(img.layers[:i+1], append([]*Layer{dup}, img.layers[i+1:]...)...)
	img.active = dup
	return dup, nil
}

// SetActive делает слой активным
func (img *Image) SetActive(l *Layer) error {
	if _, err := img.mustIndex(l); err != nil {
		return err
	}
	img.active = l
	return nil
}

// Rename переименовывает слой (имя обрезается до MaxLayerName байт)
func (img *Image) Rename(l *Layer, name string) error {
	if _, err := img.mustIndex(l); err != nil {
		return err
	}
	l.name = truncateName(name)
	return nil
}

// SetVisible меняет видимость слоя
func (img *Image) SetVisible(l *Layer, visible bool) error {
	if _, err := img.mustIndex(l); err != nil {
		return err
	}
	l.visible = visible
	return nil
}

// Flatten собирает новый меш из видимых слоёв снизу вверх; верхние слои
// перекрывают нижние. Возвращённый меш освобождает вызывающий.
func (img *Image) Flatten() (*voxel.Mesh, error) {
	out := img.store.NewMesh()
	for _, l := range img.layers {
		if !l.visible {
			continue
		}
		if err := out.Merge(l.mesh); err != nil {
			out.Release()
			return nil, fmt.Errorf("flatten layer %q: %w", l.name, err)
		}
	}
	return out, nil
}

// MergeVisibleLayers сливает все видимые слои в самый верхний видимый.
// Остальные видимые слои удаляются. Меньше двух видимых слоёв — ничего не делает.
func (img *Image) MergeVisibleLayers() error {
	var visible []*Layer
	for _, l := range img.layers {
		if l.visible {
			visible = append(visible, l)
		}
	}
	if len(visible) < 2 {
		return nil
	}
	target := visible[len(visible)-1]
	merged, err := img.Flatten()
	if err != nil {
		return err
	}
	target.mesh.Set(merged)
	merged.Release()

	for _, l := range visible[:len(visible)-1] {
		i := img.indexOf(l)
		img.layers = append(img.layers[:i], img.layers[i+1:]...)
		l.mesh.Release()
		if img.active == l {
			img.active = target
		}
	}
	img.logger.Debug("Слито %d видимых слоёв в %q", len(visible), target.name)
	return nil
}

// Copy возвращает независимый документ с теми же слоями (меши разделяются
// до первой записи) и собственной историей из одного снимка
func (img *Image) Copy() *Image {
	c := &Image{
		id:           uuid.New(),
		store:        img.store,
		nextLayerID:  img.nextLayerID,
		Path:         img.Path,
		ExportWidth:  img.ExportWidth,
		ExportHeight: img.ExportHeight,
		logger:       img.logger,
	}
	for _, l := range img.layers {
		dup := l.clone()
		c.layers = append(c.layers, dup)
		if l == img.active {
			c.active = dup
		}
	}
	c.history = newHistory(img.history.maxDepth, img.logger)
	c.history.Push(c)
	return c
}

// Release освобождает все меши документа и его историю
func (img *Image) Release() {
	for _, l := range img.layers {
		l.mesh.Release()
	}
	img.layers = nil
	img.active = nil
	if img.history != nil {
		img.history.release()
	}
}

// Push фиксирует текущее состояние в истории
func (img *Image) Push() bool {
	return img.history.Push(img)
}

// Undo отменяет последнее изменение
func (img *Image) Undo() bool {
	return img.history.Undo(img)
}

// Redo повторяет отменённое изменение
func (img *Image) Redo() bool {
	return img.history.Redo(img)
}

// checkActive паникует, если активный слой не входит в список
func (img *Image) checkActive() {
	if img.active == nil || img.indexOf(img.active) < 0 {
		panic("document: invariant violation: active layer is not in the image")
	}
}

// LayerState описание слоя для восстановления документа (загрузка, импорт)
type LayerState struct {
	Name    string
	Visible bool
	Mesh    *voxel.Mesh
}

// RestoreImage собирает документ из готовых слоёв. Меши переходят во владение
// документа. Пустой список слоёв даёт документ с одним пустым слоем;
// индекс активного слоя вне диапазона заменяется верхним слоем.
func RestoreImage(store *voxel.Store, cfg ImageConfig, id uuid.UUID, layers []LayerState, active int) *Image {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	img := &Image{
		id:           id,
		store:        store,
		nextLayerID:  1,
		ExportWidth:  1024,
		ExportHeight: 1024,
		logger:       logger,
	}
	for _, ls := range layers {
		l := img.newLayer(ls.Name)
		l.visible = ls.Visible
		if ls.Mesh != nil {
			l.mesh = ls.Mesh
		}
		img.layers = append(img.layers, l)
	}
	if len(img.layers) == 0 {
		img.AddLayer("")
	}
	if active < 0 || active >= len(img.layers) {
		active = len(img.layers) - 1
	}
	img.active = img.layers[active]
	img.history = newHistory(cfg.HistoryDepth, logger)
	img.history.Push(img)
	return img
}
