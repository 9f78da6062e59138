package document

import "github.com/annel0/voxmesh/internal/logging"

// snapshot неизменяемая копия состояния слоёв. Меши разделяются
// с документом через copy-on-write, поэтому снимок стоит O(число слоёв).
type snapshot struct {
	layers      []*Layer
	active      int
	nextLayerID int
}

func takeSnapshot(img *Image) *snapshot {
	s := &snapshot{layers: make([]*Layer, len(img.layers)), active: -1, nextLayerID: img.nextLayerID}
	for i, l := range img.layers {
		s.layers[i] = l.clone()
		if l == img.active {
			s.active = i
		}
	}
	return s
}

func (s *snapshot) release() {
	for _, l := range s.layers {
		l.mesh.Release()
	}
	s.layers = nil
}

// divergedFrom проверяет, изменился ли документ после снимка.
// Меш считается неизменённым, пока он разделяет таблицу блоков со снимком.
func (s *snapshot) divergedFrom(img *Image) bool {
	if len(s.layers) != len(img.layers) || s.active != img.indexOf(img.active) {
		return true
	}
	for i, l := range img.layers {
		sl := s.layers[i]
		if sl.id != l.id || sl.name != l.name || sl.visible != l.visible || !sl.mesh.SharesStorage(l.mesh) {
			return true
		}
	}
	return false
}

// restore переносит состояние снимка в документ. Слои, существующие в обоих,
// сохраняют свои указатели; лишние слои освобождаются.
func (s *snapshot) restore(img *Image) {
	current := make(map[int]*Layer, len(img.layers))
	for _, l := range img.layers {
		current[l.id] = l
	}

	layers := make([]*Layer, len(s.layers))
	for i, sl := range s.layers {
		l, ok := current[sl.id]
		if ok {
			delete(current, sl.id)
			l.name = sl.name
			l.visible = sl.visible
			l.mesh.Set(sl.mesh)
		} else {
			l = sl.clone()
		}
		layers[i] = l
	}
	for _, l := range current {
		l.mesh.Release()
	}

	img.layers = layers
	img.active = layers[s.active]
	img.nextLayerID = s.nextLayerID
	img.checkActive()
}

// History линейная история снимков документа с курсором.
// Новая запись после отмены отбрасывает ветку повтора; при превышении
// глубины самые старые снимки вытесняются.
type History struct {
	snaps    []*snapshot
	cursor   int
	maxDepth int
	logger   *logging.Logger
}

func newHistory(depth int, logger *logging.Logger) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	if depth < 2 {
		depth = 2
	}
	return &History{cursor: -1, maxDepth: depth, logger: logger}
}

// Len число снимков
func (h *History) Len() int {
	return len(h.snaps)
}

// Cursor индекс текущего снимка
func (h *History) Cursor() int {
	return h.cursor
}

// MaxDepth максимальное число снимков
func (h *History) MaxDepth() int {
	return h.maxDepth
}

// CanUndo есть ли куда отменять
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo есть ли что повторять
func (h *History) CanRedo() bool {
	return h.cursor >= 0 && h.cursor < len(h.snaps)-1
}

// Pending есть ли у документа изменения после текущего снимка
func (h *History) Pending(img *Image) bool {
	return h.cursor < 0 || h.snaps[h.cursor].divergedFrom(img)
}

// Push сохраняет состояние документа после курсора. Если документ не менялся
// с текущего снимка, ничего не делает и возвращает false.
func (h *History) Push(img *Image) bool {
	if !h.Pending(img) {
		return false
	}
	for _, s := range h.snaps[h.cursor+1:] {
		s.release()
	}
	h.snaps = append(h.snaps[:h.cursor+1], takeSnapshot(img))
	h.cursor++

	for len(h.snaps) > h.maxDepth {
		h.snaps[0].release()
		h.snaps[0] = nil
		h.snaps = h.snaps[1:]
		h.cursor--
		h.logger.Trace("История: вытеснен самый старый снимок")
	}
	h.logger.Debug("История: снимок %d из %d", h.cursor+1, len(h.snaps))
	return true
}

// Undo возвращает документ к предыдущему снимку. Несохранённые изменения
// сначала фиксируются, чтобы к ним можно было вернуться через Redo.
// Возвращает false, если отменять нечего.
func (h *History) Undo(img *Image) bool {
	h.Push(img)
	if !h.CanUndo() {
		h.logger.Debug("История: нечего отменять")
		return false
	}
	h.cursor--
	h.snaps[h.cursor].restore(img)
	return true
}

// Redo переходит к следующему снимку. Если в документе есть несохранённые
// изменения, ветка повтора считается недействительной и Redo ничего не делает.
func (h *History) Redo(img *Image) bool {
	if !h.CanRedo() || h.Pending(img) {
		h.logger.Debug("История: нечего повторять")
		return false
	}
	h.cursor++
	h.snaps[h.cursor].restore(img)
	return true
}

func (h *History) release() {
	for _, s := range h.snaps {
		s.release()
	}
	h.snaps = nil
	h.cursor = -1
}
