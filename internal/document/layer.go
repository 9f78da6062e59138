package document

import (
	"unicode/utf8"

	"github.com/annel0/voxmesh/internal/voxel"
)

// MaxLayerName максимальная длина имени слоя в байтах
const MaxLayerName = 127

// Layer именованный меш изображения с флагом видимости.
// Меш слоя можно изменять напрямую через Mesh(); изменения попадут
// в историю при следующем Push.
type Layer struct {
	id      int
	name    string
	visible bool
	mesh    *voxel.Mesh
}

// ID идентификатор слоя внутри изображения; сохраняется при отмене и повторе
func (l *Layer) ID() int {
	return l.id
}

// Name имя слоя
func (l *Layer) Name() string {
	return l.name
}

// Visible видим ли слой
func (l *Layer) Visible() bool {
	return l.visible
}

// Mesh меш слоя
func (l *Layer) Mesh() *voxel.Mesh {
	return l.mesh
}

// clone копия слоя с тем же идентификатором; меш копируется за O(1)
func (l *Layer) clone() *Layer {
	return &Layer{id: l.id, name: l.name, visible: l.visible, mesh: l.mesh.Copy()}
}

// truncateName обрезает имя до MaxLayerName байт, не разрывая символ UTF-8
func truncateName(name string) string {
	if len(name) <= MaxLayerName {
		return name
	}
	cut := MaxLayerName
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
