package voxel

import "errors"

var (
	// ErrResourceExhausted возвращается, когда операции не хватает бюджета BlockData.
	// Меш при этом остаётся в исходном состоянии.
	ErrResourceExhausted = errors.New("voxel: block data budget exhausted")
	// ErrMisalignedBlock позиция блока не кратна BlockSize
	ErrMisalignedBlock = errors.New("voxel: block position is not aligned to the block grid")
	// ErrInvalidBlockData сырые данные блока имеют неверный размер
	ErrInvalidBlockData = errors.New("voxel: invalid block data size")
	// ErrForeignStore объекты принадлежат разным Store
	ErrForeignStore = errors.New("voxel: objects belong to different stores")
	// ErrSingularTransform матрица преобразования не обратима
	ErrSingularTransform = errors.New("voxel: transform is not invertible")
)

// invariant паникует при нарушении инварианта хранилища.
// Такие ситуации исключены конструкцией и не являются ошибками времени выполнения.
func invariant(cond bool, msg string) {
	if !cond {
		panic("voxel: invariant violation: " + msg)
	}
}
