package voxel

// BlockEntity is the opaque per-cell payload attached to blocks that
// carry state beyond their palette value. Its meaning belongs to
// higher layers; the container below only stores it.
type BlockEntity struct {
	Kind  uint16
	State uint32
}

type entityKind uint8

const (
	entityEmpty entityKind = iota
	entitySparse
	entityDense
)

const (
	// Promote Sparse->Dense above 1/4 occupancy, demote below 1/8.
	entityDenseThreshold  = ChunkVolume / 4
	entitySparseThreshold = ChunkVolume / 8
)

// EntityStorage is the occupancy-keyed counterpart of BlockStorage:
// Empty until the first entity, a position-keyed map while sparse, a
// fixed array of optional slots once more than a quarter of the cells
// are occupied.
type EntityStorage struct {
	kind   entityKind
	sparse map[LocalPos]BlockEntity
	dense  []*BlockEntity // ChunkVolume slots
}

func (s *EntityStorage) Len() int {
	switch s.kind {
	case entitySparse:
		return len(s.sparse)
	case entityDense:
		n := 0
		for _, e := range s.dense {
			if e != nil {
				n++
			}
		}
		return n
	default:
		return 0
	}
}

func (s *EntityStorage) Get(p LocalPos) (BlockEntity, bool) {
	switch s.kind {
	case entitySparse:
		e, ok := s.sparse[p]
		return e, ok
	case entityDense:
		if e := s.dense[p.Index()]; e != nil {
			return *e, true
		}
		return BlockEntity{}, false
	default:
		return BlockEntity{}, false
	}
}

func (s *EntityStorage) Contains(p LocalPos) bool {
	_, ok := s.Get(p)
	return ok
}

func (s *EntityStorage) Add(p LocalPos, e BlockEntity) {
	switch s.kind {
	case entityEmpty:
		s.sparse = make(map[LocalPos]BlockEntity, 8)
		s.sparse[p] = e
		s.kind = entitySparse
	case entitySparse:
		s.sparse[p] = e
		if len(s.sparse) > entityDenseThreshold {
			s.promoteDense()
		}
	case entityDense:
		v := e
		s.dense[p.Index()] = &v
	}
}

func (s *EntityStorage) Remove(p LocalPos) (BlockEntity, bool) {
	switch s.kind {
	case entitySparse:
		e, ok := s.sparse[p]
		if ok {
			delete(s.sparse, p)
			if len(s.sparse) == 0 {
				*s = EntityStorage{}
			}
		}
		return e, ok
	case entityDense:
		slot := s.dense[p.Index()]
		if slot == nil {
			return BlockEntity{}, false
		}
		e := *slot
		s.dense[p.Index()] = nil
		if s.Len() < entitySparseThreshold {
			s.demoteSparse()
		}
		return e, true
	default:
		return BlockEntity{}, false
	}
}

// Range calls fn for every stored entity until it returns false.
func (s *EntityStorage) Range(fn func(LocalPos, BlockEntity) bool) {
	switch s.kind {
	case entitySparse:
		for p, e := range s.sparse {
			if !fn(p, e) {
				return
			}
		}
	case entityDense:
		for i, e := range s.dense {
			if e == nil {
				continue
			}
			if !fn(LocalFromIndex(i), *e) {
				return
			}
		}
	}
}

// Optimize applies the occupancy thresholds without waiting for the
// next Add/Remove.
func (s *EntityStorage) Optimize() {
	switch s.kind {
	case entitySparse:
		if len(s.sparse) == 0 {
			*s = EntityStorage{}
		} else if len(s.sparse) > entityDenseThreshold {
			s.promoteDense()
		}
	case entityDense:
		n := s.Len()
		if n == 0 {
			*s = EntityStorage{}
		} else if n < entitySparseThreshold {
			s.demoteSparse()
		}
	}
}

func (s *EntityStorage) promoteDense() {
	dense := make([]*BlockEntity, ChunkVolume)
	for p, e := range s.sparse {
		v := e
		dense[p.Index()] = &v
	}
	*s = EntityStorage{kind: entityDense, dense: dense}
}

func (s *EntityStorage) demoteSparse() {
	sparse := make(map[LocalPos]BlockEntity, entitySparseThreshold)
	for i, e := range s.dense {
		if e != nil {
			sparse[LocalFromIndex(i)] = *e
		}
	}
	if len(sparse) == 0 {
		*s = EntityStorage{}
		return
	}
	*s = EntityStorage{kind: entitySparse, sparse: sparse}
}
