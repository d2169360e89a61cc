package voxel

import "testing"

func TestEntityStorage_SparseBasics(t *testing.T) {
	var s EntityStorage
	if s.Len() != 0 || s.Contains(NewLocalPos(1, 2, 3)) {
		t.Fatalf("empty storage not empty")
	}

	p := NewLocalPos(1, 2, 3)
	s.Add(p, BlockEntity{Kind: 5, State: 99})
	e, ok := s.Get(p)
	if !ok || e.Kind != 5 || e.State != 99 {
		t.Fatalf("get after add: %v %v", e, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("len: %d", s.Len())
	}

	// Overwrite in place.
	s.Add(p, BlockEntity{Kind: 6})
	if e, _ := s.Get(p); e.Kind != 6 {
		t.Fatalf("overwrite: %v", e)
	}
	if s.Len() != 1 {
		t.Fatalf("overwrite grew len: %d", s.Len())
	}

	removed, ok := s.Remove(p)
	if !ok || removed.Kind != 6 {
		t.Fatalf("remove: %v %v", removed, ok)
	}
	if _, ok := s.Remove(p); ok {
		t.Fatalf("double remove reported success")
	}
	if s.Len() != 0 {
		t.Fatalf("len after remove: %d", s.Len())
	}
}

func TestEntityStorage_PromoteAndDemote(t *testing.T) {
	var s EntityStorage
	// Cross the quarter-occupancy threshold.
	for i := 0; i <= entityDenseThreshold; i++ {
		s.Add(LocalFromIndex(i), BlockEntity{Kind: uint16(i)})
	}
	if s.kind != entityDense {
		t.Fatalf("above 1/4 occupancy: kind %v", s.kind)
	}
	for i := 0; i <= entityDenseThreshold; i++ {
		e, ok := s.Get(LocalFromIndex(i))
		if !ok || e.Kind != uint16(i) {
			t.Fatalf("entity %d lost in promotion: %v %v", i, e, ok)
		}
	}

	// Drop below the eighth-occupancy threshold.
	for i := entitySparseThreshold; i <= entityDenseThreshold; i++ {
		s.Remove(LocalFromIndex(i))
	}
	if s.kind != entitySparse {
		t.Fatalf("below 1/8 occupancy: kind %v", s.kind)
	}
	if s.Len() != entitySparseThreshold {
		t.Fatalf("len after demote: %d", s.Len())
	}
}

func TestEntityStorage_Range(t *testing.T) {
	var s EntityStorage
	for i := 0; i < 10; i++ {
		s.Add(LocalFromIndex(i*7), BlockEntity{Kind: uint16(i)})
	}
	n := 0
	s.Range(func(p LocalPos, e BlockEntity) bool {
		n++
		return true
	})
	if n != 10 {
		t.Fatalf("ranged %d entities want 10", n)
	}

	n = 0
	s.Range(func(p LocalPos, e BlockEntity) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Fatalf("early stop ranged %d want 3", n)
	}
}
