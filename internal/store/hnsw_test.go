package store

import "testing"

func tpl(id int64, studentID string, embedding []float32) Template {
	return Template{ID: id, StudentID: studentID, Embedding: embedding, Dim: len(embedding)}
}

func TestTemplateIndexSearch(t *testing.T) {
	index := NewTemplateIndex()
	index.Build([]Template{
		tpl(1, "STU001", []float32{1, 0}),
		tpl(2, "STU002", []float32{0, 1}),
		tpl(3, "STU003", []float32{-1, 0}),
	})

	neighbors, err := index.Search([]float32{0.9, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].StudentID != "STU001" {
		t.Errorf("expected STU001 nearest, got %s", neighbors[0].StudentID)
	}
	if neighbors[1].Distance < neighbors[0].Distance {
		t.Error("neighbors not ordered by distance")
	}
}

func TestTemplateIndexSearchEmpty(t *testing.T) {
	index := NewTemplateIndex()
	if _, err := index.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected error on empty index")
	}
}

func TestTemplateIndexRemoveFiltersAtLookup(t *testing.T) {
	index := NewTemplateIndex()
	index.Build([]Template{
		tpl(1, "STU001", []float32{1, 0}),
		tpl(2, "STU002", []float32{0, 1}),
	})

	index.Remove("STU001")

	if index.Count() != 1 {
		t.Errorf("expected 1 live template, got %d", index.Count())
	}

	neighbors, err := index.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, n := range neighbors {
		if n.StudentID == "STU001" {
			t.Error("removed student still returned from search")
		}
	}
}

func TestTemplateIndexAdd(t *testing.T) {
	index := NewTemplateIndex()

	added := tpl(7, "STU007", []float32{0.5, 0.5})
	index.Add(&added)

	if index.Count() != 1 {
		t.Fatalf("expected 1 template, got %d", index.Count())
	}

	neighbors, err := index.Search([]float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].TemplateID != 7 {
		t.Errorf("unexpected neighbors %v", neighbors)
	}
}

func TestTemplateIndexBuildEmptyResets(t *testing.T) {
	index := NewTemplateIndex()
	index.Build([]Template{tpl(1, "STU001", []float32{1, 0})})
	index.Build(nil)

	if index.Count() != 0 {
		t.Errorf("expected empty index after rebuild, got %d", index.Count())
	}
}
