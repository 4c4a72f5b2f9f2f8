package store

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// TemplateIndex is an in-memory approximate-nearest-neighbor index over face
// templates. It serves enrollment-time duplicate detection and fast
// single-face identification; the matcher itself always works from a full
// template snapshot, not from the index.
type TemplateIndex struct {
	graph       *hnsw.Graph[int64]
	idToStudent map[int64]string // template ID -> owning student
	mu          sync.RWMutex
}

const indexMaxNeighbors = 16

// Neighbor is one index search result.
type Neighbor struct {
	TemplateID int64
	StudentID  string
	Distance   float64
}

// NewTemplateIndex creates an empty index.
func NewTemplateIndex() *TemplateIndex {
	return &TemplateIndex{
		idToStudent: make(map[int64]string),
	}
}

// Build replaces the index contents with the given templates.
func (ti *TemplateIndex) Build(templates []Template) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if len(templates) == 0 {
		ti.graph = nil
		ti.idToStudent = make(map[int64]string)
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	ti.idToStudent = make(map[int64]string, len(templates))
	for i := range templates {
		tpl := &templates[i]
		if len(tpl.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(tpl.ID, tpl.Embedding))
		ti.idToStudent[tpl.ID] = tpl.StudentID
	}
	ti.graph = g
}

// Add inserts a single template into the index.
func (ti *TemplateIndex) Add(tpl *Template) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if len(tpl.Embedding) == 0 {
		return
	}
	if ti.graph == nil {
		ti.graph = hnsw.NewGraph[int64]()
		ti.graph.M = indexMaxNeighbors
		ti.graph.Ml = 1.0 / float64(indexMaxNeighbors)
		ti.graph.Distance = hnsw.EuclideanDistance
	}
	ti.graph.Add(hnsw.MakeNode(tpl.ID, tpl.Embedding))
	ti.idToStudent[tpl.ID] = tpl.StudentID
}

// Remove drops all templates of a student from search results. The HNSW
// graph has no true deletion, so removed IDs are filtered at lookup time.
func (ti *TemplateIndex) Remove(studentID string) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	for id, sid := range ti.idToStudent {
		if sid == studentID {
			delete(ti.idToStudent, id)
		}
	}
}

// Search finds the k nearest templates to the query embedding.
func (ti *TemplateIndex) Search(query []float32, k int) ([]Neighbor, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	if ti.graph == nil {
		return nil, errors.New("index not initialized")
	}

	nodes := ti.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		studentID, ok := ti.idToStudent[n.Key]
		if !ok {
			continue // removed template
		}
		neighbors = append(neighbors, Neighbor{
			TemplateID: n.Key,
			StudentID:  studentID,
			Distance:   float64(hnsw.EuclideanDistance(query, n.Value)),
		})
	}
	return neighbors, nil
}

// Count returns the number of live templates in the index.
func (ti *TemplateIndex) Count() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.idToStudent)
}
