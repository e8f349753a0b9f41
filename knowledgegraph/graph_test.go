package knowledgegraph

import (
	"context"
	"testing"
)

type fakeExtractor struct {
	entities []Entity
}

func (f fakeExtractor) Extract(_ context.Context, _ string) ([]Entity, error) {
	return f.entities, nil
}

func TestGraph_AddCaseStudy_NoExtractor(t *testing.T) {
	g := New(nil)
	err := g.AddCaseStudy(context.Background(), CaseStudy{ID: "cs1", Title: "Acme Migration", Industry: "Retail"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches := g.FindMatchingCaseStudies([]string{"Retail"}, "", 10)
	if len(matches) != 1 || matches[0].CaseStudy.ID != "cs1" {
		t.Errorf("expected the industry entity alone to surface cs1, got %+v", matches)
	}
}

func TestGraph_FindMatchingCaseStudies_WeightsEntitiesAndIndustry(t *testing.T) {
	extractor := fakeExtractor{entities: []Entity{
		{ID: "cloud", Type: EntityTechnology, Name: "Cloud Migration"},
	}}
	g := New(extractor)
	ctx := context.Background()

	if err := g.AddCaseStudy(ctx, CaseStudy{ID: "cs1", Title: "t", Industry: "Retail"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddCaseStudy(ctx, CaseStudy{ID: "cs2", Title: "t", Industry: "Healthcare"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches := g.FindMatchingCaseStudies([]string{"Cloud Migration"}, "Retail", 10)
	if len(matches) != 2 {
		t.Fatalf("expected both case studies to match on the shared technology entity, got %d", len(matches))
	}
	if matches[0].CaseStudy.ID != "cs1" {
		t.Errorf("expected the industry-matching case study to rank first, got %+v", matches)
	}
	if matches[0].Weight <= matches[1].Weight {
		t.Errorf("expected industry match to carry a higher weight: %+v", matches)
	}
}

func TestGraph_FindMatchingCaseStudies_RespectsTopK(t *testing.T) {
	extractor := fakeExtractor{entities: []Entity{{ID: "x", Type: EntitySolution, Name: "Shared"}}}
	g := New(extractor)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := g.AddCaseStudy(ctx, CaseStudy{ID: id, Title: "t", Industry: "Retail"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	matches := g.FindMatchingCaseStudies([]string{"Shared"}, "", 2)
	if len(matches) != 2 {
		t.Errorf("expected topK=2 to cap results, got %d", len(matches))
	}
}

func TestGraph_FindRelated_UnknownEntityReturnsEmpty(t *testing.T) {
	g := New(nil)
	related := g.FindRelated("nonexistent", 2)
	if len(related) != 0 {
		t.Errorf("expected no related entities for an unknown ID, got %v", related)
	}
}
