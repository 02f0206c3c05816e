package ranking

import (
	"math/rand"
	"testing"

	"github.com/penne-app/penne/internal/models"
)

func r(hall, user string, score int) models.Rating {
	return models.Rating{DiningHallName: hall, UserID: user, Score: score}
}

func TestAggregateAndRank_MeanCorrectness(t *testing.T) {
	got := AggregateAndRank([]models.Rating{r("A", "u1", 8), r("A", "u2", 6), r("B", "u3", 10)}, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].DiningHallName != "B" || got[0].MeanScore != 10.0 || got[0].Rank != 1 {
		t.Errorf("expected B first with mean 10, got %+v", got[0])
	}
	if got[1].DiningHallName != "A" || got[1].MeanScore != 7.0 || got[1].Count != 2 || got[1].Rank != 2 {
		t.Errorf("expected A second with mean 7 over 2, got %+v", got[1])
	}
}

func TestAggregateAndRank_ZeroRatingInclusion(t *testing.T) {
	got := AggregateAndRank(nil, []string{"B", "A"})

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	for i, want := range []string{"A", "B"} {
		if got[i].DiningHallName != want || got[i].MeanScore != 0 || got[i].Count != 0 || got[i].Rank != i+1 {
			t.Errorf("row %d: got %+v", i, got[i])
		}
	}

	again := AggregateAndRank(nil, []string{"A", "B"})
	for i := range got {
		if got[i] != again[i] {
			t.Errorf("order depends on input order: %+v vs %+v", got, again)
		}
	}
}

func TestAggregateAndRank_Empty(t *testing.T) {
	if got := AggregateAndRank(nil, nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestAggregateAndRank_TiesBrokenByName(t *testing.T) {
	got := AggregateAndRank([]models.Rating{r("Covel", "u1", 7), r("BPlate", "u2", 7), r("Epicuria", "u3", 7)}, nil)
	want := []string{"BPlate", "Covel", "Epicuria"}
	for i, name := range want {
		if got[i].DiningHallName != name || got[i].Rank != i+1 {
			t.Errorf("position %d: got %+v, want %s rank %d", i, got[i], name, i+1)
		}
	}
}

func TestAggregateAndRank_RankMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	halls := []string{"A", "B", "C", "D", "E", "F"}

	for round := 0; round < 50; round++ {
		var ratings []models.Rating
		for i := 0; i < rng.Intn(40); i++ {
			ratings = append(ratings, r(halls[rng.Intn(len(halls))], "u", 1+rng.Intn(10)))
		}
		got := AggregateAndRank(ratings, halls[:3])
		for i := range got {
			if got[i].Rank != i+1 {
				t.Fatalf("round %d: rank %d at index %d", round, got[i].Rank, i)
			}
			if i > 0 && got[i-1].MeanScore < got[i].MeanScore {
				t.Fatalf("round %d: mean not descending at %d: %+v", round, i, got)
			}
		}
	}
}

func TestPersonalized(t *testing.T) {
	ratings := []models.Rating{
		r("A", "me", 2), r("A", "u2", 10), r("A", "u3", 10),
		r("B", "u2", 6),
		r("C", "me", 9),
	}

	got := Personalized(ratings, []string{"A", "B", "C", "D"}, "me")

	c, _ := Find(got, "C")
	if !c.Personal || c.MeanScore != 9 || c.Rank != 1 {
		t.Errorf("expected personal C=9 ranked first, got %+v", c)
	}
	a, _ := Find(got, "A")
	if !a.Personal || a.MeanScore != 2 {
		t.Errorf("expected personal A=2, got %+v", a)
	}
	if a.Count != 2 {
		t.Errorf("expected count of other raters 2, got %d", a.Count)
	}
	b, _ := Find(got, "B")
	if b.Personal || b.MeanScore != 6 || b.Rank != 2 {
		t.Errorf("expected community B=6 at rank 2, got %+v", b)
	}
	d, ok := Find(got, "D")
	if !ok || d.MeanScore != 0 || d.Rank != 4 {
		t.Errorf("expected unrated D last, got %+v", d)
	}
}

func TestPersonalized_Anonymous(t *testing.T) {
	ratings := []models.Rating{r("A", "u1", 4), r("A", "u2", 6)}
	got := Personalized(ratings, nil, "")
	if len(got) != 1 || got[0].Personal || got[0].MeanScore != 5 {
		t.Errorf("expected plain aggregate for anonymous viewer, got %+v", got)
	}
}

func TestTopAndFind(t *testing.T) {
	rows := AggregateAndRank([]models.Rating{r("A", "u", 1), r("B", "u", 2)}, nil)

	if got := Top(rows, 3); len(got) != 2 {
		t.Errorf("Top beyond length: got %d", len(got))
	}
	if got := Top(rows, 1); len(got) != 1 || got[0].DiningHallName != "B" {
		t.Errorf("Top(1) = %+v", got)
	}
	if got := Top(rows, -1); len(got) != 0 {
		t.Errorf("Top(-1) = %+v", got)
	}
	if _, ok := Find(rows, "Z"); ok {
		t.Error("Find returned a missing hall")
	}
}
