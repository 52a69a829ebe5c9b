package summarize

import (
	"fmt"
	"testing"

	"ytsummarize/internal/chunker"
	"ytsummarize/internal/schema"
)

func TestReduceRepeatedBulletsGainSalience(t *testing.T) {
	results := []MapResult{
		{ChunkIndex: 0, Bullets: []Bullet{{Text: "Caching reduces latency", Importance: 2}, {Text: "Opening remarks about the venue"}}},
		{ChunkIndex: 1, Bullets: []Bullet{{Text: "caching reduces latency!", Importance: 2}, {Text: "Benchmarks need warm caches", Importance: 3}}},
		{ChunkIndex: 2, Bullets: []Bullet{{Text: "Caching reduces latency.", Importance: 2}}},
	}
	d := reduce(results, layout{}, "T", "")
	if len(d.Summary.KeyPoints) != 3 {
		t.Fatalf("expected duplicates folded into 3 key points, got %v", d.Summary.KeyPoints)
	}
	// 2 plus two repeat bonuses outranks a single importance-3 bullet.
	if d.Summary.TLDR[0] != "Caching reduces latency" {
		t.Fatalf("expected repeated bullet to lead the tldr, got %v", d.Summary.TLDR)
	}
}

func TestReduceCapsKeyPointsPreservingOrder(t *testing.T) {
	var results []MapResult
	for i := range 15 {
		importance := 1
		if i%2 == 0 {
			importance = 5
		}
		results = append(results, MapResult{ChunkIndex: i, Bullets: []Bullet{{Text: fmt.Sprintf("Distinct point %s", words15[i]), Importance: importance}}})
	}
	d := reduce(results, layout{}, "T", "")
	if len(d.Summary.KeyPoints) != schema.MaxKeyPoints {
		t.Fatalf("expected %d key points, got %d", schema.MaxKeyPoints, len(d.Summary.KeyPoints))
	}
	if d.Summary.KeyPoints[0] != "Distinct point apple" || d.Summary.KeyPoints[1] != "Distinct point banana" {
		t.Fatalf("expected chunk order preserved, got %v", d.Summary.KeyPoints)
	}
	for _, kp := range d.Summary.KeyPoints {
		if kp == "Distinct point nectarine" {
			t.Fatalf("low-salience point survived the cap: %v", d.Summary.KeyPoints)
		}
	}
}

var words15 = []string{
	"apple", "banana", "cherry", "damson", "elder", "fig", "grape", "huckleberry",
	"imbe", "jackfruit", "kiwi", "lemon", "mango", "nectarine", "olive",
}

func TestReduceQuotesPreferLongerOnCollision(t *testing.T) {
	results := []MapResult{
		{ChunkIndex: 0, Quotes: []string{"Measure before you optimize"}},
		{ChunkIndex: 1, Quotes: []string{"“Measure before you optimize.”"}},
	}
	d := reduce(results, layout{}, "T", "")
	if len(d.Summary.Quotes) != 1 || d.Summary.Quotes[0] != "Measure before you optimize." {
		t.Fatalf("unexpected quotes %v", d.Summary.Quotes)
	}
}

func TestReduceCapsQuotesAndActionItems(t *testing.T) {
	var r MapResult
	for _, w := range words15[:9] {
		r.Quotes = append(r.Quotes, "Remember the "+w+" story.")
		r.ActionItems = append(r.ActionItems, "Try "+w)
	}
	d := reduce([]MapResult{r}, layout{}, "T", "")
	if len(d.Summary.Quotes) != schema.MaxQuotes {
		t.Fatalf("expected %d quotes, got %v", schema.MaxQuotes, d.Summary.Quotes)
	}
	if len(d.Summary.ActionItems) != schema.MaxActionItems || d.Summary.ActionItems[0] != "Try apple" {
		t.Fatalf("unexpected action items %v", d.Summary.ActionItems)
	}
	if d.AvailableActionItems != 9 {
		t.Fatalf("expected 9 available action items, got %d", d.AvailableActionItems)
	}
}

func TestReduceMergesChapters(t *testing.T) {
	chunks := []chunker.Chunk{{Index: 0, Start: 0, End: 50}, {Index: 1, Start: 50, End: 100}}
	l := newLayout(chunks, 600)
	results := []MapResult{
		{ChunkIndex: 0, Chapters: []CandidateChapter{
			{Heading: "Setting up the cluster", Bullets: []string{"Install nodes"}},
			{Start: "04:00", Heading: "Scaling out"},
		}},
		{ChunkIndex: 1, Chapters: []CandidateChapter{
			{Heading: "Scaling out!", Bullets: []string{"Add replicas"}},
			{Start: "00:00", Heading: "Intro again", Bullets: []string{"Install nodes", "Say hi"}},
		}},
	}
	d := reduce(results, l, "T", "")
	got := d.Summary.Chapters
	if len(got) != 2 {
		t.Fatalf("expected 2 merged chapters, got %+v", got)
	}
	if got[0].Start != "00:00" || got[0].Heading != "Setting up the cluster" {
		t.Fatalf("unexpected first chapter %+v", got[0])
	}
	if fmt.Sprint(got[0].Bullets) != "[Install nodes Say hi]" {
		t.Fatalf("expected shared start merged with deduped bullets, got %v", got[0].Bullets)
	}
	if got[1].Start != "04:00" || got[1].Heading != "Scaling out" || fmt.Sprint(got[1].Bullets) != "[Add replicas]" {
		t.Fatalf("expected near-duplicate headings merged at 04:00, got %+v", got[1])
	}
}

func TestReduceGlossaryKeepsFirstDefinition(t *testing.T) {
	results := []MapResult{
		{ChunkIndex: 0, Terms: []schema.Term{{Term: "TTL"}}},
		{ChunkIndex: 1, Terms: []schema.Term{{Term: "ttl", Definition: "Time to live"}, {Term: "LRU", Definition: "Least recently used"}}},
		{ChunkIndex: 2, Terms: []schema.Term{{Term: "TTL", Definition: "Other"}}},
	}
	d := reduce(results, layout{}, "T", "")
	if len(d.Glossary) != 2 || d.Glossary[0].Term != "TTL" || d.Glossary[0].Definition != "Time to live" {
		t.Fatalf("unexpected glossary %+v", d.Glossary)
	}
	if fmt.Sprint(d.Summary.Tags) != "[TTL LRU]" {
		t.Fatalf("unexpected tags %v", d.Summary.Tags)
	}
}
