package similarity

import (
	"fmt"
	"testing"

	"github.com/research-output-api/internal/models"
)

func candidatePool(n int) []*models.SearchProjection {
	pool := make([]*models.SearchProjection, n)
	for i := range pool {
		pool[i] = projection(
			fmt.Sprintf("droplet microfluidics for single cell analysis part %d", i),
			fmt.Sprintf("doe j.roe k.author %d", i%37),
		)
	}
	return pool
}

// BenchmarkSimilarity measures one title comparison
func BenchmarkSimilarity(b *testing.B) {
	a := "test publication for threshold analysis"
	c := "test publication for threshold analy111"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Similarity(a, c)
	}
}

// BenchmarkPublicationPool measures matching a base item against a 1000 item pool
func BenchmarkPublicationPool(b *testing.B) {
	rule, _ := RuleFor("publication", "article")
	base := projection("droplet microfluidics for single cell analysis part 5", "doe j.roe k.author 5")
	pool := candidatePool(1000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, c := range pool {
			rule.Match(base, c)
		}
	}
}
