package tagging

import "sort"

// Vocabulary is an immutable, versioned set of allowed tags.
type Vocabulary struct {
	version string
	terms   map[string]struct{}
}

// NewVocabulary builds a vocabulary from normalized terms.
func NewVocabulary(version string, terms []string) *Vocabulary {
	v := &Vocabulary{version: version, terms: make(map[string]struct{}, len(terms))}
	for _, t := range terms {
		v.terms[t] = struct{}{}
	}
	return v
}

// Version identifies the term list. Extraction output is stable per version.
func (v *Vocabulary) Version() string { return v.version }

// Contains reports whether tag is an allowed term.
func (v *Vocabulary) Contains(tag string) bool {
	_, ok := v.terms[tag]
	return ok
}

// Terms returns the sorted term list.
func (v *Vocabulary) Terms() []string {
	out := make([]string, 0, len(v.terms))
	for t := range v.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultVocabulary is the tag list posts are matched against.
var DefaultVocabulary = NewVocabulary("2024.1", []string{
	"software-engineering",
	"backend-development",
	"frontend-development",
	"full-stack-development",
	"web-development",
	"mobile-development",
	"cloud-computing",
	"artificial-intelligence",
	"machine-learning",
	"data-science",
	"data-engineering",
	"devops",
	"agile-methodology",
	"scrum",
	"test-driven-development",
	"unit-testing",
	"integration-testing",
	"continuous-integration",
	"continuous-deployment",
	"version-control",
	"git",
	"docker",
	"kubernetes",
	"microservices",
	"restful-api",
	"graphql",
	"nodejs",
	"express",
	"reactjs",
	"vuejs",
	"angular",
	"typescript",
	"python",
	"java",
	"ruby-on-rails",
	"cplusplus",
	"go-programming-language",
	"cloud-native",
	"serverless-architecture",
	"cybersecurity",
	"blockchain-technology",
	"database-management",
	"sql",
	"nosql",
	"mongodb",
	"postgresql",
	"mysql",
	"data-structures",
	"algorithms",
})
