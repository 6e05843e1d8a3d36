package seed

import (
	"context"
	"fmt"
	"strings"

	"squadfeed/internal/models"
	"squadfeed/internal/repository"
	"squadfeed/internal/tagging"
	"squadfeed/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gosimple/slug"
)

// Factory builds domain entities and persists them through the repositories.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	faker  *gofakeit.Faker
	users  repository.UserRepository
	squads repository.SquadRepository
	terms  []string
	seq    int
}

// NewFactory creates a Factory. The same seed yields the same entities.
func NewFactory(users repository.UserRepository, squads repository.SquadRepository, seed int64) *Factory {
	return &Factory{
		faker:  gofakeit.New(seed),
		users:  users,
		squads: squads,
		terms:  tagging.DefaultVocabulary.Terms(),
	}
}

func (f *Factory) next() int {
	f.seq++
	return f.seq
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.next()),
		Name:     f.faker.Name(),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSquad persists a squad owned by owner.
func (f *Factory) CreateSquad(ctx context.Context, owner *models.User, overrides ...func(*models.Squad)) (*models.Squad, error) {
	word := f.faker.Word()
	n := f.next()
	handle := fmt.Sprintf("%s-%d", slug.Make(word), n)
	if validation.ValidateSquadHandle(handle) != nil {
		handle = fmt.Sprintf("squad-%d", n)
	}
	squad := &models.Squad{
		Handle:    handle,
		Name:      strings.ToUpper(word[:1]) + word[1:],
		Thumbnail: fmt.Sprintf("https://picsum.photos/seed/%s/200/200", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(squad)
	}
	if err := validation.ValidateSquadHandle(squad.Handle); err != nil {
		return nil, fmt.Errorf("squad handle %q: %w", squad.Handle, err)
	}
	if err := f.squads.Create(ctx, squad, owner.ID); err != nil {
		return nil, err
	}
	return squad, nil
}

// PostText returns a title and a markdown body that mentions a couple of
// vocabulary terms so auto-tagging has something to find.
func (f *Factory) PostText() (title, content string) {
	a, b := f.faker.RandomString(f.terms), f.faker.RandomString(f.terms)
	title = strings.TrimSuffix(f.faker.Sentence(5), ".")
	content = fmt.Sprintf("%s\n\nWe moved the service to **%s** and paired it with %s.\n\n%s",
		f.faker.Sentence(8),
		strings.ReplaceAll(a, "-", " "),
		strings.ReplaceAll(b, "-", " "),
		f.faker.Paragraph(1, 3, 8, " "))
	return title, content
}

// Intn returns a pseudo-random int in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.Number(0, n-1)
}
