package devapi

import (
	"fmt"
	"strings"

	"chub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// SeedOptions sizes the generated data.
type SeedOptions struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	Prayers         int
	// Seed makes the data reproducible; 0 picks a random seed.
	Seed int64
}

// SeedSummary reports what Seed created.
type SeedSummary struct {
	Users    []models.User
	Posts    int
	Comments int
	Prayers  int
}

// Seed fills the store with fake users, posts, comments, likes and prayer
// requests. Seeded users log in with SeedPassword.
func (s *Server) Seed(opts SeedOptions) (SeedSummary, error) {
	f := gofakeit.New(opts.Seed)
	var sum SeedSummary

	for i := 0; i < opts.Users; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(f.Username()), f.Number(100, 999))
		u, err := s.CreateUser(username, f.Email(), SeedPassword)
		if err != nil {
			return sum, fmt.Errorf("seed user %d: %w", i, err)
		}
		sum.Users = append(sum.Users, u)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, u := range sum.Users {
		if rec, ok := s.data.users[u.ID]; ok {
			rec.Bio = f.Sentence(10)
			rec.AvatarURL = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.UUID())
		}
		for j := 0; j < opts.PostsPerUser; j++ {
			now := s.data.now()
			p := &postRecord{
				Post: models.Post{
					ID:        s.data.id(),
					Title:     f.Sentence(5),
					Content:   f.Paragraph(1, 3, 5, "\n"),
					CreatedAt: now,
					UpdatedAt: now,
				},
				userID:  u.ID,
				likedBy: make(map[uint]bool),
			}
			switch f.Number(0, 2) {
			case 1:
				p.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.UUID())
			case 2:
				p.LinkURL = f.URL()
			}
			if f.Bool() {
				p.Tags = []string{strings.ToLower(f.Word()), strings.ToLower(f.Word())}
			}
			for _, liker := range sum.Users {
				if f.Number(0, 3) == 0 {
					p.likedBy[liker.ID] = true
				}
			}
			s.data.posts[p.ID] = p
			sum.Posts++

			for k := 0; k < opts.CommentsPerPost; k++ {
				author := sum.Users[f.Number(0, len(sum.Users)-1)]
				cm := &commentRecord{
					Comment: models.Comment{
						ID:        s.data.id(),
						Content:   f.Sentence(8),
						UserID:    author.ID,
						PostID:    p.ID,
						CreatedAt: now,
						UpdatedAt: now,
					},
					likedBy: make(map[uint]bool),
				}
				s.data.comments[cm.ID] = cm
				sum.Comments++
			}
		}
	}

	for i := 0; i < opts.Prayers; i++ {
		pr := models.PrayerRequest{ID: s.data.id(), Content: f.Sentence(12), CreatedAt: s.data.now()}
		s.data.prayers[pr.ID] = pr
		sum.Prayers++
	}
	return sum, nil
}
