package movies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/metflix/server/internal/model"
	"github.com/metflix/server/internal/omdb"
	"github.com/metflix/server/internal/repo"
)

// PerPage is the number of search results returned per page
const PerPage = 10

// PopularIDs is the curated list behind the popular endpoint
var PopularIDs = []string{
	"tt0111161", // The Shawshank Redemption
	"tt0068646", // The Godfather
	"tt0468569", // The Dark Knight
	"tt0071562", // The Godfather Part II
	"tt0167260", // The Lord of the Rings: The Return of the King
	"tt0110912", // Pulp Fiction
	"tt0108052", // Schindler's List
	"tt1375666", // Inception
}

var (
	ErrNoPopular     = errors.New("failed to fetch popular movies")
	ErrInvalidImdbID = errors.New("invalid imdb id")
)

// Provider is the subset of the OMDB client the service needs
type Provider interface {
	Search(ctx context.Context, query string, page int) omdb.SearchResult
	GetMany(ctx context.Context, ids []string) []model.Movie
}

// SearchPage is one page of search results annotated for a scope
type SearchPage struct {
	Movies       []model.MovieView
	TotalResults int
	Page         int
	HasMore      bool
	// Result is the raw provider outcome; callers inspect Error when
	// Response is "False".
	Result omdb.SearchResult
}

// Service joins provider lookups with the caller's favorites
type Service struct {
	provider  Provider
	favorites repo.FavoritesRepo
}

// NewService creates a new movie service
func NewService(provider Provider, favorites repo.FavoritesRepo) *Service {
	return &Service{provider: provider, favorites: favorites}
}

// Search passes the query through to the provider, keeps at most PerPage
// results, and marks the ones in scope's favorites
func (s *Service) Search(ctx context.Context, scope, query string, page int) (SearchPage, error) {
	res := s.provider.Search(ctx, strings.TrimSpace(query), page)
	out := SearchPage{Page: page, Result: res}
	if !res.OK() {
		return out, nil
	}

	if len(res.Search) > PerPage {
		res.Search = res.Search[:PerPage]
	}
	views, err := s.annotate(ctx, scope, res.Search)
	if err != nil {
		return SearchPage{}, err
	}

	var total int
	_, _ = fmt.Sscan(res.TotalResults, &total)
	out.Movies = views
	out.TotalResults = total
	out.HasMore = total > page*PerPage
	out.Result = res
	return out, nil
}

// Popular looks up the curated titles concurrently. It fails with
// ErrNoPopular only when every lookup fails.
func (s *Service) Popular(ctx context.Context, scope string) ([]model.MovieView, error) {
	found := s.provider.GetMany(ctx, PopularIDs)
	if len(found) == 0 {
		return nil, ErrNoPopular
	}
	return s.annotate(ctx, scope, found)
}

// Favorites returns the details of every favorite in scope that the
// provider could resolve
func (s *Service) Favorites(ctx context.Context, scope string) ([]model.MovieView, error) {
	ids, err := s.favorites.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	if len(ids) == 0 {
		return []model.MovieView{}, nil
	}

	found := s.provider.GetMany(ctx, ids)
	views := make([]model.MovieView, 0, len(found))
	for _, m := range found {
		views = append(views, model.MovieView{Movie: m, IsFavorite: true})
	}
	return views, nil
}

// Toggle flips imdbID in scope's favorites and reports whether it was added
func (s *Service) Toggle(ctx context.Context, scope, imdbID string) (bool, error) {
	if !ValidImdbID(imdbID) {
		return false, ErrInvalidImdbID
	}
	added, err := s.favorites.Toggle(ctx, scope, imdbID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return added, nil
}

// FavoriteStatus maps each id to whether it is in scope's favorites
func (s *Service) FavoriteStatus(ctx context.Context, scope string, ids []string) (map[string]bool, error) {
	status := make(map[string]bool, len(ids))
	for _, id := range ids {
		ok, err := s.favorites.Contains(ctx, scope, id)
		if err != nil {
			return nil, fmt.Errorf("check favorite: %w", err)
		}
		status[id] = ok
	}
	return status, nil
}

// ValidImdbID reports whether id looks like an imdb title id
func ValidImdbID(id string) bool {
	return len(id) > 2 && strings.HasPrefix(id, "tt")
}

func (s *Service) annotate(ctx context.Context, scope string, found []model.Movie) ([]model.MovieView, error) {
	ids := make([]string, len(found))
	for i, m := range found {
		ids[i] = m.ImdbID
	}
	status, err := s.FavoriteStatus(ctx, scope, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.MovieView, len(found))
	for i, m := range found {
		views[i] = model.MovieView{Movie: m, IsFavorite: status[m.ImdbID]}
	}
	return views, nil
}
