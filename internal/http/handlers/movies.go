package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/metflix/server/internal/middleware"
	"github.com/metflix/server/internal/movies"
)

// MovieHandler handles search and favorites endpoints
type MovieHandler struct {
	movieService *movies.Service
	errs         errorResponder
}

// NewMovieHandler creates a new movie handler
func NewMovieHandler(movieService *movies.Service, production bool) *MovieHandler {
	return &MovieHandler{
		movieService: movieService,
		errs:         errorResponder{production: production},
	}
}

type toggleFavoriteRequest struct {
	ImdbID string `json:"imdbID"`
}

type pagination struct {
	CurrentPage    int  `json:"currentPage"`
	TotalResults   int  `json:"totalResults"`
	ResultsPerPage int  `json:"resultsPerPage"`
	HasMore        bool `json:"hasMore"`
}

// HandleSearch handles GET /api/movies/search?q=&page=
func (h *MovieHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondWithError(w, r, http.StatusBadRequest, `Query parameter "q" is required and must be a string`)
		return
	}
	if len(strings.TrimSpace(q)) < 2 {
		respondWithError(w, r, http.StatusBadRequest, "Search query must be at least 2 characters long")
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, r, http.StatusBadRequest, "Page must be a positive number")
			return
		}
		page = n
	}

	scope, _ := middleware.GetScope(r.Context())
	result, err := h.movieService.Search(r.Context(), scope, q, page)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	if !result.Result.OK() {
		status := http.StatusNotFound
		msg := result.Result.Error
		if strings.Contains(msg, "specific") || strings.Contains(msg, "Too many") {
			status = http.StatusBadRequest
		}
		if msg == "" {
			msg = "No movies found for the given query"
		}
		respondWithError(w, r, status, msg)
		return
	}

	respondSuccess(w, r, http.StatusOK, "Movies retrieved successfully", envelope{
		"data": envelope{
			"Search":       result.Movies,
			"totalResults": result.Result.TotalResults,
			"Response":     result.Result.Response,
		},
		"pagination": pagination{
			CurrentPage:    result.Page,
			TotalResults:   result.TotalResults,
			ResultsPerPage: len(result.Movies),
			HasMore:        result.HasMore,
		},
	})
}

// HandlePopular handles GET /api/movies/popular
func (h *MovieHandler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	scope, _ := middleware.GetScope(r.Context())
	views, err := h.movieService.Popular(r.Context(), scope)
	if errors.Is(err, movies.ErrNoPopular) {
		respondWithError(w, r, http.StatusNotFound, "Failed to fetch popular movies")
		return
	}
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, "Popular movies retrieved successfully", envelope{
		"data":  envelope{"movies": views},
		"count": len(views),
	})
}

// HandleFavorites handles GET /api/movies/favourites
func (h *MovieHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	scope, _ := middleware.GetScope(r.Context())
	views, err := h.movieService.Favorites(r.Context(), scope)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	msg := "Favorites retrieved successfully"
	if len(views) == 0 {
		msg = "No favorites found"
	}
	respondSuccess(w, r, http.StatusOK, msg, envelope{
		"data":  envelope{"favorites": views},
		"count": len(views),
	})
}

// HandleToggleFavorite handles POST /api/movies/toggleFavourite
func (h *MovieHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req toggleFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	scope, _ := middleware.GetScope(r.Context())
	added, err := h.movieService.Toggle(r.Context(), scope, req.ImdbID)
	if errors.Is(err, movies.ErrInvalidImdbID) {
		respondWithError(w, r, http.StatusBadRequest, `Valid "imdbID" (e.g., tt3896198) is required in request body`)
		return
	}
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	msg, action := "Movie removed from favorites", "removed_from_favorites"
	if added {
		msg, action = "Movie added to favorites", "added_to_favorites"
	}
	respondSuccess(w, r, http.StatusOK, msg, envelope{
		"data": envelope{"imdbID": req.ImdbID, "added": added, "action": action},
	})
}
