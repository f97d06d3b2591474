package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/flashdeck/internal/flashcards"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

func (s *Server) handleListDecks(c *gin.Context) {
	opts := flashcards.ListOptions{
		Stats: queryBool(c, "stats"),
		Due:   queryBool(c, "due"),
	}
	decks, err := s.svc.ListDecks(c.Request.Context(), user(c), opts)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]deckView, 0, len(decks))
	for _, d := range decks {
		if opts.Stats || opts.Due {
			views = append(views, newDeckStatsView(d))
			continue
		}
		views = append(views, newDeckView(d.Deck))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateDeck(c *gin.Context) {
	var in flashcards.DeckInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	deck, err := s.svc.CreateDeck(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDeckView(*deck))
}

func (s *Server) handleGetDeck(c *gin.Context) {
	deck, err := s.svc.GetDeck(c.Request.Context(), user(c), c.Param("deckId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDeckView(*deck))
}

func (s *Server) handleUpdateDeck(c *gin.Context) {
	var patch flashcards.DeckPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	deck, err := s.svc.UpdateDeck(c.Request.Context(), user(c), c.Param("deckId"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDeckView(*deck))
}

func (s *Server) handleDeleteDeck(c *gin.Context) {
	if err := s.svc.DeleteDeck(c.Request.Context(), user(c), c.Param("deckId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deck deleted successfully"})
}

func (s *Server) handleListCards(c *gin.Context) {
	cards, err := s.svc.ListCards(c.Request.Context(), user(c), c.Param("deckId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCardViews(cards))
}

func (s *Server) handleCreateCard(c *gin.Context) {
	var in flashcards.CardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	card, err := s.svc.CreateCard(c.Request.Context(), user(c), c.Param("deckId"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCardView(*card))
}

func (s *Server) handleDueCards(c *gin.Context) {
	cards, err := s.svc.DueCards(c.Request.Context(), user(c), c.Param("deckId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCardViews(cards))
}

func (s *Server) handleDeckStats(c *gin.Context) {
	report, err := s.svc.DeckReport(c.Request.Context(), user(c), c.Param("deckId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reportView{
		statsView: *newStatsView(report.Stats),
		Breakdown: report.Breakdown,
	})
}

type reviewRequest struct {
	Rating sm2.Rating `json:"rating"`
}

func (s *Server) handleReviewCard(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	card, err := s.svc.ReviewCard(c.Request.Context(), user(c), c.Param("cardId"), req.Rating)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCardView(*card))
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	if err := s.svc.DeleteCard(c.Request.Context(), user(c), c.Param("cardId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
