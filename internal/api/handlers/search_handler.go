package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/campushub/services/events/internal/search"
	"example.com/campushub/services/events/internal/tracing"
)

// SearchHandler serves the discovery search over indexed APPROVED events.
type SearchHandler struct {
	elastic *search.ElasticClient
	tracer  tracing.Tracer
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(elasticClient *search.ElasticClient, tracer tracing.Tracer) *SearchHandler {
	return &SearchHandler{
		elastic: elasticClient,
		tracer:  tracer,
	}
}

// HandleSearch queries the event index. Only APPROVED events are ever
// indexed, so no status filter is needed here.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	txn := h.tracer.StartTransaction("search-events")
	defer h.tracer.EndTransaction(txn)

	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if size <= 0 || size > 100 {
		size = 20
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"title^2", "description", "community_name", "location"},
			},
		},
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
		},
	}

	docs, err := h.elastic.SearchEvents(c.Request.Context(), query)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": docs})
}

// RegisterRoutes registers the handler's routes
func (h *SearchHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/events/search", h.HandleSearch)
}
