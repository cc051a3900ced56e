package services

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
)

const (
	catalogCacheSize = 256
	catalogCacheAge  = 5 * time.Minute
)

// CatalogService fronts the quest catalog with a small read cache. Quest
// content is authored out of process and changes rarely; a short max-age
// keeps activation toggles from going stale for long.
type CatalogService struct {
	repo   repositories.QuestRepository
	cache  *lru.Cache
	maxAge time.Duration
}

type cachedQuest struct {
	quest     *models.Quest
	fetchedAt time.Time
}

func NewCatalogService(repo repositories.QuestRepository) *CatalogService {
	cache, _ := lru.New(catalogCacheSize)
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		maxAge: catalogCacheAge,
	}
}

// Quest returns the quest with tasks loaded, served from cache when fresh.
func (c *CatalogService) Quest(ctx context.Context, questID int64) (*models.Quest, error) {
	if v, ok := c.cache.Get(questID); ok {
		entry := v.(cachedQuest)
		if time.Since(entry.fetchedAt) < c.maxAge {
			return entry.quest, nil
		}
		c.cache.Remove(questID)
	}

	quest, err := c.repo.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	c.cache.Add(questID, cachedQuest{quest: quest, fetchedAt: time.Now()})
	return quest, nil
}

func (c *CatalogService) Invalidate(questID int64) {
	c.cache.Remove(questID)
}

func (c *CatalogService) ActiveQuests(ctx context.Context, guildID snowflake.ID) ([]*models.Quest, error) {
	return c.repo.GetActiveQuests(ctx, guildID)
}

func (c *CatalogService) CompletedQuestIDs(ctx context.Context, userID, guildID snowflake.ID) ([]int64, error) {
	return c.repo.CompletedQuestIDs(ctx, userID, guildID)
}

// taskSource adapts active tasks to fuzzy matching over their titles.
type taskSource []*models.QuestTask

func (s taskSource) String(i int) string { return s[i].Title }
func (s taskSource) Len() int            { return len(s) }

// SearchTasks matches the query against the quest's active task titles for
// autocomplete. An empty query returns all active tasks in position order.
func (c *CatalogService) SearchTasks(quest *models.Quest, query string) []*models.QuestTask {
	active := quest.ActiveTasks()
	if query == "" {
		return active
	}

	source := taskSource(active)
	matches := fuzzy.FindFrom(query, source)

	results := make([]*models.QuestTask, 0, len(matches))
	for _, m := range matches {
		results = append(results, active[m.Index])
	}
	return results
}
