// cache.go — LRU-кэш списков устройств с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
// Ключ — фильтр по модели (пустая строка — полный список).
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godevedge/edge-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "em_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш списков устройств.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "em_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша списков устройств.",
	})
)

// CacheService — in-memory LRU-кэш ответов реестра с автоматическим TTL.
// Смягчает нагрузку на реестр при частых запросах списков.
// Любая мутация (загрузка CSV, create/update/delete) сбрасывает кэш целиком:
// проще инвалидировать всё, чем отслеживать, какие фильтры задеты.
type CacheService struct {
	cache *expirable.LRU[string, []model.Device]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, []model.Device](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает список устройств из кэша по фильтру модели.
// Возвращает (список, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(modelFilter string) ([]model.Device, bool) {
	val, ok := c.cache.Get(modelFilter)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет список в кэше.
func (c *CacheService) Set(modelFilter string, devices []model.Device) {
	c.cache.Add(modelFilter, devices)
}

// Purge сбрасывает кэш целиком.
func (c *CacheService) Purge() {
	c.cache.Purge()
}
