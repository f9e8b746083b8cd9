// cache.go — LRU-кэш корзин с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cw_cart_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш корзин.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cw_cart_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша корзин.",
	})
)

// CartCache — кэш корзин по cart token. Шаги подтверждения и оплаты
// запрашивают корзину повторно; суммы меняются только созданием новой корзины.
type CartCache struct {
	cache *expirable.LRU[string, *model.Cart]
}

// NewCartCache создаёт кэш с максимальным размером maxSize и временем жизни ttl.
func NewCartCache(maxSize int, ttl time.Duration) *CartCache {
	return &CartCache{cache: expirable.NewLRU[string, *model.Cart](maxSize, nil, ttl)}
}

// Get возвращает корзину из кэша.
func (c *CartCache) Get(cartToken string) (*model.Cart, bool) {
	val, ok := c.cache.Get(cartToken)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет корзину.
func (c *CartCache) Set(cartToken string, cart *model.Cart) {
	c.cache.Add(cartToken, cart)
}

// Delete инвалидирует корзину (после оплаты).
func (c *CartCache) Delete(cartToken string) {
	c.cache.Remove(cartToken)
}
