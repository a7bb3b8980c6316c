// Package cache guarda en Redis las promociones candidatas por producto.
package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

var (
	_ promotion.CandidateCache = (*RedisPromotionCache)(nil)
	_ promotion.CandidateCache = NoopPromotionCache{}
)

const keyPrefix = "pos:promo:product:"

// RedisPromotionCache implementa promotion.CandidateCache sobre Redis.
type RedisPromotionCache struct {
	client *redis.Client
}

// NewRedisPromotionCache construye la caché.
func NewRedisPromotionCache(addr, password string, db int) *RedisPromotionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPromotionCache{client: client}
}

// Ping verifica la conexión.
func (c *RedisPromotionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close cierra el cliente.
func (c *RedisPromotionCache) Close() error {
	return c.client.Close()
}

func productKey(productID string) string {
	return keyPrefix + productID
}

// cachedPromotion es la forma serializada; los montos viajan como texto decimal.
type cachedPromotion struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DiscountKind  string    `json:"discount_kind"`
	DiscountValue string    `json:"discount_value"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Status        string    `json:"status"`
	ProductIDs    []string  `json:"product_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func encode(promos []*entity.Promotion) ([]byte, error) {
	out := make([]cachedPromotion, 0, len(promos))
	for _, p := range promos {
		out = append(out, cachedPromotion{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			DiscountKind:  string(p.DiscountKind),
			DiscountValue: p.DiscountValue.String(),
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
			Status:        p.Status,
			ProductIDs:    p.ProductIDs,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		})
	}
	return json.Marshal(out)
}

func decode(data []byte) ([]*entity.Promotion, error) {
	var in []cachedPromotion
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := make([]*entity.Promotion, 0, len(in))
	for _, c := range in {
		value, err := decimal.NewFromString(c.DiscountValue)
		if err != nil {
			return nil, err
		}
		out = append(out, &entity.Promotion{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			DiscountKind:  entity.DiscountKind(c.DiscountKind),
			DiscountValue: value,
			StartDate:     c.StartDate,
			EndDate:       c.EndDate,
			Status:        c.Status,
			ProductIDs:    c.ProductIDs,
			CreatedAt:     c.CreatedAt,
			UpdatedAt:     c.UpdatedAt,
		})
	}
	return out, nil
}

// Get devuelve los candidatos cacheados. ok=false si no hay entrada.
func (c *RedisPromotionCache) Get(ctx context.Context, productID string) ([]*entity.Promotion, bool, error) {
	val, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	promos, err := decode(val)
	if err != nil {
		return nil, false, err
	}
	return promos, true, nil
}

// Set guarda los candidatos (también la lista vacía, para no consultar la BD en cada venta).
func (c *RedisPromotionCache) Set(ctx context.Context, productID string, promos []*entity.Promotion, ttl time.Duration) error {
	payload, err := encode(promos)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(productID), payload, ttl).Err()
}

// Invalidate borra las entradas de los productos.
func (c *RedisPromotionCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// NoopPromotionCache no guarda nada: cada resolución va a la base de datos.
type NoopPromotionCache struct{}

// Get siempre falla el acierto.
func (NoopPromotionCache) Get(context.Context, string) ([]*entity.Promotion, bool, error) {
	return nil, false, nil
}

// Set no hace nada.
func (NoopPromotionCache) Set(context.Context, string, []*entity.Promotion, time.Duration) error {
	return nil
}

// Invalidate no hace nada.
func (NoopPromotionCache) Invalidate(context.Context, ...string) error { return nil }
