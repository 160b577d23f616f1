package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// toggleScript flips membership in one round trip so concurrent toggles on
// the same key are serialized by Redis. Returns 1 when the member was added.
var toggleScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
	redis.call("SREM", KEYS[1], ARGV[1])
	return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
return 1
`)

type redisFavoritesRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisFavoritesRepo creates a FavoritesRepo backed by one Redis set per
// scope. Redis deletes a set when its last member is removed.
func NewRedisFavoritesRepo(client *redis.Client) FavoritesRepo {
	return &redisFavoritesRepo{client: client, prefix: "favorites"}
}

func (r *redisFavoritesRepo) key(scope string) string {
	return r.prefix + ":" + scope
}

func (r *redisFavoritesRepo) List(ctx context.Context, scope string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers favorites: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *redisFavoritesRepo) Add(ctx context.Context, scope, itemID string) error {
	if err := r.client.SAdd(ctx, r.key(scope), itemID).Err(); err != nil {
		return fmt.Errorf("redis sadd favorite: %w", err)
	}
	return nil
}

func (r *redisFavoritesRepo) Remove(ctx context.Context, scope, itemID string) error {
	if err := r.client.SRem(ctx, r.key(scope), itemID).Err(); err != nil {
		return fmt.Errorf("redis srem favorite: %w", err)
	}
	return nil
}

func (r *redisFavoritesRepo) Contains(ctx context.Context, scope, itemID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(scope), itemID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember favorite: %w", err)
	}
	return ok, nil
}

func (r *redisFavoritesRepo) Toggle(ctx context.Context, scope, itemID string) (bool, error) {
	added, err := toggleScript.Run(ctx, r.client, []string{r.key(scope)}, itemID).Int()
	if err != nil {
		return false, fmt.Errorf("redis toggle favorite: %w", err)
	}
	return added == 1, nil
}
